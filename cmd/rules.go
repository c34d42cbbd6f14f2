// Package cmd provides command-line interface commands for logward.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"logward/detect"
	"logward/rules"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
)

var noColor bool

// NewRulesCmd builds the `rules` command tree.
func NewRulesCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage detection rules",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(newLintCmd())
	return rootCmd
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file-or-dir>...",
		Short: "Validate rule files without loading them",
		Long: `Parses each rule file, reports validation errors, and compiles the
condition expression. Directories are walked recursively for .yml and
.yaml files. Exits non-zero when any rule fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			for _, arg := range args {
				found, err := collectRuleFiles(arg)
				if err != nil {
					return err
				}
				files = append(files, found...)
			}
			if len(files) == 0 {
				warningColor.Fprintln(os.Stderr, "no rule files found")
				return nil
			}

			failed := 0
			for _, file := range files {
				if ok := lintFile(cmd, file); !ok {
					failed++
				}
			}

			fmt.Fprintln(cmd.OutOrStdout())
			if failed > 0 {
				errorColor.Fprintf(cmd.OutOrStdout(), "%d of %d rule files failed\n", failed, len(files))
				return fmt.Errorf("%d rule files failed lint", failed)
			}
			successColor.Fprintf(cmd.OutOrStdout(), "all %d rule files passed\n", len(files))
			return nil
		},
	}
}

func collectRuleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	return files, nil
}

// lintFile validates a single rule file, printing each problem found.
func lintFile(cmd *cobra.Command, file string) bool {
	out := cmd.OutOrStdout()

	raw, err := os.ReadFile(file)
	if err != nil {
		errorColor.Fprintf(out, "FAIL %s: %v\n", file, err)
		return false
	}

	doc, verrs := rules.Parse(raw)
	if len(verrs) > 0 {
		errorColor.Fprintf(out, "FAIL %s\n", file)
		for _, verr := range verrs {
			fmt.Fprintf(out, "  %s: %s\n", verr.Field, verr.Message)
		}
		return false
	}

	parser := detect.NewConditionParser()
	if _, err := parser.Parse(doc.Condition, doc.SelectionNames()); err != nil {
		errorColor.Fprintf(out, "FAIL %s\n", file)
		fmt.Fprintf(out, "  condition: %v\n", err)
		return false
	}

	successColor.Fprintf(out, "OK   %s", file)
	fmt.Fprintf(out, " (%s)\n", doc.Title)
	return true
}
