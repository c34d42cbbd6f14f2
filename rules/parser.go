package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ValidationError describes one problem with a rule document. Parsing
// returns the full list of problems found, never a partially built document.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Parse parses a rule document from raw structured text.
//
// Validation is all-or-nothing: on any failure the document is nil and
// every error found is returned. On success the document is normalized:
// a missing id is generated, level defaults to medium, status to stable,
// and selection bodies are resolved into their tagged-union form.
//
// Malformed syntax fails closed with a single descriptive error.
func Parse(raw []byte) (*RuleDocument, []ValidationError) {
	var top map[string]interface{}
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return nil, []ValidationError{{Message: fmt.Sprintf("malformed rule document: %v", err)}}
	}
	if top == nil {
		return nil, []ValidationError{{Message: "rule document is empty"}}
	}

	var errs []ValidationError
	doc := &RuleDocument{Raw: string(raw)}

	doc.Title = stringField(top, "title")
	if strings.TrimSpace(doc.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "title is required"})
	}

	doc.ID = stringField(top, "id")
	doc.Description = stringField(top, "description")
	doc.Author = stringField(top, "author")
	doc.Date = stringField(top, "date")

	doc.Status = stringField(top, "status")
	if doc.Status != "" && !ValidStatus(doc.Status) {
		errs = append(errs, ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", doc.Status)})
	}

	doc.Level = stringField(top, "level")
	if doc.Level != "" && !ValidLevel(doc.Level) {
		errs = append(errs, ValidationError{Field: "level", Message: fmt.Sprintf("invalid level %q", doc.Level)})
	}

	if tags, ok := top["tags"]; ok {
		list, convErrs := stringList(tags, "tags")
		errs = append(errs, convErrs...)
		doc.Tags = list
	}

	lsRaw, ok := top["logsource"]
	if !ok {
		errs = append(errs, ValidationError{Field: "logsource", Message: "logsource is required"})
	} else {
		ls, lsErrs := parseLogsource(lsRaw)
		errs = append(errs, lsErrs...)
		doc.Logsource = ls
	}

	detRaw, ok := top["detection"]
	if !ok {
		errs = append(errs, ValidationError{Field: "detection", Message: "detection is required"})
	} else {
		selections, condition, timeframe, detErrs := parseDetection(detRaw)
		errs = append(errs, detErrs...)
		doc.Selections = selections
		doc.Condition = condition
		doc.Timeframe = timeframe
	}

	if len(errs) > 0 {
		return nil, errs
	}

	// Normalize defaults only on a fully valid document.
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Level == "" {
		doc.Level = LevelMedium
	}
	if doc.Status == "" {
		doc.Status = StatusStable
	}

	return doc, nil
}

// parseLogsource validates the logsource mapping. Absent fields act as
// wildcards; only the three known dimensions are recognized.
func parseLogsource(raw interface{}) (Logsource, []ValidationError) {
	var ls Logsource
	m, ok := raw.(map[string]interface{})
	if !ok {
		return ls, []ValidationError{{Field: "logsource", Message: "logsource must be a mapping"}}
	}

	var errs []ValidationError
	for key, val := range m {
		s, ok := val.(string)
		if !ok {
			errs = append(errs, ValidationError{Field: "logsource." + key, Message: "value must be a string"})
			continue
		}
		switch key {
		case "product":
			ls.Product = s
		case "service":
			ls.Service = s
		case "category":
			ls.Category = s
		default:
			// Unrecognized logsource attributes (definition, etc.) carry
			// no matching semantics and are dropped.
		}
	}
	return ls, errs
}

// parseDetection resolves the detection mapping into named selections plus
// the condition expression. The reserved keys condition and timeframe are
// not selections.
func parseDetection(raw interface{}) (map[string]Selection, string, string, []ValidationError) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, "", "", []ValidationError{{Field: "detection", Message: "detection must be a mapping"}}
	}

	var errs []ValidationError
	selections := make(map[string]Selection)
	var condition, timeframe string

	for name, body := range m {
		switch name {
		case "condition":
			s, ok := body.(string)
			if !ok {
				errs = append(errs, ValidationError{Field: "detection.condition", Message: "condition must be a string"})
				continue
			}
			condition = strings.TrimSpace(s)
		case "timeframe":
			timeframe = scalarString(body)
		default:
			sel, selErrs := parseSelection(name, body)
			errs = append(errs, selErrs...)
			if len(selErrs) == 0 {
				selections[name] = sel
			}
		}
	}

	if condition == "" {
		errs = append(errs, ValidationError{Field: "detection.condition", Message: "condition is required and must be non-empty"})
	}
	if len(selections) == 0 {
		errs = append(errs, ValidationError{Field: "detection", Message: "detection has no selection blocks"})
	}

	return selections, condition, timeframe, errs
}

// parseSelection resolves one selection body into the tagged union: either
// a keyword list (array of strings) or a field map (field -> scalar or
// list of scalars).
func parseSelection(name string, body interface{}) (Selection, []ValidationError) {
	field := "detection." + name

	switch v := body.(type) {
	case []interface{}:
		keywords := make([]string, 0, len(v))
		var errs []ValidationError
		for i, item := range v {
			s := scalarString(item)
			if s == "" && !isScalar(item) {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "keyword must be a scalar"})
				continue
			}
			keywords = append(keywords, s)
		}
		if len(errs) > 0 {
			return Selection{}, errs
		}
		return Selection{Kind: SelectionKeywords, Keywords: keywords}, nil

	case map[string]interface{}:
		constraints := make([]FieldConstraint, 0, len(v))
		var errs []ValidationError
		for fieldName, val := range v {
			values, ok := scalarValues(val)
			if !ok {
				errs = append(errs, ValidationError{Field: field + "." + fieldName, Message: "value must be a scalar or a list of scalars"})
				continue
			}
			constraints = append(constraints, FieldConstraint{Field: fieldName, Values: values})
		}
		if len(errs) > 0 {
			return Selection{}, errs
		}
		return Selection{Kind: SelectionFieldMap, Fields: constraints}, nil

	default:
		return Selection{}, []ValidationError{{Field: field, Message: "selection must be a keyword list or a field mapping"}}
	}
}

// scalarValues normalizes a field-map value into its candidate list.
func scalarValues(val interface{}) ([]string, bool) {
	switch v := val.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if !isScalar(item) {
				return nil, false
			}
			out = append(out, scalarString(item))
		}
		return out, true
	default:
		if !isScalar(val) {
			return nil, false
		}
		return []string{scalarString(val)}, true
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return true
	case nil:
		return false
	}
	return false
}

// scalarString renders a scalar in its canonical string form.
func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	default:
		return ""
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func stringList(raw interface{}, field string) ([]string, []ValidationError) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, []ValidationError{{Field: field, Message: "must be a list of strings"}}
	}
	out := make([]string, 0, len(list))
	var errs []ValidationError
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "must be a string"})
			continue
		}
		out = append(out, s)
	}
	return out, errs
}
