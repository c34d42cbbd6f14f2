// Package detect implements the detection engine: the condition expression
// language (tokenizer, parser, evaluator), selection matching against
// flattened log records, logsource filtering, and per-log/batch rule
// evaluation.
package detect

import (
	"fmt"
	"regexp"
	"strconv"
)

// TokenType identifies a token in a condition expression.
type TokenType int

const (
	// TokenEOF marks end of input.
	TokenEOF TokenType = iota
	// TokenAND is the AND operator.
	TokenAND
	// TokenOR is the OR operator.
	TokenOR
	// TokenNOT is the NOT operator.
	TokenNOT
	// TokenLParen is a left parenthesis.
	TokenLParen
	// TokenRParen is a right parenthesis.
	TokenRParen
	// TokenOF is the OF keyword in quantifier expressions.
	TokenOF
	// TokenALL is the ALL keyword in quantifier expressions.
	TokenALL
	// TokenTHEM is the THEM keyword in quantifier expressions.
	TokenTHEM
	// TokenNumber is a numeric literal for "N of" quantifiers.
	TokenNumber
	// TokenIdentifier is a selection name, possibly with a trailing wildcard.
	TokenIdentifier
)

// String returns the token type's name.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "EOF"
	case TokenAND:
		return "AND"
	case TokenOR:
		return "OR"
	case TokenNOT:
		return "NOT"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenOF:
		return "OF"
	case TokenALL:
		return "ALL"
	case TokenTHEM:
		return "THEM"
	case TokenNumber:
		return "NUMBER"
	case TokenIdentifier:
		return "IDENTIFIER"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexical unit of a condition expression, with its byte offset
// in the original expression for error reporting.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// String returns a debug representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at pos %d", t.Type, t.Value, t.Position)
}

type tokenPattern struct {
	typ     TokenType
	pattern *regexp.Regexp
}

var (
	// tokenPatterns is ordered: keywords must be tried before identifiers
	// so "and" never lexes as an identifier, and word boundaries keep
	// "android" from matching "and".
	tokenPatterns = []tokenPattern{
		{TokenAND, regexp.MustCompile(`^(?i)\band\b`)},
		{TokenOR, regexp.MustCompile(`^(?i)\bor\b`)},
		{TokenNOT, regexp.MustCompile(`^(?i)\bnot\b`)},
		{TokenOF, regexp.MustCompile(`^(?i)\bof\b`)},
		{TokenALL, regexp.MustCompile(`^(?i)\ball\b`)},
		{TokenTHEM, regexp.MustCompile(`^(?i)\bthem\b`)},

		{TokenNumber, regexp.MustCompile(`^\d+`)},

		{TokenLParen, regexp.MustCompile(`^\(`)},
		{TokenRParen, regexp.MustCompile(`^\)`)},

		// Identifiers allow a trailing asterisk for prefix-glob quantifier
		// patterns like "selection*".
		{TokenIdentifier, regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*\*?`)},
	}

	whitespacePattern = regexp.MustCompile(`^\s+`)
)

// Tokenize performs lexical analysis of a condition expression. Keywords
// match case-insensitively with word-boundary detection; positions are
// tracked for error reporting. The returned slice always ends with an EOF
// token.
func Tokenize(expression string) ([]Token, error) {
	if expression == "" {
		return []Token{{Type: TokenEOF}}, nil
	}

	var tokens []Token
	position := 0

	for position < len(expression) {
		if match := whitespacePattern.FindString(expression[position:]); match != "" {
			position += len(match)
			continue
		}

		matched := false
		for _, tp := range tokenPatterns {
			if match := tp.pattern.FindString(expression[position:]); match != "" {
				tokens = append(tokens, Token{Type: tp.typ, Value: match, Position: position})
				position += len(match)
				matched = true
				break
			}
		}

		if !matched {
			start := position - 20
			if start < 0 {
				start = 0
			}
			end := position + 20
			if end > len(expression) {
				end = len(expression)
			}
			return nil, &TokenizeError{
				Position:    position,
				InvalidChar: rune(expression[position]),
				Context:     expression[start:end],
			}
		}
	}

	tokens = append(tokens, Token{Type: TokenEOF, Position: position})
	return tokens, nil
}

// parseNumber extracts the integer value of a NUMBER token. The tokenizer
// only produces non-negative integers.
func parseNumber(token Token) (int, error) {
	if token.Type != TokenNumber {
		return 0, fmt.Errorf("expected NUMBER token, got %s at position %d", token.Type, token.Position)
	}
	value, err := strconv.Atoi(token.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q at position %d: %w", token.Value, token.Position, err)
	}
	return value, nil
}
