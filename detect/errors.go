package detect

import "fmt"

// TokenizeError reports an invalid character encountered during lexical
// analysis of a condition expression.
type TokenizeError struct {
	Position    int
	InvalidChar rune
	Context     string
}

// Error implements the error interface.
func (e *TokenizeError) Error() string {
	return fmt.Sprintf("tokenization error at position %d: invalid character %q (context: %q)",
		e.Position, e.InvalidChar, e.Context)
}

// ParseError reports a syntax error while parsing a condition expression,
// with position and expected-versus-found context.
type ParseError struct {
	Position   int
	Token      TokenType
	TokenValue string
	Expected   string
	Context    string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("parse error at position %d: expected %s but got %s (%q) - %s",
			e.Position, e.Expected, e.Token, e.TokenValue, e.Context)
	}
	return fmt.Sprintf("parse error at position %d: expected %s but got %s (%q)",
		e.Position, e.Expected, e.Token, e.TokenValue)
}

// Is matches ParseErrors at the same position for errors.Is.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return e.Position == t.Position
}
