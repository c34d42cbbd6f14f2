package detect

import (
	"fmt"
	"strings"
)

// ConditionNode is a node in a parsed condition expression tree. Evaluate
// computes the node's boolean result given the per-selection match results.
// Identifiers that resolve to no selection evaluate false rather than
// erroring: a rule author's typo silently fails to match instead of taking
// the rule down.
type ConditionNode interface {
	Evaluate(results map[string]bool) bool
}

// IdentifierNode references a named selection.
type IdentifierNode struct {
	Name string
}

// Evaluate returns the selection's match result, or false when the name is
// unknown.
func (n *IdentifierNode) Evaluate(results map[string]bool) bool {
	return results[n.Name]
}

// BinaryOperator is the operator of a BinaryOpNode.
type BinaryOperator int

const (
	// OpAND is logical AND.
	OpAND BinaryOperator = iota
	// OpOR is logical OR.
	OpOR
)

// String returns the operator's name.
func (op BinaryOperator) String() string {
	if op == OpAND {
		return "AND"
	}
	return "OR"
}

// BinaryOpNode combines two operands with AND or OR. AND and OR share a
// single precedence level and associate left, so "a or b and c" evaluates
// as "(a or b) and c". This strict left-to-right reading is load-bearing:
// existing rule corpora were authored against it and conventional
// AND-binds-tighter precedence would change their meaning.
type BinaryOpNode struct {
	Operator BinaryOperator
	Left     ConditionNode
	Right    ConditionNode
}

// Evaluate computes the operation with short-circuiting.
func (n *BinaryOpNode) Evaluate(results map[string]bool) bool {
	left := n.Left.Evaluate(results)
	if n.Operator == OpAND {
		if !left {
			return false
		}
		return n.Right.Evaluate(results)
	}
	if left {
		return true
	}
	return n.Right.Evaluate(results)
}

// NotNode negates its child.
type NotNode struct {
	Child ConditionNode
}

// Evaluate returns the logical negation of the child's result.
func (n *NotNode) Evaluate(results map[string]bool) bool {
	return !n.Child.Evaluate(results)
}

// QuantifierNode is an "all of <pattern>" or "<N> of <pattern>" expression.
// The pattern is resolved against the rule's selection names at parse time;
// Names holds the selections it matched.
type QuantifierNode struct {
	// All is true for "all of"; otherwise Count applies.
	All     bool
	Count   int
	Pattern string
	Names   []string
}

// Evaluate counts how many matched selections are true. "all of" requires
// every one (a pattern that matched nothing evaluates false, consistent
// with the unknown-identifier policy); "N of" requires at least N.
func (n *QuantifierNode) Evaluate(results map[string]bool) bool {
	trueCount := 0
	for _, name := range n.Names {
		if results[name] {
			trueCount++
		}
	}
	if n.All {
		return len(n.Names) > 0 && trueCount == len(n.Names)
	}
	return trueCount >= n.Count
}

// ConditionParser is a recursive descent parser for condition expressions.
//
// Grammar:
//
//	expr       := term (("AND" | "OR") term)*
//	term       := "NOT" term | "(" expr ")" | quantifier | identifier
//	quantifier := ("ALL" | NUMBER) "OF" ("them" | identifier | identifier "*")
//
// AND and OR are deliberately parsed at one precedence level, strictly
// left-to-right; see BinaryOpNode.
type ConditionParser struct {
	tokens         []Token
	position       int
	selectionNames []string
}

// NewConditionParser creates a parser instance.
func NewConditionParser() *ConditionParser {
	return &ConditionParser{}
}

// Parse tokenizes and parses a condition expression into an AST. The
// selectionNames are the rule's detection block names (excluding the
// reserved condition/timeframe keys); quantifier patterns resolve against
// them at parse time.
func (p *ConditionParser) Parse(expression string, selectionNames []string) (ConditionNode, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("cannot parse empty condition expression")
	}

	tokens, err := Tokenize(expression)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}

	p.tokens = tokens
	p.position = 0
	p.selectionNames = selectionNames

	ast, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if !p.isAtEnd() {
		current := p.peek()
		return nil, &ParseError{
			Position:   current.Position,
			Token:      current.Type,
			TokenValue: current.Value,
			Expected:   "end of expression",
			Context:    "unexpected tokens remain after parsing complete expression",
		}
	}

	return ast, nil
}

// parseExpression consumes a chain of terms joined by AND/OR at a single
// precedence level, building a left-associative tree.
func (p *ConditionParser) parseExpression() (ConditionNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		var op BinaryOperator
		switch p.peek().Type {
		case TokenAND:
			op = OpAND
		case TokenOR:
			op = OpOR
		default:
			return left, nil
		}
		opToken := p.consume()

		right, err := p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("expected expression after %s at position %d: %w",
				op, opToken.Position, err)
		}

		left = &BinaryOpNode{Operator: op, Left: left, Right: right}
	}
}

// parseTerm handles NOT, parenthesized expressions, quantifiers, and
// identifiers.
func (p *ConditionParser) parseTerm() (ConditionNode, error) {
	current := p.peek()

	switch current.Type {
	case TokenNOT:
		p.consume()
		child, err := p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("expected expression after NOT at position %d: %w",
				current.Position, err)
		}
		return &NotNode{Child: child}, nil

	case TokenLParen:
		p.consume()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, fmt.Errorf("invalid expression inside parentheses starting at position %d: %w",
				current.Position, err)
		}
		closing := p.peek()
		if closing.Type != TokenRParen {
			return nil, &ParseError{
				Position:   closing.Position,
				Token:      closing.Type,
				TokenValue: closing.Value,
				Expected:   "closing parenthesis ')'",
				Context:    fmt.Sprintf("unmatched opening parenthesis at position %d", current.Position),
			}
		}
		p.consume()
		return expr, nil

	case TokenALL, TokenNumber:
		return p.parseQuantifier()

	case TokenIdentifier:
		ident := p.consume()
		if strings.HasSuffix(ident.Value, "*") {
			return nil, &ParseError{
				Position:   ident.Position,
				Token:      ident.Type,
				TokenValue: ident.Value,
				Expected:   "selection name",
				Context:    "wildcard patterns are only valid after OF",
			}
		}
		return &IdentifierNode{Name: ident.Value}, nil

	case TokenEOF:
		return nil, &ParseError{
			Position: current.Position,
			Token:    TokenEOF,
			Expected: "identifier or expression",
			Context:  "unexpected end of expression",
		}

	default:
		return nil, &ParseError{
			Position:   current.Position,
			Token:      current.Type,
			TokenValue: current.Value,
			Expected:   "identifier, NOT, quantifier, or '('",
			Context:    "operator or keyword in operand position",
		}
	}
}

// parseQuantifier parses "(ALL | N) OF (them | pattern)". The pattern is
// resolved immediately against the rule's selection names.
func (p *ConditionParser) parseQuantifier() (ConditionNode, error) {
	start := p.consume()

	node := &QuantifierNode{}
	switch start.Type {
	case TokenALL:
		node.All = true
	case TokenNumber:
		count, err := parseNumber(start)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("quantifier count cannot be zero at position %d", start.Position)
		}
		node.Count = count
	default:
		return nil, fmt.Errorf("expected ALL or a number at position %d, got %s", start.Position, start.Type)
	}

	ofToken := p.peek()
	if ofToken.Type != TokenOF {
		return nil, &ParseError{
			Position:   ofToken.Position,
			Token:      ofToken.Type,
			TokenValue: ofToken.Value,
			Expected:   "OF keyword",
			Context:    "quantifier is missing its OF",
		}
	}
	p.consume()

	target := p.peek()
	switch target.Type {
	case TokenTHEM:
		p.consume()
		node.Pattern = "them"
	case TokenIdentifier:
		p.consume()
		node.Pattern = target.Value
	default:
		return nil, &ParseError{
			Position:   target.Position,
			Token:      target.Type,
			TokenValue: target.Value,
			Expected:   "them or a selection pattern",
			Context:    "quantifier target missing after OF",
		}
	}

	node.Names = resolvePattern(node.Pattern, p.selectionNames)
	return node, nil
}

// resolvePattern expands a quantifier pattern into the selection names it
// denotes: "them" covers every selection, a trailing "*" is a prefix glob,
// anything else is an exact name. A pattern that matches nothing yields an
// empty set (the quantifier then evaluates false).
func resolvePattern(pattern string, selectionNames []string) []string {
	if strings.EqualFold(pattern, "them") {
		return append([]string(nil), selectionNames...)
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		var matches []string
		for _, name := range selectionNames {
			if strings.HasPrefix(name, prefix) {
				matches = append(matches, name)
			}
		}
		return matches
	}

	for _, name := range selectionNames {
		if name == pattern {
			return []string{name}
		}
	}
	return nil
}

// Parser navigation helpers.

func (p *ConditionParser) peek() Token {
	if p.position >= len(p.tokens) {
		if len(p.tokens) > 0 {
			return p.tokens[len(p.tokens)-1]
		}
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.position]
}

func (p *ConditionParser) consume() Token {
	token := p.peek()
	if p.position < len(p.tokens) {
		p.position++
	}
	return token
}

func (p *ConditionParser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}
