package detect

import (
	"fmt"

	"logward/rules"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CompiledRule is a rule document with its condition expression parsed into
// an AST, ready for repeated evaluation. Hash fingerprints the source text
// so edits to a stored rule invalidate the cached compilation.
type CompiledRule struct {
	Doc  *rules.RuleDocument
	AST  ConditionNode
	Hash uint64
}

// RuleCache holds compiled rules keyed by rule id, bounded by an LRU.
// Compilation (condition parsing) happens once per rule version; cache hits
// pay only the map lookup and hash comparison.
type RuleCache struct {
	cache *lru.Cache[string, *CompiledRule]
}

// NewRuleCache creates a cache holding up to size compiled rules.
func NewRuleCache(size int) (*RuleCache, error) {
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[string, *CompiledRule](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule cache: %w", err)
	}
	return &RuleCache{cache: cache}, nil
}

// Get returns the cached compilation of a rule, or nil when the rule is
// absent or its source text changed since it was compiled.
func (c *RuleCache) Get(doc *rules.RuleDocument) *CompiledRule {
	cached, ok := c.cache.Get(doc.ID)
	if !ok {
		return nil
	}
	if cached.Hash != ContentHash(doc) {
		c.cache.Remove(doc.ID)
		return nil
	}
	return cached
}

// Compile parses a document's condition and caches the result.
func (c *RuleCache) Compile(doc *rules.RuleDocument) (*CompiledRule, error) {
	parser := NewConditionParser()
	ast, err := parser.Parse(doc.Condition, doc.SelectionNames())
	if err != nil {
		return nil, fmt.Errorf("failed to parse condition %q for rule %s: %w", doc.Condition, doc.ID, err)
	}
	compiled := &CompiledRule{Doc: doc, AST: ast, Hash: ContentHash(doc)}
	c.cache.Add(doc.ID, compiled)
	return compiled, nil
}

// Invalidate drops one rule from the cache.
func (c *RuleCache) Invalidate(ruleID string) {
	c.cache.Remove(ruleID)
}

// Purge drops every cached rule.
func (c *RuleCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached rules.
func (c *RuleCache) Len() int {
	return c.cache.Len()
}

// ContentHash fingerprints a rule document. The raw source text is hashed
// when available; otherwise the condition string stands in.
func ContentHash(doc *rules.RuleDocument) uint64 {
	if doc.Raw != "" {
		return xxhash.Sum64String(doc.Raw)
	}
	return xxhash.Sum64String(doc.ID + "\x00" + doc.Condition)
}
