// Package rules defines the detection rule document model and its parser.
// A rule document is structured text (YAML) carrying a logsource filter,
// named selection blocks, and a boolean condition expression combining them.
package rules

// Rule statuses.
const (
	StatusExperimental = "experimental"
	StatusTest         = "test"
	StatusStable       = "stable"
	StatusDeprecated   = "deprecated"
	StatusUnsupported  = "unsupported"
)

// Rule severity levels.
const (
	LevelInformational = "informational"
	LevelLow           = "low"
	LevelMedium        = "medium"
	LevelHigh          = "high"
	LevelCritical      = "critical"
)

var validStatuses = map[string]bool{
	StatusExperimental: true,
	StatusTest:         true,
	StatusStable:       true,
	StatusDeprecated:   true,
	StatusUnsupported:  true,
}

var validLevels = map[string]bool{
	LevelInformational: true,
	LevelLow:           true,
	LevelMedium:        true,
	LevelHigh:          true,
	LevelCritical:      true,
}

// ValidStatus reports whether s is a recognized rule status.
func ValidStatus(s string) bool { return validStatuses[s] }

// ValidLevel reports whether l is a recognized severity level.
func ValidLevel(l string) bool { return validLevels[l] }

// Logsource restricts which logs a rule is eligible to evaluate against.
// Each field is a literal or wildcard pattern; an empty field matches
// everything.
type Logsource struct {
	Product  string `yaml:"product,omitempty"`
	Service  string `yaml:"service,omitempty"`
	Category string `yaml:"category,omitempty"`
}

// SelectionKind discriminates the two selection body shapes.
type SelectionKind int

const (
	// SelectionKeywords matches any keyword as a substring of any
	// string-valued field in the flattened record.
	SelectionKeywords SelectionKind = iota
	// SelectionFieldMap matches field constraints: AND across fields,
	// OR across the candidate values of one field.
	SelectionFieldMap
)

// FieldConstraint is one field's constraint within a field-map selection.
// Values holds the candidate values (OR semantics); scalars from the
// document are normalized to their string form at parse time.
type FieldConstraint struct {
	Field  string
	Values []string
}

// Selection is a named matching block, resolved at parse time into a tagged
// union over keyword lists and field maps so evaluation never re-inspects
// dynamic document shapes.
type Selection struct {
	Kind     SelectionKind
	Keywords []string
	Fields   []FieldConstraint
}

// RuleDocument is a parsed, validated, normalized detection rule.
type RuleDocument struct {
	ID          string
	Title       string
	Status      string
	Level       string
	Description string
	Author      string
	Date        string
	Logsource   Logsource
	Tags        []string

	// Selections holds every named detection block except the reserved
	// condition and timeframe keys. Condition is the boolean expression
	// over selection names.
	Selections map[string]Selection
	Condition  string
	Timeframe  string

	// Raw is the original document text. It is not serialized and exists
	// so callers can hash or re-store the exact source.
	Raw string
}

// SelectionNames returns the names of all selection blocks. This is the set
// the condition expression's quantifier patterns resolve against.
func (d *RuleDocument) SelectionNames() []string {
	names := make([]string, 0, len(d.Selections))
	for name := range d.Selections {
		names = append(names, name)
	}
	return names
}
