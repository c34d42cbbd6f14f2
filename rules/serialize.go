package rules

import "gopkg.in/yaml.v3"

// Serialize renders a document's normalized form back to YAML. Parsing the
// output yields an equivalent document: same id, level, status, and
// detection semantics.
func Serialize(doc *RuleDocument) ([]byte, error) {
	top := map[string]interface{}{
		"title":  doc.Title,
		"id":     doc.ID,
		"status": doc.Status,
		"level":  doc.Level,
	}
	if doc.Description != "" {
		top["description"] = doc.Description
	}
	if doc.Author != "" {
		top["author"] = doc.Author
	}
	if doc.Date != "" {
		top["date"] = doc.Date
	}
	if len(doc.Tags) > 0 {
		top["tags"] = doc.Tags
	}

	logsource := map[string]interface{}{}
	if doc.Logsource.Product != "" {
		logsource["product"] = doc.Logsource.Product
	}
	if doc.Logsource.Service != "" {
		logsource["service"] = doc.Logsource.Service
	}
	if doc.Logsource.Category != "" {
		logsource["category"] = doc.Logsource.Category
	}
	top["logsource"] = logsource

	detection := map[string]interface{}{
		"condition": doc.Condition,
	}
	if doc.Timeframe != "" {
		detection["timeframe"] = doc.Timeframe
	}
	for name, sel := range doc.Selections {
		detection[name] = serializeSelection(sel)
	}
	top["detection"] = detection

	return yaml.Marshal(top)
}

func serializeSelection(sel Selection) interface{} {
	if sel.Kind == SelectionKeywords {
		return sel.Keywords
	}
	fields := make(map[string]interface{}, len(sel.Fields))
	for _, fc := range sel.Fields {
		if len(fc.Values) == 1 {
			fields[fc.Field] = fc.Values[0]
		} else {
			fields[fc.Field] = fc.Values
		}
	}
	return fields
}
