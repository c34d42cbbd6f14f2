package detect

import (
	"sort"

	"logward/core"
)

// Flatten derives a FlattenedRecord from a log entry. The entry's own
// fields (service, level, message, trace_id) sit at the top level; nested
// metadata is collapsed into dotted paths ("http.status"); metadata leaf
// keys are additionally promoted to the top level when exactly one path
// claims the key and nothing else occupies it. The derivation is
// deterministic and never mutates the entry.
func Flatten(entry *core.LogEntry) core.FlattenedRecord {
	record := make(core.FlattenedRecord, len(entry.Metadata)+4)
	record["service"] = entry.Service
	record["level"] = entry.Level
	record["message"] = entry.Message
	if entry.TraceID != "" {
		record["trace_id"] = entry.TraceID
	}

	flattenInto(record, "", entry.Metadata)
	promoteLeaves(record)
	return record
}

// flattenInto walks nested metadata, joining keys with dots. Scalar leaves
// land in the record as-is; nil values are dropped. Each level is walked in
// two sorted passes, scalars before nested maps, so a literal dotted key
// ("a.b") always beats the same path produced by a nested map ({"a":{"b"}})
// no matter how Go iterates the map.
func flattenInto(record core.FlattenedRecord, prefix string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := m[key].(type) {
		case map[string]interface{}:
		case nil:
			// dropped
		default:
			path := joinPath(prefix, key)
			if _, exists := record[path]; !exists {
				record[path] = v
			}
		}
	}
	for _, key := range keys {
		if v, ok := m[key].(map[string]interface{}); ok {
			flattenInto(record, joinPath(prefix, key), v)
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// promoteLeaves copies dotted-path values to their leaf key at the top
// level. Promotion is best-effort: a leaf claimed by more than one path, or
// already present in the record, is skipped. Sorted iteration keeps the
// result deterministic.
func promoteLeaves(record core.FlattenedRecord) {
	paths := make([]string, 0, len(record))
	for path := range record {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	candidates := make(map[string]string)
	collided := make(map[string]bool)
	for _, path := range paths {
		leaf := leafKey(path)
		if leaf == path {
			continue
		}
		if _, taken := record[leaf]; taken {
			continue
		}
		if _, dup := candidates[leaf]; dup {
			collided[leaf] = true
			continue
		}
		candidates[leaf] = path
	}

	for leaf, path := range candidates {
		if !collided[leaf] {
			record[leaf] = record[path]
		}
	}
}

func leafKey(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
