// Package repositories provides Postgres data access for the engine.
// Repositories bind to a database.Querier so the same implementation runs
// against the pool or inside a transaction.
package repositories

import "encoding/json"

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// derefString converts a nullable column back to a plain string.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// jsonbValue marshals a value for a JSONB parameter, mapping nil maps and
// slices to their empty JSON form rather than SQL NULL.
func jsonbValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return []byte("{}"), nil
		}
	case nil:
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// jsonUnmarshal unmarshals JSONB data from the database.
func jsonUnmarshal(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
