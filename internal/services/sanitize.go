package services

import (
	"encoding/json"
	"fmt"
	"html"
)

// SanitizeJSON decodes a JSON payload, HTML-entity-escapes every string leaf,
// and re-encodes it. Upstream data is rendered by dashboards as-is, so any
// markup smuggled into a chain name or blog title is neutralized here, before
// the payload is cached or returned.
func SanitizeJSON(raw []byte) ([]byte, error) {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("sanitize: invalid JSON: %w", err)
	}

	sanitized, err := json.Marshal(sanitizeValue(decoded))
	if err != nil {
		return nil, fmt.Errorf("sanitize: re-encode failed: %w", err)
	}
	return sanitized, nil
}

// sanitizeValue recursively walks decoded JSON and escapes string leaves.
func sanitizeValue(v interface{}) interface{} {
	switch value := v.(type) {
	case string:
		return html.EscapeString(value)
	case []interface{}:
		for i, item := range value {
			value[i] = sanitizeValue(item)
		}
		return value
	case map[string]interface{}:
		for k, item := range value {
			value[k] = sanitizeValue(item)
		}
		return value
	default:
		return v
	}
}
