package recording

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export renders a recording for file output. The YAML path round-trips
// through JSON so both formats share the wire field names.
func Export(rec *Recording, format string) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("recording cannot be nil")
	}

	switch strings.ToLower(format) {
	case "", "json":
		return json.MarshalIndent(rec, "", "  ")
	case "yaml", "yml":
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// Import parses an exported recording, accepting both formats
func Import(data []byte, format string) (*Recording, error) {
	var rec Recording

	switch strings.ToLower(format) {
	case "", "json":
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse recording: %w", err)
		}
	case "yaml", "yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse recording: %w", err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse recording: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported import format: %s", format)
	}

	return &rec, nil
}
