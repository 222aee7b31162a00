package extract

import "encoding/json"

// envelope is the outer shape of the composer/entrypoint API response: a map
// from opaque widget identifiers to JSON-encoded strings.
type envelope struct {
	WidgetStates map[string]json.RawMessage `json:"widgetStates"`
}

// DecodeEnvelope unwraps a widget envelope into decoded widget payloads.
// Every widget value gets a second JSON parse; values that are not valid JSON
// (plain strings, truncated fragments) are skipped rather than failing the
// envelope. A missing widgetStates section decodes to an empty map.
func DecodeEnvelope(body []byte) (map[string]any, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	widgets := make(map[string]any, len(env.WidgetStates))
	for key, raw := range env.WidgetStates {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			// Value is a JSON-encoded string; parse its contents.
			var v any
			if err := json.Unmarshal([]byte(inner), &v); err != nil {
				continue
			}
			widgets[key] = v
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		widgets[key] = v
	}
	return widgets, nil
}
