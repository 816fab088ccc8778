package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errMissingType = errors.New("frame has no type")

// Event is a parsed realtime frame. Raw holds the entire frame so handlers
// can decode whatever payload fields their event type defines.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the full frame into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// parseFrame validates an inbound frame: a JSON object with a non-empty
// "type" field. Anything else is malformed and gets dropped by the caller.
func parseFrame(data []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Event{}, err
	}
	if probe.Type == "" {
		return Event{}, errMissingType
	}
	return Event{Type: probe.Type, Raw: append(json.RawMessage(nil), data...)}, nil
}

// encodeFrame builds an outbound frame by spreading data's fields next to
// the type tag, mirroring the inbound shape.
func encodeFrame(eventType string, data any) ([]byte, error) {
	fields := map[string]any{}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("frame payload must be an object: %w", err)
		}
	}
	fields["type"] = eventType
	return json.Marshal(fields)
}
