package overlay

import (
	"encoding/json"
	"strings"
)

const (
	msgInvalidType     = "Invalid overlay type. Must be 'text', 'logo', or 'image'"
	msgInvalidPosition = "Position must be an object with 'x' and 'y' coordinates"
	msgInvalidSize     = "Size must be an object with 'width' and 'height' dimensions"
)

// apply validates in and copies its fields onto o. With requireAll every
// core field must be present, as for a create; otherwise absent fields keep
// the values already in o. o is left untouched when an error is returned.
func (in Input) apply(o *Overlay, requireAll bool) error {
	if requireAll {
		required := []struct {
			name    string
			present bool
		}{
			{"name", in.Name != nil},
			{"type", in.Type != nil},
			{"content", in.Content != nil},
			{"position", in.Position != nil},
			{"size", in.Size != nil},
		}
		for _, f := range required {
			if !f.present {
				return invalid("Missing required field: " + f.name)
			}
		}
	}

	next := *o
	if in.Type != nil {
		t := Type(strings.TrimSpace(*in.Type))
		if !t.valid() {
			return invalid(msgInvalidType)
		}
		next.Type = t
	}
	if in.Position != nil {
		var p Position
		if !parsePair(in.Position, "x", "y", &p.X, &p.Y) {
			return invalid(msgInvalidPosition)
		}
		next.Position = p
	}
	if in.Size != nil {
		var s Size
		if !parsePair(in.Size, "width", "height", &s.Width, &s.Height) {
			return invalid(msgInvalidSize)
		}
		next.Size = s
	}
	if in.Name != nil {
		next.Name = *in.Name
	}
	if in.Content != nil {
		next.Content = *in.Content
	}
	if in.Style != nil {
		next.Style = in.Style
	}
	if in.Visible != nil {
		next.Visible = *in.Visible
	}
	if in.ZIndex != nil {
		next.ZIndex = *in.ZIndex
	}

	*o = next
	return nil
}

// parsePair reads a JSON object holding two numeric members.
func parsePair(raw json.RawMessage, k1, k2 string, v1, v2 *float64) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return false
	}
	r1, ok1 := m[k1]
	r2, ok2 := m[k2]
	if !ok1 || !ok2 {
		return false
	}
	return json.Unmarshal(r1, v1) == nil && json.Unmarshal(r2, v2) == nil
}
