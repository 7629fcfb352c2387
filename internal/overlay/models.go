package overlay

import (
	"encoding/json"
	"time"
)

// Type is the kind of annotation an overlay draws.
type Type string

const (
	TypeText  Type = "text"
	TypeLogo  Type = "logo"
	TypeImage Type = "image"
)

func (t Type) valid() bool {
	return t == TypeText || t == TypeLogo || t == TypeImage
}

const (
	defaultVisible = true
	defaultZIndex  = 1
)

// Position is the overlay's top-left corner in percent of the frame.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the overlay's box in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlay is a stored annotation document. The player renders visible
// overlays on top of every live stream; start requests may also burn them
// into the video.
type Overlay struct {
	ID        string         `json:"_id"`
	Name      string         `json:"name"`
	Type      Type           `json:"type"`
	Content   string         `json:"content"`
	Position  Position       `json:"position"`
	Size      Size           `json:"size"`
	Style     map[string]any `json:"style"`
	Visible   bool           `json:"visible"`
	ZIndex    int            `json:"z_index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Input is a create or update request body. Nil fields were absent.
// Position and Size stay raw so their shape can be checked the same way for
// both operations.
type Input struct {
	Name     *string         `json:"name"`
	Type     *string         `json:"type"`
	Content  *string         `json:"content"`
	Position json.RawMessage `json:"position"`
	Size     json.RawMessage `json:"size"`
	Style    map[string]any  `json:"style"`
	Visible  *bool           `json:"visible"`
	ZIndex   *int            `json:"z_index"`
}

// touchesCore reports whether the input changes a validated field.
func (in Input) touchesCore() bool {
	return in.Name != nil || in.Type != nil || in.Content != nil || in.Position != nil || in.Size != nil
}

// Filter narrows List results.
type Filter struct {
	Type        string
	VisibleOnly bool
}

func (f Filter) matches(o Overlay) bool {
	if f.Type != "" && string(o.Type) != f.Type {
		return false
	}
	if f.VisibleOnly && !o.Visible {
		return false
	}
	return true
}

func cloneOverlay(o Overlay) Overlay {
	if o.Style != nil {
		style := make(map[string]any, len(o.Style))
		for k, v := range o.Style {
			style[k] = v
		}
		o.Style = style
	}
	return o
}
