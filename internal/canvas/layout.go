package canvas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyLayout is returned for layout files that place nothing.
var ErrEmptyLayout = errors.New("layout has no elements")

// Layout is a saved arrangement of elements together with the canvas size it
// was made on. Files may also hold a bare JSON array of elements, in which
// case Width and Height are zero and the caller picks a canvas.
type Layout struct {
	Width    float64   `json:"canvas_width,omitempty"`
	Height   float64   `json:"canvas_height,omitempty"`
	Elements []Element `json:"elements"`
}

// ReadLayout decodes a layout from r.
func ReadLayout(r io.Reader) (*Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	data = bytes.TrimSpace(data)

	var l Layout
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &l.Elements)
	} else {
		err = json.Unmarshal(data, &l)
	}
	if err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if len(l.Elements) == 0 {
		return nil, ErrEmptyLayout
	}
	return &l, nil
}

// Store loads the layout into a fresh store. Each element goes through Add,
// so unknown kinds are rejected and attributes are clamped like editor
// updates. Ids are reassigned.
func (l *Layout) Store() (*Store, error) {
	s := NewStore()
	for i, e := range l.Elements {
		if _, err := s.Add(e.Kind, patchFrom(e)); err != nil {
			return nil, fmt.Errorf("layout element %d: %w", i+1, err)
		}
	}
	return s, nil
}

func patchFrom(e Element) Patch {
	p := MoveTo(e.X, e.Y)
	if t := e.Text; t != nil {
		p.Column = &t.Column
		if t.FontSize != 0 {
			p.FontSize = &t.FontSize
		}
		if t.FontFamily != "" {
			p.FontFamily = &t.FontFamily
		}
		if t.Color != "" {
			p.Color = &t.Color
		}
	}
	if img := e.Image; img != nil {
		if img.Width != 0 {
			p.Width = &img.Width
		}
		if img.Height != 0 {
			p.Height = &img.Height
		}
		if img.ImageRef != "" {
			p.ImageRef = &img.ImageRef
		}
	}
	return p
}
