// Package canvas holds the editor's placement model: the element store, the
// drag state machine, and the rules that turn an element plus a data row into
// a positioned visual.
//
// Nothing in this package performs I/O. Callers serialize access per editor
// session; Store and DragController are not safe for concurrent use on their
// own.
package canvas

import (
	"fmt"
	"strings"
)

// Kind identifies what an element draws.
type Kind string

const (
	KindText      Kind = "text"
	KindSignature Kind = "signature"
	KindSeal      Kind = "seal"
)

// IsImage reports whether the kind uses the image attribute set.
func (k Kind) IsImage() bool {
	return k == KindSignature || k == KindSeal
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindText || k.IsImage()
}

// ParseKind converts a client-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("invalid element kind: %q", s)
	}
	return k, nil
}

// Fonts lists the font families offered by the editor. The first entry is the
// default for new text elements.
var Fonts = []string{
	"Inter",
	"Roboto",
	"Open Sans",
	"Lato",
	"Montserrat",
	"Source Sans Pro",
	"Raleway",
	"Ubuntu",
	"Nunito Sans",
	"Poppins",
	"Merriweather",
	"Playfair Display",
}

// Bounds enforced on attribute updates. They mirror the editor controls.
const (
	MinFontSize    = 8
	MaxFontSize    = 72
	MinImageWidth  = 50
	MaxImageWidth  = 500
	MinImageHeight = 25
	MaxImageHeight = 500
)

// Defaults for newly added elements.
const (
	DefaultFontSize    = 16
	DefaultColor       = "#000000"
	DefaultImageWidth  = 150
	DefaultImageHeight = 75
)

var (
	defaultTextPosition  = Point{X: 200, Y: 200}
	defaultImagePosition = Point{X: 200, Y: 300}
)

// Point is a position in container coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextAttrs are the attributes of a text field bound to a data column.
type TextAttrs struct {
	Column     string `json:"column"`
	FontSize   int    `json:"font_size"`
	FontFamily string `json:"font_family"`
	Color      string `json:"color"`
}

// ImageAttrs are the attributes of a signature or seal element. ImageRef is
// the id of an uploaded image asset and may be empty.
type ImageAttrs struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ImageRef string  `json:"image_ref,omitempty"`
}

// Element is a field placed on the certificate. (X, Y) is the anchor; the
// visual box is centered on it. Exactly one of Text or Image is set,
// according to Kind.
type Element struct {
	ID    string      `json:"id"`
	Kind  Kind        `json:"kind"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Text  *TextAttrs  `json:"text,omitempty"`
	Image *ImageAttrs `json:"image,omitempty"`
}

// Clone returns a deep copy so callers never alias store internals.
func (e Element) Clone() Element {
	c := e
	if e.Text != nil {
		t := *e.Text
		c.Text = &t
	}
	if e.Image != nil {
		img := *e.Image
		c.Image = &img
	}
	return c
}

// Patch is a partial update. Nil fields are left untouched; fields that do not
// apply to the element's kind are ignored.
type Patch struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`

	Column     *string `json:"column,omitempty"`
	FontSize   *int    `json:"font_size,omitempty"`
	FontFamily *string `json:"font_family,omitempty"`
	Color      *string `json:"color,omitempty"`

	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	ImageRef *string  `json:"image_ref,omitempty"`
}

// MoveTo builds a patch that only changes the anchor.
func MoveTo(x, y float64) Patch {
	return Patch{X: &x, Y: &y}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

func (p Patch) applyTo(e *Element) {
	if p.X != nil {
		e.X = *p.X
	}
	if p.Y != nil {
		e.Y = *p.Y
	}

	switch {
	case e.Text != nil:
		if p.Column != nil {
			e.Text.Column = *p.Column
		}
		if p.FontSize != nil {
			e.Text.FontSize = clampInt(*p.FontSize, MinFontSize, MaxFontSize)
		}
		if p.FontFamily != nil && IsAllowedFont(*p.FontFamily) {
			e.Text.FontFamily = *p.FontFamily
		}
		if p.Color != nil {
			if c, ok := NormalizeColor(*p.Color); ok {
				e.Text.Color = c
			}
		}
	case e.Image != nil:
		if p.Width != nil {
			e.Image.Width = clampFloat(*p.Width, MinImageWidth, MaxImageWidth)
		}
		if p.Height != nil {
			e.Image.Height = clampFloat(*p.Height, MinImageHeight, MaxImageHeight)
		}
		if p.ImageRef != nil {
			e.Image.ImageRef = *p.ImageRef
		}
	}
}

// IsAllowedFont reports whether family is one of Fonts.
func IsAllowedFont(family string) bool {
	for _, f := range Fonts {
		if f == family {
			return true
		}
	}
	return false
}

// NormalizeColor accepts "#rgb" or "#rrggbb" (any case) and returns the
// lower-case six digit form.
func NormalizeColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return "", false
	}
	hex := strings.ToLower(s[1:])
	for _, r := range hex {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", false
		}
	}
	switch len(hex) {
	case 6:
		return "#" + hex, true
	case 3:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}), true
	default:
		return "", false
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
