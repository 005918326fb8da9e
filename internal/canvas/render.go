package canvas

// render.go turns elements into positioned visuals.
//
// Render is the single place that dispatches on Kind. Every consumer (the
// JSON render endpoint, the HTML canvas, hit testing and the PDF binder)
// goes through it or through ResolveText, so preview and output agree.

import (
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Layer orders visuals on the canvas. Higher layers paint above lower ones.
type Layer int

const (
	LayerTemplate Layer = 0
	LayerText     Layer = 1
	LayerImage    Layer = 2
)

// Highlight is the affordance drawn around a visual.
type Highlight string

const (
	HighlightSelected Highlight = "selected"
	HighlightHover    Highlight = "hover"
)

// Padding around text content, matching the editor's field chrome.
const (
	textPadX = 8
	textPadY = 4
)

// lineHeight is the ratio of line box height to font size.
const lineHeight = 1.2

// Box is an axis-aligned rectangle in container coordinates.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Left+b.Width && y >= b.Top && y <= b.Top+b.Height
}

// centered returns a w×h box whose center is (x, y).
func centered(x, y, w, h float64) Box {
	return Box{Left: x - w/2, Top: y - h/2, Width: w, Height: h}
}

// TextVisual is the resolved content of a text element.
type TextVisual struct {
	Content     string `json:"content"`
	Placeholder bool   `json:"placeholder"`
	FontSize    int    `json:"font_size"`
	FontFamily  string `json:"font_family"`
	Color       string `json:"color"`
}

// ImageVisual is the resolved content of a signature or seal element.
// Empty is set when no asset is attached; the box is still drawn.
type ImageVisual struct {
	Ref   string `json:"ref,omitempty"`
	Empty bool   `json:"empty"`
}

// Visual is a positioned, render-ready element.
type Visual struct {
	ElementID string       `json:"element_id"`
	Kind      Kind         `json:"kind"`
	Layer     Layer        `json:"layer"`
	Order     int          `json:"order"`
	Box       Box          `json:"box"`
	Highlight Highlight    `json:"highlight"`
	Text      *TextVisual  `json:"text,omitempty"`
	Image     *ImageVisual `json:"image,omitempty"`
}

// ResolveText returns the cell for column in row, or the "[column]"
// placeholder when the row is nil, the key is missing or the cell is empty.
func ResolveText(column string, row map[string]string) (string, bool) {
	if v, ok := row[column]; ok && v != "" {
		return v, false
	}
	return "[" + column + "]", true
}

// MeasureText estimates the rendered size of s at fontSize pixels, including
// field padding. Advance widths come from the fixed 7x13 face scaled to the
// requested size, which is close enough for hit testing and layout preview.
func MeasureText(s string, fontSize int) (w, h float64) {
	face := basicfont.Face7x13
	scale := float64(fontSize) / float64(face.Height)
	adv := font.MeasureString(face, s)
	w = float64(adv.Ceil())*scale + 2*textPadX
	h = float64(fontSize)*lineHeight + 2*textPadY
	return w, h
}

// Render produces the visual for one element against a data row. order is
// the element's insertion index.
func Render(e Element, order int, row map[string]string, selected bool) Visual {
	v := Visual{
		ElementID: e.ID,
		Kind:      e.Kind,
		Order:     order,
		Highlight: HighlightHover,
	}
	if selected {
		v.Highlight = HighlightSelected
	}

	switch {
	case e.Text != nil:
		content, placeholder := ResolveText(e.Text.Column, row)
		w, h := MeasureText(content, e.Text.FontSize)
		v.Layer = LayerText
		v.Box = centered(e.X, e.Y, w, h)
		v.Text = &TextVisual{
			Content:     content,
			Placeholder: placeholder,
			FontSize:    e.Text.FontSize,
			FontFamily:  e.Text.FontFamily,
			Color:       e.Text.Color,
		}
	case e.Image != nil:
		v.Layer = LayerImage
		v.Box = centered(e.X, e.Y, e.Image.Width, e.Image.Height)
		v.Image = &ImageVisual{
			Ref:   e.Image.ImageRef,
			Empty: e.Image.ImageRef == "",
		}
	}
	return v
}

// RenderAll renders every element in paint order: by layer, then insertion.
func RenderAll(elements []Element, selectedID string, row map[string]string) []Visual {
	out := make([]Visual, 0, len(elements))
	for i, e := range elements {
		out = append(out, Render(e, i, row, e.ID == selectedID))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Layer != out[j].Layer {
			return out[i].Layer < out[j].Layer
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// SelectionLabel is the text of the selection indicator.
func SelectionLabel(e Element) string {
	if e.Text != nil {
		return "Text: " + e.Text.Column
	}
	return "Image: " + string(e.Kind)
}
