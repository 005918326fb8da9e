package canvas

import (
	"math"
	"testing"
)

func TestResolveText(t *testing.T) {
	tests := []struct {
		name            string
		column          string
		row             map[string]string
		want            string
		wantPlaceholder bool
	}{
		{"value present", "Name", map[string]string{"Name": "Ada"}, "Ada", false},
		{"missing key", "Course", map[string]string{"Name": "Ada"}, "[Course]", true},
		{"empty cell", "Name", map[string]string{"Name": ""}, "[Name]", true},
		{"nil row", "Name", nil, "[Name]", true},
		{"empty column name", "", map[string]string{"Name": "Ada"}, "[]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, placeholder := ResolveText(tt.column, tt.row)
			if got != tt.want || placeholder != tt.wantPlaceholder {
				t.Errorf("ResolveText(%q) = %q, %v; want %q, %v", tt.column, got, placeholder, tt.want, tt.wantPlaceholder)
			}
		})
	}
}

func TestRender_TextCenteredOnAnchor(t *testing.T) {
	e := Element{
		ID:   "text-1",
		Kind: KindText,
		X:    300,
		Y:    120,
		Text: &TextAttrs{Column: "Name", FontSize: 26, FontFamily: "Lato", Color: "#112233"},
	}

	v := Render(e, 0, map[string]string{"Name": "Grace Hopper"}, false)

	if v.Layer != LayerText {
		t.Errorf("Layer = %d, want %d", v.Layer, LayerText)
	}
	if v.Highlight != HighlightHover {
		t.Errorf("Highlight = %q, want hover", v.Highlight)
	}
	if v.Text == nil || v.Text.Content != "Grace Hopper" || v.Text.Placeholder {
		t.Fatalf("Text = %+v, want resolved content", v.Text)
	}
	if v.Text.FontFamily != "Lato" || v.Text.Color != "#112233" || v.Text.FontSize != 26 {
		t.Errorf("style = %+v, want Lato/#112233/26", v.Text)
	}

	cx := v.Box.Left + v.Box.Width/2
	cy := v.Box.Top + v.Box.Height/2
	if math.Abs(cx-300) > 1e-9 || math.Abs(cy-120) > 1e-9 {
		t.Errorf("box center = (%v, %v), want (300, 120)", cx, cy)
	}

	// Longer text yields a wider box.
	short := Render(e, 0, map[string]string{"Name": "Al"}, false)
	if short.Box.Width >= v.Box.Width {
		t.Errorf("short width %v >= long width %v", short.Box.Width, v.Box.Width)
	}
}

func TestRender_ImageWithoutAsset(t *testing.T) {
	e := Element{
		ID:    "seal-1",
		Kind:  KindSeal,
		X:     100,
		Y:     100,
		Image: &ImageAttrs{Width: 150, Height: 75},
	}

	v := Render(e, 3, nil, true)

	want := Box{Left: 25, Top: 62.5, Width: 150, Height: 75}
	if v.Box != want {
		t.Errorf("Box = %+v, want %+v", v.Box, want)
	}
	if v.Image == nil || !v.Image.Empty {
		t.Errorf("Image = %+v, want empty placeholder", v.Image)
	}
	if v.Highlight != HighlightSelected {
		t.Errorf("Highlight = %q, want selected", v.Highlight)
	}
	if v.Layer != LayerImage {
		t.Errorf("Layer = %d, want %d", v.Layer, LayerImage)
	}
}

func TestRenderAll_PaintOrder(t *testing.T) {
	els := []Element{
		{ID: "sig", Kind: KindSignature, Image: &ImageAttrs{Width: 150, Height: 75}},
		{ID: "t1", Kind: KindText, Text: &TextAttrs{Column: "A", FontSize: 16}},
		{ID: "seal", Kind: KindSeal, Image: &ImageAttrs{Width: 150, Height: 75}},
		{ID: "t2", Kind: KindText, Text: &TextAttrs{Column: "B", FontSize: 16}},
	}

	visuals := RenderAll(els, "t2", nil)

	want := []string{"t1", "t2", "sig", "seal"}
	if len(visuals) != len(want) {
		t.Fatalf("len = %d, want %d", len(visuals), len(want))
	}
	for i, id := range want {
		if visuals[i].ElementID != id {
			t.Errorf("visuals[%d] = %q, want %q", i, visuals[i].ElementID, id)
		}
	}
	if visuals[1].Highlight != HighlightSelected {
		t.Errorf("selected visual highlight = %q", visuals[1].Highlight)
	}
}

func TestSelectionLabel(t *testing.T) {
	text := Element{Kind: KindText, Text: &TextAttrs{Column: "Course"}}
	if got := SelectionLabel(text); got != "Text: Course" {
		t.Errorf("SelectionLabel(text) = %q", got)
	}
	sig := Element{Kind: KindSignature, Image: &ImageAttrs{}}
	if got := SelectionLabel(sig); got != "Image: signature" {
		t.Errorf("SelectionLabel(signature) = %q", got)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"text", "Signature", " seal "} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q) error: %v", s, err)
		}
	}
	if _, err := ParseKind("banner"); err == nil {
		t.Error("ParseKind(banner) should fail")
	}
}
