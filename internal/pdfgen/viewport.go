package pdfgen

// Default editor canvas size in pixels, used when the client did not report one.
const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 600
)

// Size is a width and height pair.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

func (s Size) valid() bool {
	return s.W > 0 && s.H > 0
}

// Viewport maps editor canvas pixels onto PDF points. The editor shows the
// template scaled to fit inside the canvas and centered, so a canvas point
// maps to the page by removing the letterbox offset and dividing by the scale.
type Viewport struct {
	Scale   float64 `json:"scale"` // canvas pixels per PDF point
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Fit returns the viewport for a page of size page shown in canvas.
func Fit(canvas, page Size) Viewport {
	if !canvas.valid() {
		canvas = Size{W: DefaultCanvasWidth, H: DefaultCanvasHeight}
	}
	if !page.valid() {
		return Viewport{Scale: 1}
	}

	scale := canvas.W / page.W
	if s := canvas.H / page.H; s < scale {
		scale = s
	}
	return Viewport{
		Scale:   scale,
		OffsetX: (canvas.W - page.W*scale) / 2,
		OffsetY: (canvas.H - page.H*scale) / 2,
	}
}

// ToPage converts a canvas point to page coordinates.
func (v Viewport) ToPage(x, y float64) (float64, float64) {
	return (x - v.OffsetX) / v.Scale, (y - v.OffsetY) / v.Scale
}

// Length converts a canvas length to page units.
func (v Viewport) Length(l float64) float64 {
	return l / v.Scale
}
