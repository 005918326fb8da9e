package canvas

// DragState is the controller's mode.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Rect is the container's bounding rectangle in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DragController translates pointer events into store mutations.
//
// While dragging, every move sets the element anchor to the pointer position
// relative to the container. Positions are not clamped.
type DragController struct {
	store  *Store
	state  DragState
	target string
}

// NewDragController returns an idle controller over store.
func NewDragController(store *Store) *DragController {
	return &DragController{store: store}
}

// State returns the current mode and, when dragging, the target id.
func (d *DragController) State() (DragState, string) {
	return d.state, d.target
}

// PointerDown selects the element and starts dragging it. Unknown ids are
// ignored and the controller stays as it was.
func (d *DragController) PointerDown(id string) bool {
	if !d.store.Select(id) {
		return false
	}
	d.state = Dragging
	d.target = id
	return true
}

// BackgroundDown handles a press on empty canvas. While idle it clears the
// selection. It never starts a drag.
func (d *DragController) BackgroundDown() {
	if d.state == Idle {
		d.store.ClearSelection()
	}
}

// PointerMove repositions the dragged element. It returns whether the store
// changed; idle moves and moves for an element removed mid-drag do nothing.
func (d *DragController) PointerMove(clientX, clientY float64, container Rect) bool {
	if d.state != Dragging {
		return false
	}
	return d.store.Update(d.target, MoveTo(clientX-container.Left, clientY-container.Top))
}

// PointerUp ends any drag.
func (d *DragController) PointerUp() {
	d.state = Idle
	d.target = ""
}

// Hit returns the topmost element whose visual box contains (x, y), given in
// container coordinates. row is the sample row used for text sizing.
func (d *DragController) Hit(x, y float64, row map[string]string) (string, bool) {
	visuals := RenderAll(d.store.Elements(), d.store.Selected(), row)
	for i := len(visuals) - 1; i >= 0; i-- {
		if visuals[i].Box.Contains(x, y) {
			return visuals[i].ElementID, true
		}
	}
	return "", false
}
