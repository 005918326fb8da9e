package core

import (
	"context"

	"github.com/JonMunkholm/certgen/internal/canvas"
)

// AddElement places a new field. Signature and seal elements pick up the
// session's uploaded image for their role.
func (s *Service) AddElement(ctx context.Context, id string, kind canvas.Kind, init canvas.Patch) (canvas.Element, error) {
	sess, err := s.session(id)
	if err != nil {
		return canvas.Element{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if asset, ok := sess.images[kind]; ok && init.ImageRef == nil {
		ref := asset.ID
		init.ImageRef = &ref
	}
	return sess.store.Add(kind, init)
}

// UpdateElement applies patch to an element and returns the result. An
// element that is already gone reports ok false; a field deleted while
// another request still edits it is not an error.
func (s *Service) UpdateElement(ctx context.Context, id, elementID string, patch canvas.Patch) (e canvas.Element, ok bool, err error) {
	sess, err := s.session(id)
	if err != nil {
		return canvas.Element{}, false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.store.Update(elementID, patch) {
		s.logger(ctx, id).Debug("update of removed element ignored", "element_id", elementID)
		return canvas.Element{}, false, nil
	}
	e, _ = sess.store.Get(elementID)
	return e, true, nil
}

// RemoveElement deletes an element. Removing an unknown id is a no-op and
// reports false.
func (s *Service) RemoveElement(ctx context.Context, id, elementID string) (bool, error) {
	sess, err := s.session(id)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.store.Remove(elementID), nil
}

// Select selects elementID, or clears the selection when it is empty or
// unknown. It returns the resulting selection.
func (s *Service) Select(ctx context.Context, id, elementID string) (string, error) {
	sess, err := s.session(id)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if elementID == "" {
		sess.store.ClearSelection()
	} else {
		sess.store.Select(elementID)
	}
	return sess.store.Selected(), nil
}

// PointerState is the drag controller's view after a pointer event.
type PointerState struct {
	Dragging bool            `json:"dragging"`
	Target   string          `json:"target,omitempty"`
	Selected string          `json:"selected,omitempty"`
	Changed  bool            `json:"changed"`
	Element  *canvas.Element `json:"element,omitempty"`
}

func (sess *Session) pointerState(changed bool) *PointerState {
	state, target := sess.drag.State()
	ps := &PointerState{
		Dragging: state == canvas.Dragging,
		Target:   target,
		Selected: sess.store.Selected(),
		Changed:  changed,
	}
	if target != "" {
		if e, ok := sess.store.Get(target); ok {
			ps.Element = &e
		}
	}
	return ps
}

// PointerDown starts dragging elementID. Unknown ids leave the editor as it
// was.
func (s *Service) PointerDown(ctx context.Context, id, elementID string) (*PointerState, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	started := sess.drag.PointerDown(elementID)
	return sess.pointerState(started), nil
}

// PointerDownAt hit-tests (x, y) in canvas coordinates. A hit starts a drag
// on the topmost element there; a miss is a background press.
func (s *Service) PointerDownAt(ctx context.Context, id string, x, y float64) (*PointerState, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if hit, ok := sess.drag.Hit(x, y, sess.sampleRow()); ok {
		return sess.pointerState(sess.drag.PointerDown(hit)), nil
	}
	sess.drag.BackgroundDown()
	return sess.pointerState(false), nil
}

// PointerMove moves the dragged element to the pointer.
func (s *Service) PointerMove(ctx context.Context, id string, clientX, clientY float64, container canvas.Rect) (*PointerState, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	moved := sess.drag.PointerMove(clientX, clientY, container)
	return sess.pointerState(moved), nil
}

// PointerUp ends any drag.
func (s *Service) PointerUp(ctx context.Context, id string) (*PointerState, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.drag.PointerUp()
	return sess.pointerState(false), nil
}

// Layout exports the placed elements with the session's canvas size, in
// the format the certgen CLI reads. Image references are dropped since
// asset ids only mean something inside this session.
func (s *Service) Layout(ctx context.Context, id string) (*canvas.Layout, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	elements := sess.store.Elements()
	for i := range elements {
		if elements[i].Image != nil {
			elements[i].Image.ImageRef = ""
		}
	}
	return &canvas.Layout{
		Width:    sess.canvas.W,
		Height:   sess.canvas.H,
		Elements: elements,
	}, nil
}
