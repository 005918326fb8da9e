package canvas

import (
	"fmt"

	"github.com/google/uuid"
)

// Store is the ordered element collection plus the selection cursor.
//
// Insertion order is preserved and doubles as the stacking order within a
// layer. The selection either is empty or names an element in the collection.
type Store struct {
	elements []Element
	selected string

	// newID is swappable in tests.
	newID func(Kind) string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{newID: defaultID}
}

func defaultID(k Kind) string {
	return fmt.Sprintf("%s-%s", k, uuid.NewString())
}

// Add appends a new element of the given kind with default attributes, then
// applies init on top of the defaults. The only error is an invalid kind.
func (s *Store) Add(kind Kind, init Patch) (Element, error) {
	if !kind.Valid() {
		return Element{}, fmt.Errorf("add element: invalid element kind: %q", kind)
	}

	e := Element{ID: s.uniqueID(kind), Kind: kind}
	if kind == KindText {
		e.X, e.Y = defaultTextPosition.X, defaultTextPosition.Y
		e.Text = &TextAttrs{
			FontSize:   DefaultFontSize,
			FontFamily: Fonts[0],
			Color:      DefaultColor,
		}
	} else {
		e.X, e.Y = defaultImagePosition.X, defaultImagePosition.Y
		e.Image = &ImageAttrs{
			Width:  DefaultImageWidth,
			Height: DefaultImageHeight,
		}
	}
	init.applyTo(&e)

	s.elements = append(s.elements, e)
	return e.Clone(), nil
}

// uniqueID asks the generator until it yields an id not already in use.
func (s *Store) uniqueID(kind Kind) string {
	for {
		id := s.newID(kind)
		if s.indexOf(id) < 0 {
			return id
		}
	}
}

// Update merges patch into the element with the given id. It returns false,
// and changes nothing, when the id is unknown.
func (s *Store) Update(id string, patch Patch) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	patch.applyTo(&s.elements[i])
	return true
}

// Remove deletes the element and clears the selection if it pointed at it.
// Removing an unknown id is a no-op that returns false.
func (s *Store) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	return true
}

// Select moves the cursor to id. An unknown id clears the selection.
func (s *Store) Select(id string) bool {
	if s.indexOf(id) < 0 {
		s.selected = ""
		return false
	}
	s.selected = id
	return true
}

// ClearSelection empties the cursor.
func (s *Store) ClearSelection() {
	s.selected = ""
}

// Selected returns the selected element id, or "" when nothing is selected.
func (s *Store) Selected() string {
	return s.selected
}

// SelectedElement returns a copy of the selected element.
func (s *Store) SelectedElement() (Element, bool) {
	if s.selected == "" {
		return Element{}, false
	}
	return s.Get(s.selected)
}

// Get returns a copy of the element with the given id.
func (s *Store) Get(id string) (Element, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return Element{}, false
	}
	return s.elements[i].Clone(), true
}

// Elements returns a copy of the collection in insertion order.
func (s *Store) Elements() []Element {
	out := make([]Element, len(s.elements))
	for i, e := range s.elements {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of elements.
func (s *Store) Len() int {
	return len(s.elements)
}

// Reset drops every element and the selection.
func (s *Store) Reset() {
	s.elements = nil
	s.selected = ""
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}
