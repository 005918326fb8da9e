package canvas

import "testing"

func TestDrag_FinalPositionTracksLastMove(t *testing.T) {
	s := NewStore()
	e, _ := s.Add(KindText, Patch{})
	d := NewDragController(s)
	container := Rect{Left: 100, Top: 50, Width: 800, Height: 600}

	if !d.PointerDown(e.ID) {
		t.Fatal("PointerDown on known id returned false")
	}
	if s.Selected() != e.ID {
		t.Errorf("Selected = %q, want %q", s.Selected(), e.ID)
	}

	moves := [][2]float64{{150, 80}, {300, 260}, {420, 330}}
	for _, m := range moves {
		if !d.PointerMove(m[0], m[1], container) {
			t.Fatalf("PointerMove(%v, %v) returned false while dragging", m[0], m[1])
		}
	}
	d.PointerUp()

	got, _ := s.Get(e.ID)
	if got.X != 320 || got.Y != 280 {
		t.Errorf("position = (%v, %v), want (320, 280)", got.X, got.Y)
	}

	// Moves after release do nothing.
	if d.PointerMove(0, 0, container) {
		t.Error("PointerMove after PointerUp changed the store")
	}
	got, _ = s.Get(e.ID)
	if got.X != 320 || got.Y != 280 {
		t.Errorf("position after idle move = (%v, %v), want (320, 280)", got.X, got.Y)
	}
}

func TestDrag_UnknownIDIgnored(t *testing.T) {
	s := NewStore()
	d := NewDragController(s)

	if d.PointerDown("ghost") {
		t.Error("PointerDown on unknown id returned true")
	}
	if state, _ := d.State(); state != Idle {
		t.Errorf("state = %v, want idle", state)
	}
}

func TestDrag_BackgroundDown(t *testing.T) {
	s := NewStore()
	e, _ := s.Add(KindSeal, Patch{})
	d := NewDragController(s)

	s.Select(e.ID)
	d.BackgroundDown()
	if s.Selected() != "" {
		t.Errorf("Selected = %q after background press, want empty", s.Selected())
	}
	if state, _ := d.State(); state != Idle {
		t.Errorf("state = %v, want idle", state)
	}

	// While dragging, a background press keeps the selection.
	d.PointerDown(e.ID)
	d.BackgroundDown()
	if s.Selected() != e.ID {
		t.Errorf("Selected = %q during drag, want %q", s.Selected(), e.ID)
	}
}

func TestDrag_RemovedMidDrag(t *testing.T) {
	s := NewStore()
	e, _ := s.Add(KindText, Patch{})
	other, _ := s.Add(KindText, Patch{})
	d := NewDragController(s)

	d.PointerDown(e.ID)
	s.Remove(e.ID)

	if d.PointerMove(10, 10, Rect{}) {
		t.Error("move for removed element reported a change")
	}
	got, _ := s.Get(other.ID)
	if got.X != 200 || got.Y != 200 {
		t.Errorf("unrelated element moved to (%v, %v)", got.X, got.Y)
	}

	d.PointerUp()
	if state, target := d.State(); state != Idle || target != "" {
		t.Errorf("state = %v/%q, want idle", state, target)
	}
}

func TestDrag_HitTopmostWins(t *testing.T) {
	s := NewStore()
	d := NewDragController(s)

	text, _ := s.Add(KindText, Patch{})
	sig, _ := s.Add(KindSignature, Patch{})
	s.Update(sig.ID, MoveTo(200, 200))
	seal, _ := s.Add(KindSeal, Patch{})
	s.Update(seal.ID, MoveTo(210, 200))

	tests := []struct {
		name   string
		x, y   float64
		wantID string
		wantOK bool
	}{
		{"image above text, later image on top", 205, 200, seal.ID, true},
		{"only earlier image covers", 130, 200, sig.ID, true},
		{"empty canvas", 700, 500, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := d.Hit(tt.x, tt.y, nil)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("Hit(%v, %v) = %q, %v; want %q, %v", tt.x, tt.y, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}

	s.Remove(sig.ID)
	s.Remove(seal.ID)
	if id, ok := d.Hit(200, 200, nil); !ok || id != text.ID {
		t.Errorf("Hit on text = %q, %v; want %q", id, ok, text.ID)
	}
}
