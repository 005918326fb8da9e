package artifacts

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}

	data := []byte("%PDF-1.4")
	if err := m.Put(ctx, "run/0", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data[0] = 'X'

	got, err := m.Get(ctx, "run/0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("Get = %q, stored value aliased caller's slice", got)
	}

	if err := m.Delete(ctx, "run/0", "never-stored"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "run/0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore(time.Minute)
	m.now = func() time.Time { return now }

	m.Put(ctx, "a", []byte("1"))
	m.Put(ctx, "b", []byte("2"))

	now = now.Add(30 * time.Second)
	m.Put(ctx, "c", []byte("3"))

	now = now.Add(45 * time.Second)
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired Get: err = %v, want ErrNotFound", err)
	}
	if removed := m.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if got := m.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
	if _, err := m.Get(ctx, "c"); err != nil {
		t.Errorf("Get unexpired: %v", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemoryStore(0).Put(ctx, "k", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Put: err = %v, want context.Canceled", err)
	}
}

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestSealer(t *testing.T) {
	s, err := NewSealer(testKey())
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	plain := []byte("certificate bytes")
	a, err := s.Seal("run/0", plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, _ := s.Seal("run/0", plain)
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext are identical; nonce not random")
	}

	got, err := s.Open("run/0", a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Open = %q, want %q", got, plain)
	}

	tests := []struct {
		name   string
		key    string
		sealed []byte
	}{
		{"wrong key", "run/1", a},
		{"flipped byte", "run/0", flip(a, len(a)-1)},
		{"truncated", "run/0", a[:10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Open(tt.key, tt.sealed); !errors.Is(err, ErrTampered) {
				t.Errorf("Open: err = %v, want ErrTampered", err)
			}
		})
	}
}

func flip(b []byte, i int) []byte {
	c := append([]byte(nil), b...)
	c[i] ^= 0xff
	return c
}

func TestNewSealerHex(t *testing.T) {
	if _, err := NewSealerHex(strings.Repeat("ab", 32)); err != nil {
		t.Errorf("valid key: %v", err)
	}
	if _, err := NewSealerHex("abcd"); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewSealerHex(strings.Repeat("zz", 32)); err == nil {
		t.Error("non-hex key accepted")
	}
}

func TestSealed(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore(time.Minute)
	s, _ := NewSealer(testKey())
	store := Sealed(inner, s)

	if err := store.Put(ctx, "run/0", []byte("secret")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, err := inner.Get(ctx, "run/0")
	if err != nil {
		t.Fatalf("inner Get: %v", err)
	}
	if bytes.Contains(raw, []byte("secret")) {
		t.Error("inner store holds plaintext")
	}

	got, err := store.Get(ctx, "run/0")
	if err != nil || string(got) != "secret" {
		t.Errorf("Get = %q, %v", got, err)
	}

	if err := store.Delete(ctx, "run/0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "run/0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v", err)
	}
}

func TestSealed_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	inner := NewMemoryStore(time.Minute)
	inner.now = func() time.Time { return now }
	s, _ := NewSealer(testKey())
	store := Sealed(inner, s)

	store.Put(ctx, "run/0", []byte("secret"))
	now = now.Add(2 * time.Minute)

	sw, ok := store.(Sweeper)
	if !ok {
		t.Fatal("sealed store does not forward Sweep")
	}
	if removed := sw.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if inner.Len() != 0 {
		t.Errorf("inner store still holds %d entries", inner.Len())
	}
}
