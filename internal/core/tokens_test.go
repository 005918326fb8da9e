package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, exp, err := issuer.Issue("session-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a compact JWT", token)
	}

	sid, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sid != "session-1" {
		t.Errorf("session id = %q, want session-1", sid)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	valid, _, _ := issuer.Issue("session-1")

	past := NewTokenIssuer(testSecret, time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, _ := past.Issue("session-1")

	dot := strings.LastIndex(valid, ".")
	flip := byte('A')
	if valid[dot+1] == 'A' {
		flip = 'B'
	}
	tampered := valid[:dot+1] + string(flip) + valid[dot+2:]

	other := NewTokenIssuer(strings.Repeat("x", 32), time.Hour)
	forged, _, _ := other.Issue("session-1")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong secret", forged},
		{"tampered signature", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
