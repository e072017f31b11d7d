package middleware

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientLimiterSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewClientLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || l.Allow("a") {
		t.Fatal("burst of 1 should allow exactly one request")
	}
	now = now.Add(30 * time.Second)
	l.Allow("b")
	now = now.Add(45 * time.Second)

	if n := l.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if !l.Allow("a") {
		t.Error("swept client should start with a fresh bucket")
	}
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	if got := extractClientIP(r); got != "192.0.2.1" {
		t.Errorf("remote addr: %q", got)
	}
	r.Header.Set("X-Real-IP", "192.0.2.2")
	if got := extractClientIP(r); got != "192.0.2.2" {
		t.Errorf("x-real-ip: %q", got)
	}
	r.Header.Set("X-Forwarded-For", "192.0.2.3, 10.0.0.1")
	if got := extractClientIP(r); got != "192.0.2.3" {
		t.Errorf("x-forwarded-for: %q", got)
	}
}
