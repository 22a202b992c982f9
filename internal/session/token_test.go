package session

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignParseRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", false)
	sid := NewSessionID()
	tok, err := iss.Sign(sid, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	got, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != sid {
		t.Fatalf("session id = %q, want %q", got, sid)
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	iss := NewIssuer("secret", false)
	expired, err := iss.Sign("s1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := iss.Parse(expired); err != ErrInvalidToken {
		t.Fatalf("expired token: err = %v, want ErrInvalidToken", err)
	}

	other := NewIssuer("other-secret", false)
	foreign, err := other.Sign("s1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := iss.Parse(foreign); err != ErrInvalidToken {
		t.Fatalf("foreign token: err = %v, want ErrInvalidToken", err)
	}
	if _, err := iss.Parse("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("garbage: err = %v, want ErrInvalidToken", err)
	}
}

func TestCookieFromRequest(t *testing.T) {
	iss := NewIssuer("secret", true)
	c, err := iss.Cookie("s1", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Cookie: %v", err)
	}
	if !c.HttpOnly || !c.Secure || c.Name != CookieName {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}

	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := iss.FromRequest(req); ok {
		t.Fatal("request without cookie resolved a session")
	}
	req.AddCookie(c)
	sid, ok := iss.FromRequest(req)
	if !ok || sid != "s1" {
		t.Fatalf("FromRequest = %q, %v", sid, ok)
	}
}
