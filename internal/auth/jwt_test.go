package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	a := NewJWTAuthority("test-secret", time.Hour)
	actor := Actor{UserID: "u1", ProfileID: "p1", Role: RolePatient}

	token, err := a.Issue(actor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := a.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != actor {
		t.Errorf("actor = %+v, want %+v", got, actor)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTAuthority("secret-a", time.Hour)
	verifier := NewJWTAuthority("secret-b", time.Hour)

	token, err := issuer.Issue(Actor{UserID: "u1", Role: RoleDoctor})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := NewJWTAuthority("test-secret", time.Hour)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := a.Issue(Actor{UserID: "u1", Role: RolePatient})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	a.now = time.Now
	if _, err := a.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a := NewJWTAuthority("test-secret", time.Hour)
	for _, tok := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := a.Verify(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: got %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	a := NewJWTAuthority("test-secret", time.Hour)
	token, err := a.Issue(Actor{UserID: "u1", Role: "superuser"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := a.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}
