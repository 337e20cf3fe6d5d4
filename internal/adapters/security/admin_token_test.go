package security

import (
	"errors"
	"testing"
	"time"

	"github.com/modvault/monetization-agent/internal/domain"
)

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewAdminTokenVerifier("secret")
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	token, err := v.Sign("admin-1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	actor, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if actor.SubjectID != "admin-1" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, _ := NewAdminTokenVerifier("secret")
	token, err := v.Sign("admin-1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Move the verifier clock past the expiry plus leeway.
	v.nowFn = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := v.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, _ := NewAdminTokenVerifier("secret-a")
	verifier, _ := NewAdminTokenVerifier("secret-b")
	token, err := signer.Sign("admin-1", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign signature, got %v", err)
	}
}

func TestVerifyRejectsNonAdminRole(t *testing.T) {
	v, _ := NewAdminTokenVerifier("secret")
	token, err := v.Sign("viewer-1", "viewer", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for viewer role, got %v", err)
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewAdminTokenVerifier(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
