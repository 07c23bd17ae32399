package auth

import (
	"testing"
	"time"
)

func TestJWT_SignVerifyRoundTrip(t *testing.T) {
	j := JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour}

	token, expiresAt, err := j.Sign(Claims{UserID: "alice", IsAdmin: true})
	if err != nil {
		t.Fatalf("sign err=%v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiresAt in the past: %v", expiresAt)
	}

	claims, err := j.Verify(token)
	if err != nil {
		t.Fatalf("verify err=%v", err)
	}
	if claims.UserID != "alice" || !claims.IsAdmin {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	j := JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour}
	token, _, err := j.Sign(Claims{UserID: "alice"})
	if err != nil {
		t.Fatalf("sign err=%v", err)
	}

	other := JWT{Secret: []byte("different"), TokenTTL: time.Hour}
	if _, err := other.Verify(token); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestJWT_GarbageToken(t *testing.T) {
	j := JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour}
	if _, err := j.Verify("not-a-token"); err == nil {
		t.Fatalf("expected error for garbage token")
	}
}
