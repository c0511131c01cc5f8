package webhooks

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"type":"optimization.completed"}`)
	now := time.Unix(1_700_000_000, 0)
	sig := Sign("k", body, now)
	if !strings.HasPrefix(sig, "t=1700000000,v1=") {
		t.Fatalf("header = %q", sig)
	}
	if err := Verify("k", body, sig, now.Add(time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("should verify: %v", err)
	}
	if err := Verify("other", body, sig, now, 0); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret: %v", err)
	}
	if err := Verify("k", []byte(`{}`), sig, now, 0); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered body: %v", err)
	}
	if err := Verify("k", body, "t=1,v1=zz", now, 0); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("garbage: %v", err)
	}
	if err := Verify("k", body, sig, now.Add(time.Hour), 5*time.Minute); !errors.Is(err, ErrStaleSignature) {
		t.Fatalf("stale: %v", err)
	}
}
