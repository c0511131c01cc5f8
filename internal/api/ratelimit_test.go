package api

import "testing"

func TestTenantLimiterIsPerTenant(t *testing.T) {
	l := NewTenantLimiter(0.001, 2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("tenant b has its own bucket")
	}
	if l.RetryAfter() <= 0 {
		t.Fatal("RetryAfter must be positive")
	}
}
