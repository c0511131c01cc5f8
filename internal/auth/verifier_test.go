package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestDevTokens(t *testing.T) {
	v := NewVerifier(Options{})
	p, err := v.Verify("t_demo:Planner")
	if err != nil || p.Tenant != "t_demo" || p.Role != RolePlanner {
		t.Fatalf("got %+v, %v", p, err)
	}
	if _, err := v.Verify("nocolon"); err == nil {
		t.Fatal("expected error for malformed dev token")
	}
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHMACTokens(t *testing.T) {
	v := NewVerifier(Options{Mode: "hmac", HMACSecret: "s3cret"})
	tok := signHS256(t, "s3cret", jwt.MapClaims{"tenant": "t1", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix()})
	p, err := v.Verify(tok)
	if err != nil || p.Tenant != "t1" || p.Role != RoleAdmin {
		t.Fatalf("got %+v, %v", p, err)
	}

	if _, err := v.Verify(signHS256(t, "wrong", jwt.MapClaims{"tenant": "t1"})); err == nil {
		t.Fatal("token signed with another secret verified")
	}
	if _, err := v.Verify(signHS256(t, "s3cret", jwt.MapClaims{"tenant": "t1", "exp": time.Now().Add(-time.Minute).Unix()})); err == nil {
		t.Fatal("expired token verified")
	}
	if _, err := v.Verify(signHS256(t, "s3cret", jwt.MapClaims{"role": "admin"})); err == nil {
		t.Fatal("token without tenant verified")
	}
	p, err = v.Verify(signHS256(t, "s3cret", jwt.MapClaims{"tenant": "t2"}))
	if err != nil || p.Role != RoleViewer {
		t.Fatalf("default role: %+v, %v", p, err)
	}
}

func TestJWKSTokens(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "k1",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"org": "t9", "role": "planner"})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifier(Options{Mode: "jwks", JWKSURL: srv.URL, TenantClaim: "org"})
	p, err := v.Verify(signed)
	if err != nil || p.Tenant != "t9" || p.Role != RolePlanner {
		t.Fatalf("got %+v, %v", p, err)
	}

	// an HS256 token must not pass in jwks mode
	if _, err := v.Verify(signHS256(t, "x", jwt.MapClaims{"org": "t9"})); err == nil {
		t.Fatal("HS256 token accepted in jwks mode")
	}
}
