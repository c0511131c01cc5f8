package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex HMAC-SHA256>" where the
// MAC covers "<t>.<body>". Receivers reject stale timestamps to stop replays.
const SignatureHeader = "X-Signature"

var (
	ErrBadSignature   = errors.New("webhook signature mismatch")
	ErrStaleSignature = errors.New("webhook signature timestamp outside tolerance")
)

// Sign returns the header value for body signed at ts.
func Sign(secret string, body []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + mac(secret, t, body)
}

// Verify checks header against body. tolerance <= 0 skips the age check.
func Verify(secret string, body []byte, header string, now time.Time, tolerance time.Duration) error {
	var t, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			t = v
		case "v1":
			v1 = v
		}
	}
	sec, err := strconv.ParseInt(t, 10, 64)
	if err != nil || v1 == "" {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(v1)
	if err != nil {
		return ErrBadSignature
	}
	want, _ := hex.DecodeString(mac(secret, t, body))
	if !hmac.Equal(want, got) {
		return ErrBadSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(sec, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleSignature
		}
	}
	return nil
}

func mac(secret, t string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(t))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}
