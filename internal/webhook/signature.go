// Package webhook is the server-trusted confirmation channel. The client's
// claim of success is never authoritative — the browser can be offline,
// tampered with or dishonest — so the gateway signs every event and this
// package verifies that signature before anything is acted on.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the gateway signature.
const SignatureHeader = "Stripe-Signature"

// defaultTolerance bounds how old a signed timestamp may be. Replaying a
// captured delivery outside this window fails verification.
const defaultTolerance = 5 * time.Minute

var (
	// ErrSignatureInvalid covers a missing, malformed, stale or wrong
	// signature. The event must be discarded unprocessed.
	ErrSignatureInvalid = errors.New("webhook: invalid signature")
)

// VerifySignature checks the v1 scheme: the header carries a unix timestamp
// and one or more HMAC-SHA256 digests of "<timestamp>.<raw body>" keyed with
// the shared signing secret. Comparison is constant-time.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return fmt.Errorf("%w: missing %s header", ErrSignatureInvalid, SignatureHeader)
	}

	var ts int64 = -1
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
			ts = parsed
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts < 0 || len(candidates) == 0 {
		return fmt.Errorf("%w: header missing t or v1", ErrSignatureInvalid)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > defaultTolerance || age < -defaultTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(payload, ts, secret)
	for _, candidate := range candidates {
		got, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// Sign produces a valid signature header for a payload. Used by tests and
// local tooling to forge deliveries against a known secret.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(payload, ts, secret)))
}

func computeSignature(payload []byte, ts int64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
