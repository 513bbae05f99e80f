package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func TestVerifySignatureAcceptsValid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()
	header := Sign(payload, testSecret, now)

	require.NoError(t, VerifySignature(payload, header, testSecret, now))
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":4700}`)
	now := time.Now()
	header := Sign(payload, testSecret, now)

	tampered := []byte(`{"amount":1}`)
	assert.ErrorIs(t, VerifySignature(tampered, header, testSecret, now), ErrSignatureInvalid)
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := Sign(payload, "whsec_other", now)

	assert.ErrorIs(t, VerifySignature(payload, header, testSecret, now), ErrSignatureInvalid)
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)
	header := Sign(payload, testSecret, signedAt)

	// A replay of an old capture is outside the tolerance window.
	assert.ErrorIs(t, VerifySignature(payload, header, testSecret, time.Now()), ErrSignatureInvalid)
}

func TestVerifySignatureRejectsFutureTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := Sign(payload, testSecret, now.Add(10*time.Minute))

	assert.ErrorIs(t, VerifySignature(payload, header, testSecret, now), ErrSignatureInvalid)
}

func TestVerifySignatureRejectsMalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()

	for _, header := range []string{
		"",
		"t=abc,v1=deadbeef",
		"v1=deadbeef",
		"t=1700000000",
		"nonsense",
	} {
		assert.ErrorIs(t, VerifySignature(payload, header, testSecret, now), ErrSignatureInvalid, "header %q", header)
	}
}

func TestVerifySignatureAcceptsSecondCandidate(t *testing.T) {
	// During secret rotation the gateway sends one v1 per active secret.
	payload := []byte(`{"id":"evt_2"}`)
	now := time.Now()
	valid := Sign(payload, testSecret, now)
	stale := Sign(payload, "whsec_retired", now)
	// stale is "t=<ts>,v1=<bad>"; append the good digest as a second candidate.
	goodDigest := valid[len(valid)-64:]
	combined := stale + ",v1=" + goodDigest

	require.NoError(t, VerifySignature(payload, combined, testSecret, now))
}

func TestVerifySignatureWithinTolerance(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := Sign(payload, testSecret, now.Add(-4*time.Minute))

	require.NoError(t, VerifySignature(payload, header, testSecret, now))
}
