package orders

import "crypto/rand"

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderID returns a human-readable order identifier like "ORD-AB12CD".
// It is generated before the charge is created so the client path and the
// webhook path share it as their idempotency key.
func NewOrderID() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	out := make([]byte, 0, 10)
	out = append(out, "ORD-"...)
	for _, b := range buf {
		out = append(out, idAlphabet[int(b)%len(idAlphabet)])
	}
	return string(out)
}
