package relay

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
)

// NewPIN returns a fixed-width numeric verification code.
//
// PINs are intentionally low-entropy and human-enterable; uniqueness and
// unpredictability guarantees live in the session/step-up ids, never here.
// Leading zeros are allowed so the width is uniform for the UI.
func NewPIN(digits int) (string, error) {
	if digits <= 0 {
		digits = defaultPINDigits
	}

	buf := make([]byte, digits)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("relay: pin entropy: %w", err)
	}

	out := make([]byte, digits)
	for i, b := range buf {
		out[i] = '0' + b%10
	}
	return string(out), nil
}

// pinOptions returns count distinct codes containing pin exactly once,
// shuffled for a multiple-choice UI. Decoys share the PIN's width.
func pinOptions(pin string, count int) ([]string, error) {
	if count <= 0 {
		count = defaultPINOptionCount
	}
	if space := pow10(len(pin)); count > space {
		return nil, fmt.Errorf("relay: %d options exceed the %d-digit PIN space", count, len(pin))
	}

	seen := map[string]struct{}{pin: {}}
	opts := []string{pin}

	for len(opts) < count {
		decoy, err := NewPIN(len(pin))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[decoy]; dup {
			continue
		}
		seen[decoy] = struct{}{}
		opts = append(opts, decoy)
	}

	mrand.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	return opts, nil
}

func pow10(n int) int {
	out := 1
	for i := 0; i < n && out < 1<<30; i++ {
		out *= 10
	}
	return out
}
