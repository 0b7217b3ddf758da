package relay

import "testing"

func TestNewPIN(t *testing.T) {
	t.Parallel()

	for _, digits := range []int{1, 2, 4, 6} {
		pin, err := NewPIN(digits)
		if err != nil {
			t.Fatalf("NewPIN(%d): %v", digits, err)
		}
		if len(pin) != digits {
			t.Fatalf("NewPIN(%d) width=%d", digits, len(pin))
		}
		for _, c := range pin {
			if c < '0' || c > '9' {
				t.Fatalf("NewPIN(%d) non-digit %q in %q", digits, c, pin)
			}
		}
	}
}

func TestNewPINDefaultsWidth(t *testing.T) {
	t.Parallel()

	pin, err := NewPIN(0)
	if err != nil {
		t.Fatalf("NewPIN(0): %v", err)
	}
	if len(pin) != defaultPINDigits {
		t.Fatalf("default width=%d want=%d", len(pin), defaultPINDigits)
	}
}

func TestPinOptions(t *testing.T) {
	t.Parallel()

	opts, err := pinOptions("42", 3)
	if err != nil {
		t.Fatalf("pinOptions: %v", err)
	}
	if len(opts) != 3 {
		t.Fatalf("len=%d want=3", len(opts))
	}

	seen := map[string]int{}
	for _, o := range opts {
		seen[o]++
		if len(o) != 2 {
			t.Fatalf("decoy width mismatch: %q", o)
		}
	}
	if seen["42"] != 1 {
		t.Fatalf("true pin appears %d times, want exactly once", seen["42"])
	}
	for o, n := range seen {
		if n != 1 {
			t.Fatalf("duplicate option %q (%d times)", o, n)
		}
	}
}

func TestPinOptionsExceedsSpace(t *testing.T) {
	t.Parallel()

	// A 1-digit PIN has 10 possible codes; asking for more must fail
	// instead of looping forever hunting distinct decoys.
	if _, err := pinOptions("7", 11); err == nil {
		t.Fatal("expected error when option count exceeds the code space")
	}
}
