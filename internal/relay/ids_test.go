package relay

import (
	"testing"
	"time"
)

func TestIDsAreDistinct(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	seen := map[string]struct{}{}

	for i := 0; i < 100; i++ {
		for _, mk := range []func(time.Time) (string, error){NewSessionID, NewClientID, NewStepUpID} {
			id, err := mk(now)
			if err != nil {
				t.Fatalf("id: %v", err)
			}
			if id == "" {
				t.Fatal("empty id")
			}
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate id %q", id)
			}
			seen[id] = struct{}{}
		}
	}
}
