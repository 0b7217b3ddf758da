package relay

import (
	"strconv"
	"testing"

	v1 "stronghold/contracts/stepup/v1"
)

func TestQueuePushDrain(t *testing.T) {
	t.Parallel()

	q := NewPollQueue(10)

	q.Push("id", v1.Event{Kind: v1.KindStepUpInitiated, Data: "a"})
	q.Push("id", v1.Event{Kind: v1.KindMobileMessage, Data: "b"})

	got := q.Drain("id")
	if len(got) != 2 {
		t.Fatalf("drain len=%d want=2", len(got))
	}
	if got[0].Data != "a" || got[1].Data != "b" {
		t.Fatalf("order broken: %+v", got)
	}

	// Drain removes everything atomically.
	if again := q.Drain("id"); again != nil {
		t.Fatalf("second drain=%+v want nil", again)
	}
}

func TestQueueDrainEmpty(t *testing.T) {
	t.Parallel()

	q := NewPollQueue(10)
	if got := q.Drain("ghost"); got != nil {
		t.Fatalf("drain ghost=%+v want nil", got)
	}
}

func TestQueueDropsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	q := NewPollQueue(3)

	for i := 0; i < 3; i++ {
		if !q.Push("id", v1.Event{Kind: v1.KindMobileMessage, Data: strconv.Itoa(i)}) {
			t.Fatalf("push %d dropped below capacity", i)
		}
	}
	if q.Push("id", v1.Event{Kind: v1.KindMobileMessage, Data: "3"}) {
		t.Fatal("push at capacity must report a drop")
	}

	got := q.Drain("id")
	if len(got) != 3 {
		t.Fatalf("len=%d want=3", len(got))
	}
	if got[0].Data != "1" || got[2].Data != "3" {
		t.Fatalf("oldest not dropped: %+v", got)
	}
}

func TestQueueDelete(t *testing.T) {
	t.Parallel()

	q := NewPollQueue(10)
	q.Push("id", v1.Event{Kind: v1.KindAuthComplete})
	q.Delete("id")

	if n := q.Len("id"); n != 0 {
		t.Fatalf("len after delete=%d", n)
	}
}

func TestQueueIsolatesIDs(t *testing.T) {
	t.Parallel()

	q := NewPollQueue(10)
	q.Push("a", v1.Event{Kind: v1.KindAuthComplete})
	q.Push("b", v1.Event{Kind: v1.KindAuthFailed})

	if got := q.Drain("a"); len(got) != 1 || got[0].Kind != v1.KindAuthComplete {
		t.Fatalf("a=%+v", got)
	}
	if got := q.Drain("b"); len(got) != 1 || got[0].Kind != v1.KindAuthFailed {
		t.Fatalf("b=%+v", got)
	}
}
