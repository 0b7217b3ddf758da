package relay

import (
	"errors"
	"testing"
)

func TestMapperCreateResolve(t *testing.T) {
	t.Parallel()

	m := NewMapper()

	if err := m.Create("token-1", "client-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := m.Resolve("token-1")
	if err != nil || got != "client-1" {
		t.Fatalf("resolve=%q err=%v", got, err)
	}

	// Tokens are immutable once bound.
	if err := m.Create("token-1", "client-2"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("rebind: %v want ErrInvalidInput", err)
	}
}

func TestMapperCreateRejectsEmpty(t *testing.T) {
	t.Parallel()

	m := NewMapper()
	if err := m.Create("", "client"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty token: %v", err)
	}
	if err := m.Create("token", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty target: %v", err)
	}
}

func TestMapperDelete(t *testing.T) {
	t.Parallel()

	m := NewMapper()
	if err := m.Create("token-1", "client-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	m.Delete("token-1")
	if _, err := m.Resolve("token-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve after delete: %v", err)
	}
}

func TestMapperDeleteTarget(t *testing.T) {
	t.Parallel()

	m := NewMapper()
	for _, tok := range []string{"t1", "t2"} {
		if err := m.Create(tok, "client-1"); err != nil {
			t.Fatalf("create %s: %v", tok, err)
		}
	}
	if err := m.Create("t3", "client-2"); err != nil {
		t.Fatalf("create t3: %v", err)
	}

	m.DeleteTarget("client-1")

	for _, tok := range []string{"t1", "t2"} {
		if _, err := m.Resolve(tok); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s survived target delete: %v", tok, err)
		}
	}
	if got, err := m.Resolve("t3"); err != nil || got != "client-2" {
		t.Fatalf("unrelated token lost: %q %v", got, err)
	}
}
