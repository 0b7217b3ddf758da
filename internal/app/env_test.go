package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("TEST_ENV_STRING", "  value  ")
	if got := EnvString("TEST_ENV_STRING", "def"); got != "value" {
		t.Fatalf("got %q", got)
	}
	if got := EnvString("TEST_ENV_STRING_MISSING", "def"); got != "def" {
		t.Fatalf("got %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_ENV_BOOL", "true")
	if !EnvBool("TEST_ENV_BOOL", false) {
		t.Fatal("want true")
	}
	t.Setenv("TEST_ENV_BOOL", "nonsense")
	if !EnvBool("TEST_ENV_BOOL", true) {
		t.Fatal("garbage must fall back to default")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "42")
	if got := EnvInt("TEST_ENV_INT", 7); got != 42 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("TEST_ENV_INT", "-3")
	if got := EnvInt("TEST_ENV_INT", 7); got != 7 {
		t.Fatalf("non-positive must fall back, got %d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_ENV_DUR", "250ms")
	if got := EnvDuration("TEST_ENV_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("got %v", got)
	}
	t.Setenv("TEST_ENV_DUR", "bogus")
	if got := EnvDuration("TEST_ENV_DUR", time.Second); got != time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestEnvStrings(t *testing.T) {
	t.Setenv("TEST_ENV_STRINGS", "a, b ,,c")
	got := EnvStrings("TEST_ENV_STRINGS", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	t.Setenv("TEST_ENV_STRINGS", " , ,")
	if got := EnvStrings("TEST_ENV_STRINGS", []string{"def"}); len(got) != 1 || got[0] != "def" {
		t.Fatalf("blank list must fall back, got %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr == "" {
		t.Fatal("empty HTTPAddr")
	}
	if cfg.PINDigits != 2 {
		t.Fatalf("PINDigits=%d", cfg.PINDigits)
	}
	if cfg.PINOptionCount != 3 {
		t.Fatalf("PINOptionCount=%d", cfg.PINOptionCount)
	}
	if cfg.CleanupDelay != time.Second {
		t.Fatalf("CleanupDelay=%v", cfg.CleanupDelay)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STRONGHOLD_PIN_DIGITS", "4")
	t.Setenv("STRONGHOLD_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg := LoadConfig()

	if cfg.PINDigits != 4 {
		t.Fatalf("PINDigits=%d", cfg.PINDigits)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins=%v", cfg.AllowedOrigins)
	}
}
