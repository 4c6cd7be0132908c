package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("TRACKD_TEST_STR", "  value  ")
	if got := EnvString("TRACKD_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q want value", got)
	}
	if got := EnvString("TRACKD_TEST_STR_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString missing=%q want def", got)
	}
}

func TestEnvStringSlice(t *testing.T) {
	t.Setenv("TRACKD_TEST_SLICE", "https://a.example.com, https://b.example.com ,")
	got := EnvStringSlice("TRACKD_TEST_SLICE", nil)
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("EnvStringSlice=%v", got)
	}

	def := []string{"x"}
	if got := EnvStringSlice("TRACKD_TEST_SLICE_MISSING", def); len(got) != 1 || got[0] != "x" {
		t.Fatalf("EnvStringSlice missing=%v want [x]", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TRACKD_TEST_BOOL", "true")
	if !EnvBool("TRACKD_TEST_BOOL", false) {
		t.Fatal("EnvBool(true)=false")
	}
	t.Setenv("TRACKD_TEST_BOOL", "not-a-bool")
	if EnvBool("TRACKD_TEST_BOOL", false) {
		t.Fatal("EnvBool(garbage) should fall back to default")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TRACKD_TEST_INT", "42")
	if got := EnvInt("TRACKD_TEST_INT", 7); got != 42 {
		t.Fatalf("EnvInt=%d want 42", got)
	}
	t.Setenv("TRACKD_TEST_INT", "-1")
	if got := EnvInt("TRACKD_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt negative=%d want default 7", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TRACKD_TEST_DUR", "30s")
	if got := EnvDuration("TRACKD_TEST_DUR", time.Minute); got != 30*time.Second {
		t.Fatalf("EnvDuration=%v want 30s", got)
	}
	t.Setenv("TRACKD_TEST_DUR", "bogus")
	if got := EnvDuration("TRACKD_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration bogus=%v want default 1m", got)
	}
}
