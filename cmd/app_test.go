package cmd

import (
	"testing"
)

func TestNewAppMemoryBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")

	a, err := newApp()
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.scraper.DefaultSource() != "rightmove" {
		t.Errorf("default source: got %q", a.scraper.DefaultSource())
	}
	if st := a.scraper.LimiterStatus(); st.MaxRequests != 8 {
		t.Errorf("limiter max requests: got %d, want 8", st.MaxRequests)
	}
}

func TestNewAppUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	if _, err := newApp(); err == nil {
		t.Error("expected error for unknown cache backend")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "search": false, "details": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
