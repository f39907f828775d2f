package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{SettleDelay: -time.Second}.withDefaults()
	if o.UserAgent != defaultUserAgent {
		t.Errorf("UserAgent: got %q", o.UserAgent)
	}
	if o.NavTimeout != 60*time.Second {
		t.Errorf("NavTimeout: got %v", o.NavTimeout)
	}
	if o.SettleDelay != 0 {
		t.Errorf("SettleDelay: got %v", o.SettleDelay)
	}
	if o.AcceptLanguage == "" {
		t.Error("AcceptLanguage should default")
	}

	kept := Options{UserAgent: "ua", NavTimeout: time.Second}.withDefaults()
	if kept.UserAgent != "ua" || kept.NavTimeout != time.Second {
		t.Errorf("explicit values overwritten: %+v", kept)
	}
}

func TestFindChromeBinaryPrefersConfigured(t *testing.T) {
	if got := findChromeBinary("/custom/chrome"); got != "/custom/chrome" {
		t.Errorf("got %q", got)
	}

	bin := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(bin, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHROME_BIN", bin)
	if got := findChromeBinary(""); got != bin {
		t.Errorf("env: got %q, want %q", got, bin)
	}
}

func TestAllocatorOptionsAddsExecPath(t *testing.T) {
	base := len(allocatorOptions(Options{}, ""))
	if got := len(allocatorOptions(Options{}, "/bin/chrome")); got != base+1 {
		t.Errorf("got %d options, want %d", got, base+1)
	}
}

// Launches a real browser; opt in with BROWSER_TEST=1.
func TestSessionRelaunchAfterClose(t *testing.T) {
	if os.Getenv("BROWSER_TEST") == "" {
		t.Skip("BROWSER_TEST not set")
	}
	s := NewSession(Options{Headless: true, NavTimeout: 30 * time.Second}, nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p, err := s.NewPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Close()

	s.Close()
	p, err = s.NewPage(ctx)
	if err != nil {
		t.Fatalf("relaunch: %v", err)
	}
	defer p.Close()
	if err := p.Navigate(ctx, "about:blank"); err != nil {
		t.Fatal(err)
	}
}
