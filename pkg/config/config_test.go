package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/camconfig/pkg/prop"
)

const sample = `
board: volteer
boards:
  volteer:
    aspect_order: ["16:9", "4:3"]
  brya:
    aspect_order: ["4:3"]
screen:
  width: 1920
  height: 1080
watchdog_interval: 250ms
redis:
  addr: localhost:6379
  prefix: "cam:"
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camconfig.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	order := cfg.AspectOrder()
	if len(order) != 2 || order[0] != prop.Aspect16x9 || order[1] != prop.Aspect4x3 {
		t.Errorf("expected [16:9 4:3], got %v", order)
	}
	if s := cfg.ScreenSize(); s != (prop.Resolution{Width: 1920, Height: 1080}) {
		t.Errorf("expected 1920x1080 screen, got %v", s)
	}
	if w := cfg.Watchdog(); w != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", w)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Prefix != "cam:" {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AspectOrder() != nil {
		t.Errorf("expected no aspect order, got %v", cfg.AspectOrder())
	}
	if cfg.Watchdog() != DefaultWatchdogInterval {
		t.Errorf("expected default watchdog interval, got %v", cfg.Watchdog())
	}
}

func TestInvalid(t *testing.T) {
	testCases := map[string]string{
		"UnknownBoard":  "board: nope",
		"BadAspect":     "boards: {a: {aspect_order: [\"7:5\"]}}",
		"NegativeWidth": "screen: {width: -1}",
		"BadInterval":   "watchdog_interval: soon",
		"NotYAML":       "board: [",
	}
	for name, doc := range testCases {
		doc := doc
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}
