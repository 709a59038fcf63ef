package tuning

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoadRepoTuning(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !tu.RecoverResources || tu.SummaryMode() {
		t.Fatalf("unexpected flags: %+v", tu)
	}
	if tu.Display.MissingQtyFormat != "({3}$) {2}" {
		t.Fatalf("missing_qty_format=%q", tu.Display.MissingQtyFormat)
	}
	c := tu.Curve()
	if c.Factor("LaunchPad", 0, 0) != 1 || c.MinFactor != 0.1 {
		t.Fatalf("curve=%+v", c)
	}
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tu.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if tu.Saves.KeepLast != 20 || tu.Display.SummaryResources != 5 {
		t.Fatalf("defaults=%+v", tu)
	}
	if tu.Pricing.ScaleExponent != 3 {
		t.Fatalf("scale_exponent=%v", tu.Pricing.ScaleExponent)
	}
}

func TestLoadScaleExponentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("pricing:\n  scale_exponent: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Pricing.ScaleExponent != 2 {
		t.Fatalf("scale_exponent=%v", tu.Pricing.ScaleExponent)
	}
}

func TestLoadPartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("resource_display: SUMMARY\nrecover_resources: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !tu.SummaryMode() || tu.RecoverResources || tu.Settlement().RecoverResources {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Recovery.MaxFactor != 0.98 {
		t.Fatalf("default recovery lost: %+v", tu.Recovery)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"display":    "resource_display: fancy\n",
		"max_factor": "recovery:\n  max_factor: 1.5\n",
		"min_factor": "recovery:\n  min_factor: 0.99\n",
		"radius":     "recovery:\n  body_radius_m: 0\n",
		"exponent":   "pricing:\n  scale_exponent: -1\n",
		"yaml":       "recovery: [\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
			t.Fatalf("%s: expected tuning.yaml error, got %v", name, err)
		}
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("resource_display: detail\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Tuning, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, zap.NewNop(), func(tu Tuning) { got <- tu }) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(400 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case tu := <-got:
			if !tu.SummaryMode() {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-tick.C:
			// Rewrite until the watcher is registered and sees it.
			_ = os.WriteFile(path, []byte("resource_display: summary\n"), 0o644)
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
