package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Runner.Workers != 4 {
		t.Errorf("Runner.Workers = %d, want 4", cfg.Runner.Workers)
	}
	if cfg.Runner.SeedArg != "--RngRun" {
		t.Errorf("Runner.SeedArg = %q, want --RngRun", cfg.Runner.SeedArg)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want console", cfg.Logging.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"workers 0", func(c *Config) { c.Runner.Workers = 0 }, true},
		{"negative timeout", func(c *Config) { c.Runner.Timeout = -time.Second }, true},
		{"empty seed arg", func(c *Config) { c.Runner.SeedArg = "" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"json log format", func(c *Config) { c.Logging.Format = "json" }, false},
		{"metrics without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
runner:
  workers: 8
  timeout: 90s
  seed_arg: "--seed"
metrics:
  enabled: true
  addr: "127.0.0.1:9000"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runner.Workers != 8 {
		t.Errorf("Runner.Workers = %d, want 8", cfg.Runner.Workers)
	}
	if cfg.Runner.Timeout != 90*time.Second {
		t.Errorf("Runner.Timeout = %s, want 90s", cfg.Runner.Timeout)
	}
	if cfg.Runner.SeedArg != "--seed" {
		t.Errorf("Runner.SeedArg = %q, want --seed", cfg.Runner.SeedArg)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoadSweep(t *testing.T) {
	yamlContent := `
program: /opt/sim/wifi-phy-test
name: wifi-phy-test
storage: /tmp/campaigns/wifi
runs: 2
params:
  useRts: [false, true]
  mcs: [0, 7]
  distance: 10.5
`
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSweep(path)
	if err != nil {
		t.Fatalf("LoadSweep: %v", err)
	}
	if s.Runs != 2 || s.Name != "wifi-phy-test" {
		t.Errorf("sweep = %+v", s)
	}

	space, err := s.Space()
	if err != nil {
		t.Fatalf("Space: %v", err)
	}
	// File order is preserved.
	names := space.Names()
	if len(names) != 3 || names[0] != "useRts" || names[1] != "mcs" || names[2] != "distance" {
		t.Errorf("Names = %v, want [useRts mcs distance]", names)
	}
	if space.Size() != 4 {
		t.Errorf("Size = %d, want 4", space.Size())
	}
	varying := space.Varying()
	if len(varying) != 2 {
		t.Errorf("Varying = %v, want 2 axes", varying)
	}

	combos := space.Expand()
	if len(combos) != 4 {
		t.Fatalf("Expand produced %d combinations, want 4", len(combos))
	}
	if v, ok := combos[0].Get("distance"); !ok || v.String() != "10.5" {
		t.Errorf("distance = %v", v)
	}
}

func TestLoadSweepInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing program", "name: x\nstorage: /tmp/x\nruns: 1\nparams:\n  a: 1\n"},
		{"missing runs", "program: /bin/true\nname: x\nstorage: /tmp/x\nparams:\n  a: 1\n"},
		{"params not mapping", "program: /bin/true\nname: x\nstorage: /tmp/x\nruns: 1\nparams: [1, 2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sweep.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadSweep(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
