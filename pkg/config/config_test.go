package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
environment: test
server:
  port: 8080
execution:
  symbols: [AAPL, MSFT]
  method: union
  timeout: 2m
  max_workers: 8
  parallel: true
scanners:
  - id: volume_spike
    weight: 1.5
    enabled: true
    params:
      threshold: 2.5
  - id: gap
    weight: 1
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "test" {
		t.Fatalf("environment = %q", c.Environment)
	}
	if len(c.Scanners) != 2 || c.Scanners[0].ID != "volume_spike" {
		t.Fatalf("scanners parsed wrong: %+v", c.Scanners)
	}
	if c.Scanners[0].Params["threshold"] != 2.5 {
		t.Fatalf("params parsed wrong: %v", c.Scanners[0].Params)
	}
	if c.Execution.MaxWorkers != 8 {
		t.Fatalf("max_workers = %d", c.Execution.MaxWorkers)
	}
}

func TestValidateRejectsDuplicateScanner(t *testing.T) {
	body := sampleYAML + `
  - id: volume_spike
    weight: 1
    enabled: true
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("duplicate scanner id must fail validation")
	}
}

func TestValidateRejectsUnknownMethod(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c.Execution.Method = "median"
	if err := c.Validate(); err == nil {
		t.Fatalf("unknown method must fail validation")
	}
}

func TestLoadWithEnvOverridesSymbols(t *testing.T) {
	t.Setenv("SYMBOLS", "TSLA,NVDA")
	c, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Execution.Symbols) != 2 || c.Execution.Symbols[0] != "TSLA" {
		t.Fatalf("env override missing: %v", c.Execution.Symbols)
	}
}
