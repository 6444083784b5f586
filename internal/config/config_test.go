package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Bus.Adapter != "sim" {
		t.Fatalf("default adapter = %q, want sim", cfg.Bus.Adapter)
	}
	if cfg.Scan.Start != 0x03 || cfg.Scan.End != 0x77 {
		t.Fatalf("default scan range = 0x%02X..0x%02X", cfg.Scan.Start, cfg.Scan.End)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("default log level = %q", cfg.Log.Level)
	}
}

func TestParseFull(t *testing.T) {
	src := `
bus {
  adapter    = "ch341"
  vid        = "0x1A86"
  pid        = "0x5512"
  timeout_ms = 2000
}

scan {
  start = "0x08"
  end   = "0x3F"
  probe = ["0x00"]
}

log {
  level = "debug"
}
`
	cfg, err := Parse([]byte(src), "dvcdbg.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bus.Adapter != "ch341" || cfg.Bus.VID != 0x1A86 || cfg.Bus.PID != 0x5512 {
		t.Fatalf("bus = %+v", cfg.Bus)
	}
	if cfg.Bus.TimeoutMS != 2000 {
		t.Fatalf("timeout = %d, want 2000", cfg.Bus.TimeoutMS)
	}
	if cfg.Scan.Start != 0x08 || cfg.Scan.End != 0x3F {
		t.Fatalf("scan = %+v", cfg.Scan)
	}
	if !bytes.Equal(cfg.Scan.Probe, []byte{0x00}) {
		t.Fatalf("probe = %X, want 00", cfg.Scan.Probe)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Log.Level)
	}
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`log { level = "warn" }`), "dvcdbg.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Bus.Adapter != "sim" || cfg.Scan.End != 0x77 {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown adapter": `bus { adapter = "spi" }`,
		"duplicate block": "log { level = \"info\" }\nlog { level = \"debug\" }",
		"bad hex":         `scan { start = "0xZZ" }`,
		"inverted range":  "scan {\n start = \"0x50\"\n end = \"0x10\"\n}",
		"unknown attr":    `bus { speed = 400 }`,
	}
	for name, src := range cases {
		if _, err := Parse([]byte(src), "dvcdbg.hcl"); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bus.Adapter != "sim" {
		t.Fatalf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestParseDiagnosticsMentionFile(t *testing.T) {
	_, err := Parse([]byte(`bus {`), "dvcdbg.hcl")
	if err == nil || !strings.Contains(err.Error(), "dvcdbg.hcl") {
		t.Fatalf("diagnostics should carry the filename, got %v", err)
	}
}
