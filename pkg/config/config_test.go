package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"168h", 168 * time.Hour},
		{"90d", 90 * 24 * time.Hour},
		{"1h30m", 90 * time.Minute}, // stdlib fallback
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if err != nil {
				t.Fatalf("ParseDuration(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("ParseDuration(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}

	for _, input := range []string{"banana", "d", "xd", "-3d"} {
		if _, err := ParseDuration(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestLookbackDays(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.LookbackDays(); got != 90 {
		t.Fatalf("expected 90 days, got %d", got)
	}

	cfg.LookbackPeriod = 36 * time.Hour
	if got := cfg.LookbackDays(); got != 2 {
		t.Fatalf("expected partial days rounded up, got %d", got)
	}

	cfg.LookbackPeriod = 0
	if got := cfg.LookbackDays(); got != 1 {
		t.Fatalf("expected floor of 1 day, got %d", got)
	}
}

func TestIsTableExcluded(t *testing.T) {
	cfg := &Config{ExcludeTables: []string{"Heartbeat", "AzureDiagnostics*", " "}}
	cfg.Normalize()

	cases := []struct {
		table string
		want  bool
	}{
		{"Heartbeat", true},
		{"heartbeat", true},
		{"AzureDiagnostics", true},
		{"AzureDiagnostics_CL", true},
		{"SigninLogs", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := cfg.IsTableExcluded(tc.table); got != tc.want {
			t.Fatalf("IsTableExcluded(%q) = %v, want %v", tc.table, got, tc.want)
		}
	}

	var nilCfg *Config
	if nilCfg.IsTableExcluded("anything") {
		t.Fatalf("nil config must exclude nothing")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `workspace_url: https://workspace.example.com
workspace_id: ws-1
region: westeurope
exclude_tables:
  - Heartbeat
  - "  "
format: json
lookback: 30d
rate_limit: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if fc.WorkspaceURL != "https://workspace.example.com" || fc.Region != "westeurope" {
		t.Fatalf("unexpected config: %+v", fc)
	}
	if len(fc.ExcludeTables) != 1 || fc.ExcludeTables[0] != "Heartbeat" {
		t.Fatalf("expected empty entries dropped, got %+v", fc.ExcludeTables)
	}
	if fc.RateLimit == nil || *fc.RateLimit != 5 {
		t.Fatalf("expected rate limit 5, got %+v", fc.RateLimit)
	}
}

func TestLoadFirstExistingFile(t *testing.T) {
	dir := t.TempDir()
	second := filepath.Join(dir, "b.yaml")
	if err := os.WriteFile(second, []byte("workspace_id: from-b\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	fc, loaded, err := LoadFirstExistingFile([]string{
		filepath.Join(dir, "missing.yaml"),
		second,
	})
	if err != nil {
		t.Fatalf("LoadFirstExistingFile: %v", err)
	}
	if loaded != second || fc.WorkspaceID != "from-b" {
		t.Fatalf("expected config from %s, got %s (%+v)", second, loaded, fc)
	}

	fc, loaded, err = LoadFirstExistingFile([]string{filepath.Join(dir, "missing.yaml")})
	if err != nil || fc != nil || loaded != "" {
		t.Fatalf("expected no config when nothing exists, got %+v %q %v", fc, loaded, err)
	}
}
