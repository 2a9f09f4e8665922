package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Port != 8095 {
		t.Errorf("Service.Port = %d, want 8095", cfg.Service.Port)
	}
	if cfg.Fetcher.UserAgent != "TaxPageMonitor/1.0" {
		t.Errorf("Fetcher.UserAgent = %q", cfg.Fetcher.UserAgent)
	}
	if cfg.Fetcher.Timeout != 30*time.Second {
		t.Errorf("Fetcher.Timeout = %v, want 30s", cfg.Fetcher.Timeout)
	}
	if cfg.Crawl.Workers != 4 {
		t.Errorf("Crawl.Workers = %d, want 4", cfg.Crawl.Workers)
	}
	if cfg.Crawl.DefaultScope != "default" {
		t.Errorf("Crawl.DefaultScope = %q, want default", cfg.Crawl.DefaultScope)
	}
	if cfg.Ingest.Driver != config.IngestDriverNone {
		t.Errorf("Ingest.Driver = %q, want none", cfg.Ingest.Driver)
	}
	if !cfg.Classifier.RequireCosmetic() {
		t.Error("RequireCosmetic() = false, want true by default")
	}
	if len(cfg.Schedule.Scopes) != 1 || cfg.Schedule.Scopes[0] != "default" {
		t.Errorf("Schedule.Scopes = %v, want [default]", cfg.Schedule.Scopes)
	}
	if len(cfg.Discovery.Sources) == 0 {
		t.Error("expected built-in discovery sources")
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("CRAWL_WORKERS", "8")
	t.Setenv("SCHEDULE_SCOPES", "default, wa ,")

	path := writeConfig(t, `
service:
  port: 9000
crawl:
  workers: 2
  request_delay: 1s
classifier:
  max_cosmetic_lines: 3
  require_cosmetic_match: false
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Port != 9000 {
		t.Errorf("Service.Port = %d, want 9000", cfg.Service.Port)
	}
	if cfg.Crawl.Workers != 8 {
		t.Errorf("Crawl.Workers = %d, want env value 8", cfg.Crawl.Workers)
	}
	if cfg.Crawl.RequestDelay != time.Second {
		t.Errorf("Crawl.RequestDelay = %v, want 1s", cfg.Crawl.RequestDelay)
	}
	if cfg.Classifier.MaxCosmeticLines != 3 {
		t.Errorf("MaxCosmeticLines = %d, want 3", cfg.Classifier.MaxCosmeticLines)
	}
	if cfg.Classifier.RequireCosmetic() {
		t.Error("RequireCosmetic() = true, want false")
	}
	if len(cfg.Schedule.Scopes) != 2 || cfg.Schedule.Scopes[1] != "wa" {
		t.Errorf("Schedule.Scopes = %v, want [default wa]", cfg.Schedule.Scopes)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	path := writeConfig(t, "service: [unclosed")
	if _, err := config.Load(path); err == nil {
		t.Fatal("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "bad port",
			body:      "service:\n  port: 70000\n",
			wantField: "service.port",
		},
		{
			name:      "bad log level",
			body:      "logging:\n  level: loud\n",
			wantField: "logging.level",
		},
		{
			name:      "http ingest without url",
			body:      "ingest:\n  driver: http\n",
			wantField: "ingest.http.url",
		},
		{
			name:      "unknown ingest driver",
			body:      "ingest:\n  driver: kafka\n",
			wantField: "ingest.driver",
		},
		{
			name:      "bad cosmetic pattern",
			body:      "classifier:\n  cosmetic_patterns: ['(unclosed']\n",
			wantField: "classifier.cosmetic_patterns",
		},
		{
			name:      "bad runs per day",
			body:      "schedule:\n  default_runs_per_day: 3\n",
			wantField: "schedule.default_runs_per_day",
		},
		{
			name:      "relative discovery url",
			body:      "discovery:\n  sources:\n    - name: x\n      kind: feed\n      url: /feed\n",
			wantField: "discovery.sources[0].url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() expected validation error")
			}

			var vErr *config.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := config.GetConfigPath("config.yml"); got != "config.yml" {
		t.Errorf("GetConfigPath() = %q, want config.yml", got)
	}

	t.Setenv("CONFIG_PATH", "/etc/pagemonitor.yml")
	if got := config.GetConfigPath("config.yml"); got != "/etc/pagemonitor.yml" {
		t.Errorf("GetConfigPath() = %q, want env value", got)
	}
}
