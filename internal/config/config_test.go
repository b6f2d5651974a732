package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestFromViper_DefaultValues(t *testing.T) {
	cfg, err := FromViper(newViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.URL != DefaultURL {
		t.Errorf("expected URL %s, got %s", DefaultURL, cfg.URL)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("expected HTTPTimeout 30s, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.PollTimeout != 10*time.Minute {
		t.Errorf("expected PollTimeout 10m, got %v", cfg.PollTimeout)
	}
	if cfg.PollInitialDelay != time.Second || cfg.PollMaxDelay != 10*time.Second {
		t.Errorf("expected poll delays 1s/10s, got %v/%v", cfg.PollInitialDelay, cfg.PollMaxDelay)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("expected LogFormat text, got %s", cfg.LogFormat)
	}
	if cfg.Token != "" || cfg.TraceEndpoint != "" {
		t.Errorf("expected empty token and trace endpoint, got %q / %q", cfg.Token, cfg.TraceEndpoint)
	}
}

func TestFromViper_EnvVarOverrides(t *testing.T) {
	t.Setenv("VERIFY_URL", "http://custom:8080/")
	t.Setenv("VERIFY_TOKEN", " env-token ")
	t.Setenv("VERIFY_HTTP_TIMEOUT", "5s")
	t.Setenv("VERIFY_MAX_RETRIES", "-1")
	t.Setenv("VERIFY_POLL_TIMEOUT", "2m")
	t.Setenv("VERIFY_TRACE_ENDPOINT", "stdout")
	t.Setenv("VERIFY_LOG_FORMAT", "json")

	cfg, err := FromViper(newViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.URL != "http://custom:8080" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.URL)
	}
	if cfg.Token != "env-token" {
		t.Errorf("expected trimmed token, got %q", cfg.Token)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("expected HTTPTimeout 5s, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != -1 {
		t.Errorf("expected MaxRetries -1, got %d", cfg.MaxRetries)
	}
	if cfg.PollTimeout != 2*time.Minute {
		t.Errorf("expected PollTimeout 2m, got %v", cfg.PollTimeout)
	}
	if cfg.TraceEndpoint != "stdout" || cfg.LogFormat != "json" {
		t.Errorf("unexpected trace/log settings: %q %q", cfg.TraceEndpoint, cfg.LogFormat)
	}
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"empty url", "url", ""},
		{"retries below -1", "max_retries", -2},
		{"zero poll timeout", "poll_timeout", "0s"},
		{"unknown log format", "log_format", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			if _, err := FromViper(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.val)
			}
		})
	}
}

func TestReadFile_EnvOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verifyctl.yaml")
	content := `
url: "http://from-file:9000"
token: "file-token"
max_retries: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("VERIFY_TOKEN", "env-token")

	v := newViper()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.URL != "http://from-file:9000" {
		t.Errorf("expected URL from file, got %s", cfg.URL)
	}
	if cfg.Token != "env-token" {
		t.Errorf("expected token from env, got %s", cfg.Token)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries 5 from file, got %d", cfg.MaxRetries)
	}
}

func TestReadFile_MissingExplicitFile(t *testing.T) {
	if err := ReadFile(newViper(), "/nonexistent/path/to/config.yaml"); err == nil {
		t.Error("expected error for nonexistent config file")
	}
}

func TestReadFile_MissingDefaultFileIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := ReadFile(newViper(), ""); err != nil {
		t.Errorf("expected no error without a config file, got %v", err)
	}
}

func TestRequireToken(t *testing.T) {
	if err := (Config{}).RequireToken(); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	if err := (Config{Token: "x"}).RequireToken(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	content := `
type: npm
package: demo-lib
source: github
include:
  - src
  - package.json
`
	if err := os.WriteFile(filepath.Join(dir, ProjectFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProject(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != "npm" || p.Package != "demo-lib" || p.Source != "github" {
		t.Errorf("unexpected project: %+v", p)
	}
	if len(p.Include) != 2 || p.Include[0] != "src" || p.Include[1] != "package.json" {
		t.Errorf("unexpected include list: %v", p.Include)
	}
}

func TestLoadProject_Missing(t *testing.T) {
	p, err := LoadProject(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != "" || len(p.Include) != 0 {
		t.Errorf("expected empty project, got %+v", p)
	}
}

func TestLoadProject_Malformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ProjectFile), []byte("type: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(dir); err == nil {
		t.Error("expected error for malformed verify.yaml")
	}
}
