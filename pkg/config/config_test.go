package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  address: "0.0.0.0"
  port: 9090
  db_path: "/var/lib/teamfeed"
security:
  rate_limit:
    rps: 10
    burst: 20
  api_keys:
    backend: ["bk1"]
    frontend: ["fk1", "fk2"]
directory:
  users:
    - id: u1
      name: Marina
  projects:
    - id: p1
      title: Website
notify:
  url: "https://hooks.example.com/inbox"
  workers: 4
  queue_capacity: 512
  deliver_timeout: 2s
  max_pooled_buffer_bytes: 64KB
feed:
  poll_interval: 45s
sweeper:
  enabled: true
  cron: "0 4 * * *"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Fatalf("unexpected addr: %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/var/lib/teamfeed" {
		t.Fatalf("unexpected db path: %q", cfg.Server.DBPath)
	}
	if len(cfg.Security.APIKeys.Frontend) != 2 {
		t.Fatalf("expected 2 frontend keys")
	}
	if cfg.Notify.Workers != 4 {
		t.Fatalf("expected 4 workers")
	}
	if cfg.Notify.DeliverTimeout.Duration() != 2*time.Second {
		t.Fatalf("unexpected deliver timeout: %v", cfg.Notify.DeliverTimeout.Duration())
	}
	if cfg.Notify.MaxPooledBufferBytes.Int64() != 64000 {
		t.Fatalf("unexpected buffer cap: %d", cfg.Notify.MaxPooledBufferBytes.Int64())
	}
	if cfg.Feed.PollInterval.Duration() != 45*time.Second {
		t.Fatalf("unexpected poll interval")
	}
	if !cfg.Sweeper.Enabled || cfg.Sweeper.Cron != "0 4 * * *" {
		t.Fatalf("sweeper config not parsed: %+v", cfg.Sweeper)
	}
	if len(cfg.Directory.Users) != 1 || cfg.Directory.Users[0].Name != "Marina" {
		t.Fatalf("directory users not parsed")
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr())
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [not a map")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("TEAMFEED_ADDR", "127.0.0.1:7070")
	t.Setenv("TEAMFEED_LOG_LEVEL", "debug")
	t.Setenv("TEAMFEED_API_BACKEND_KEYS", "envkey1, envkey2")

	cfg, err := LoadEffective(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:7070" {
		t.Fatalf("env addr should win, got %q", cfg.Addr())
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("env log level should win")
	}
	if len(cfg.Security.APIKeys.Backend) != 2 || cfg.Security.APIKeys.Backend[0] != "envkey1" {
		t.Fatalf("env backend keys should replace file keys: %v", cfg.Security.APIKeys.Backend)
	}
}

func TestRuntimeConfigCopiesOut(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"bk": {}},
		SigningKeys: map[string]struct{}{"sk": {}},
	})
	t.Cleanup(func() { SetRuntime(nil) })

	keys := GetSigningKeys()
	if _, ok := keys["sk"]; !ok {
		t.Fatalf("expected signing key present")
	}
	// mutating the returned map must not leak into the runtime config
	delete(keys, "sk")
	if _, ok := GetSigningKeys()["sk"]; !ok {
		t.Fatalf("returned map must be a copy")
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("/from/flag", true); got != "/from/flag" {
		t.Fatalf("flag should win, got %q", got)
	}
	t.Setenv("TEAMFEED_CONFIG", "/from/env")
	if got := ResolveConfigPath("", false); got != "/from/env" {
		t.Fatalf("env should win when no flag, got %q", got)
	}
}
