// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/internal/testutil"
	"github.com/remcon/remcon/pkg/types"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Server.Port != types.DefaultListenPort {
		t.Errorf("expected default port %d, got %d", types.DefaultListenPort, cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if len(cfg.FileChannel.BaseDirs) != 3 {
		t.Errorf("expected three candidate base dirs, got %v", cfg.FileChannel.BaseDirs)
	}
	if cfg.FileChannel.PollInterval != 200*time.Millisecond {
		t.Errorf("expected poll interval 200ms, got %s", cfg.FileChannel.PollInterval)
	}
	if cfg.Scripts.Store != ScriptStoreFile {
		t.Errorf("expected file script store, got %s", cfg.Scripts.Store)
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.MustSetenv(t, "XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, path, err := Resolve(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if path != "" {
		t.Errorf("expected no resolved path, got %q", path)
	}
	if cfg.Server.Port != types.DefaultListenPort {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
	if cfg.FileChannel.BaseDirs[0] != "/run/user/1000/remcon" {
		t.Errorf("BaseDirs[0] = %q, want expanded XDG_RUNTIME_DIR", cfg.FileChannel.BaseDirs[0])
	}
}

func TestLoad_CUEFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), `
server: {
	port: 12000
	startup_timeout: "2s"
}
file_channel: {
	base_dirs: ["/srv/remcon", "/tmp/remcon"]
	poll_interval: "50ms"
	workers: 2
}
ui: color_scheme: "dark"
`)

	cfg, path, err := Resolve(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("resolved path = %q", path)
	}
	if cfg.Server.Port != 12000 {
		t.Errorf("Port = %d, want 12000", cfg.Server.Port)
	}
	if cfg.Server.StartupTimeout != 2*time.Second {
		t.Errorf("StartupTimeout = %s, want 2s", cfg.Server.StartupTimeout)
	}
	if cfg.Server.ShutdownTimeout != DefaultConfig().Server.ShutdownTimeout {
		t.Errorf("ShutdownTimeout should keep its default, got %s", cfg.Server.ShutdownTimeout)
	}
	if got := strings.Join(cfg.FileChannel.BaseDirs, ","); got != "/srv/remcon,/tmp/remcon" {
		t.Errorf("BaseDirs = %q", got)
	}
	if cfg.FileChannel.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %s, want 50ms", cfg.FileChannel.PollInterval)
	}
	if cfg.FileChannel.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.FileChannel.Workers)
	}
	if cfg.UI.ColorScheme != ColorSchemeDark {
		t.Errorf("ColorScheme = %q, want dark", cfg.UI.ColorScheme)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{"port out of range", `server: port: 70000`, "server.port"},
		{"bad duration", `file_channel: poll_interval: "soon"`, "file_channel.poll_interval"},
		{"unknown store", `scripts: store: "s3"`, "scripts.store"},
		{"unknown field", `servers: port: 1`, "servers"},
		{"empty base dirs", `file_channel: base_dirs: []`, "file_channel.base_dirs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.cue")
			testutil.MustWriteFile(t, path, tt.content)

			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should mention %q", err.Error(), tt.contains)
			}

			ae, ok := issue.As(err)
			if !ok {
				t.Fatalf("expected an ActionableError, got %T", err)
			}
			if ae.Issue != issue.ConfigLoadFailedId {
				t.Errorf("Issue = %d, want ConfigLoadFailedId", ae.Issue)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "absent.cue"),
	})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestLoad_RedisStoreRequiresAddr(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.cue")
	testutil.MustWriteFile(t, path, `scripts: {store: "redis", redis: addr: "localhost:6379"}`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Scripts.Store != ScriptStoreRedis || cfg.Scripts.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected scripts config: %+v", cfg.Scripts)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	testutil.MustSetenv(t, "REMCON_SERVER_PORT", "23456")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Port != 23456 {
		t.Errorf("Port = %d, want env override 23456", cfg.Server.Port)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvider().Load(ctx, LoadOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Server.Port = 15000
	cfg.FileChannel.BaseDirs = []string{"/a", "/b"}
	cfg.Metrics.Enabled = true

	path := filepath.Join(t.TempDir(), "config.cue")
	testutil.MustWriteFile(t, path, GenerateCUE(cfg))

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated CUE should load: %v", err)
	}
	if loaded.Server.Port != 15000 || !loaded.Metrics.Enabled {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if strings.Join(loaded.FileChannel.BaseDirs, ",") != "/a,/b" {
		t.Errorf("BaseDirs = %v", loaded.FileChannel.BaseDirs)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	defer Reset()

	path, created, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() returned error: %v", err)
	}
	if !created || path != filepath.Join(dir, "config.cue") {
		t.Fatalf("CreateDefaultConfig() = %q, %v", path, created)
	}

	testutil.MustWriteFile(t, path, "// edited\n")
	_, created, err = CreateDefaultConfig()
	if err != nil || created {
		t.Fatalf("second CreateDefaultConfig() = %v, %v; want existing file kept", created, err)
	}
	if testutil.MustReadFile(t, path) != "// edited\n" {
		t.Error("existing config file was overwritten")
	}
}

func TestConfigDir_Override(t *testing.T) {
	SetConfigDirOverride("/custom/dir")
	defer Reset()

	dir, err := ConfigDir()
	if err != nil || dir != "/custom/dir" {
		t.Errorf("ConfigDir() = %q, %v", dir, err)
	}
}

func TestExpandPath(t *testing.T) {
	testutil.MustSetenv(t, "REMCON_TEST_ROOT", "/data")
	os.Unsetenv("REMCON_TEST_UNSET")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/plain/dir", "/plain/dir", false},
		{"$REMCON_TEST_ROOT/remcon", "/data/remcon", false},
		{"${REMCON_TEST_UNSET:-/fallback}/x/", "/fallback/x", false},
		{"$REMCON_TEST_UNSET", "", true},
	}

	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExpandPath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
