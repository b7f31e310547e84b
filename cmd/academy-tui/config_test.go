package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCLIConfig(t *testing.T) {
	t.Setenv("ACADEMY_UPDATE_INTERVAL", "")
	os.Unsetenv("ACADEMY_UPDATE_INTERVAL")
	t.Setenv("ACADEMY_SOCKET_PATH", "")
	os.Unsetenv("ACADEMY_SOCKET_PATH")

	tests := []struct {
		name         string
		configYAML   string
		wantInterval time.Duration
		wantSocket   string
		wantErr      bool
	}{
		{
			name:         "file values",
			configYAML:   "update-interval: 500ms\nsocket-path: /tmp/academy-test.sock\n",
			wantInterval: 500 * time.Millisecond,
			wantSocket:   "/tmp/academy-test.sock",
		},
		{
			name:       "zero interval rejected",
			configYAML: "update-interval: 0s\n",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			if err := os.WriteFile(path, []byte(tt.configYAML), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			cfg, err := loadCLIConfig(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("loadCLIConfig returned error: %v", err)
			}
			if cfg.UpdateInterval != tt.wantInterval {
				t.Fatalf("UpdateInterval = %s, want %s", cfg.UpdateInterval, tt.wantInterval)
			}
			if cfg.SocketPath != tt.wantSocket {
				t.Fatalf("SocketPath = %q, want %q", cfg.SocketPath, tt.wantSocket)
			}
		})
	}
}

func TestLoadCLIConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ACADEMY_UPDATE_INTERVAL", "")
	os.Unsetenv("ACADEMY_UPDATE_INTERVAL")

	cfg, err := loadCLIConfig(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("loadCLIConfig returned error: %v", err)
	}
	if cfg.UpdateInterval != defaultUpdateInterval {
		t.Fatalf("UpdateInterval = %s, want %s", cfg.UpdateInterval, defaultUpdateInterval)
	}
	if cfg.SocketPath == "" {
		t.Fatal("SocketPath should default to the service socket")
	}
}
