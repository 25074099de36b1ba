package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "4000" {
		t.Errorf("expected default port 4000, got %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Server.InstanceID == "" {
		t.Errorf("instance id must be generated when unset")
	}
	if !cfg.Sweep.Enabled {
		t.Errorf("sweep should default to enabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: "9000"
  mode: "release"
  instance_id: "node-1"
database:
  driver: "postgres"
  dsn: "host=db user=stage dbname=distributor"
redis:
  enabled: true
  addr: "redis:6379"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Server.Mode != "release" {
		t.Errorf("server section not parsed: %+v", cfg.Server)
	}
	if cfg.Server.InstanceID != "node-1" {
		t.Errorf("instance id not parsed: %s", cfg.Server.InstanceID)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("database section not parsed: %+v", cfg.Database)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis section not parsed: %+v", cfg.Redis)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8123")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("INSTANCE_ID", "env-node")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8123" {
		t.Errorf("SERVER_PORT override not applied: %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("DB_DRIVER override not applied: %s", cfg.Database.Driver)
	}
	if cfg.Server.InstanceID != "env-node" {
		t.Errorf("INSTANCE_ID override not applied: %s", cfg.Server.InstanceID)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantAddr     string
		wantPassword string
		wantDB       int
	}{
		{"plain", "redis://localhost:6379/0", "localhost:6379", "", 0},
		{"password", "redis://:secret@redis.internal:6380/2", "redis.internal:6380", "secret", 2},
		{"no db", "redis://cache:6379", "cache:6379", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.parseRedisURL(tt.url)
			if cfg.Redis.Addr != tt.wantAddr {
				t.Errorf("addr = %s, want %s", cfg.Redis.Addr, tt.wantAddr)
			}
			if cfg.Redis.Password != tt.wantPassword {
				t.Errorf("password = %s, want %s", cfg.Redis.Password, tt.wantPassword)
			}
			if cfg.Redis.DB != tt.wantDB {
				t.Errorf("db = %d, want %d", cfg.Redis.DB, tt.wantDB)
			}
		})
	}
}
