package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Listen != "0.0.0.0:1935" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	if cfg.MetricsListen != "127.0.0.1:9322" {
		t.Fatalf("unexpected metrics listen: %q", cfg.MetricsListen)
	}
	if cfg.FrameSize != 4096 {
		t.Fatalf("unexpected frame size: %d", cfg.FrameSize)
	}
	if cfg.HandshakeUptime != 0 {
		t.Fatalf("unexpected handshake uptime: %d", cfg.HandshakeUptime)
	}
	if cfg.HandshakeVersion != 0x03000101 {
		t.Fatalf("unexpected handshake version: %#x", cfg.HandshakeVersion)
	}
	if cfg.ReadBufferBytes != 4096 {
		t.Fatalf("unexpected read buffer: %d", cfg.ReadBufferBytes)
	}
}

func TestLoadServiceConfigPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
listen = "127.0.0.1:2935"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Listen != "127.0.0.1:2935" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	// untouched keys keep their defaults
	if cfg.MetricsListen != "127.0.0.1:9322" {
		t.Fatalf("unexpected metrics listen: %q", cfg.MetricsListen)
	}
	if cfg.FrameSize != 128 {
		t.Fatalf("unexpected frame size: %d", cfg.FrameSize)
	}
}

func TestLoadServiceConfigDisableMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
metrics_listen = ""
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MetricsListen != "" {
		t.Fatalf("expected metrics disabled, got %q", cfg.MetricsListen)
	}
}

func TestLoadServiceConfigBadFrameSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
frame_size = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}
