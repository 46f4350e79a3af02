package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ternio/rtmpcore/internal/server"
)

type fileConfig struct {
	Listen           string `toml:"listen"`
	MetricsListen    string `toml:"metrics_listen"`
	FrameSize        int64  `toml:"frame_size"`
	HandshakeUptime  int64  `toml:"handshake_uptime"`
	HandshakeVersion int64  `toml:"handshake_version"`
	ReadBufferBytes  int64  `toml:"read_buffer_bytes"`
}

func loadServiceConfig(path string) (server.Config, error) {
	cfg := server.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.Config{}, fmt.Errorf("load rtmpcored config: %w", err)
	}

	if meta.IsDefined("listen") {
		if v := strings.TrimSpace(raw.Listen); v != "" {
			cfg.Listen = v
		}
	}

	if meta.IsDefined("metrics_listen") {
		cfg.MetricsListen = strings.TrimSpace(raw.MetricsListen)
	}

	if meta.IsDefined("frame_size") {
		if raw.FrameSize <= 0 {
			return server.Config{}, fmt.Errorf("frame_size must be positive, got %d", raw.FrameSize)
		}
		cfg.FrameSize = uint32(raw.FrameSize)
	}

	if meta.IsDefined("handshake_uptime") {
		cfg.HandshakeUptime = uint32(raw.HandshakeUptime)
	}

	if meta.IsDefined("handshake_version") {
		cfg.HandshakeVersion = uint32(raw.HandshakeVersion)
	}

	if meta.IsDefined("read_buffer_bytes") {
		if raw.ReadBufferBytes <= 0 {
			return server.Config{}, fmt.Errorf("read_buffer_bytes must be positive, got %d", raw.ReadBufferBytes)
		}
		cfg.ReadBufferBytes = int(raw.ReadBufferBytes)
	}

	return cfg, nil
}
