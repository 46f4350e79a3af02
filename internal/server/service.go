package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ternio/rtmpcore/internal/chunk"
	"github.com/ternio/rtmpcore/internal/logging"
	"github.com/ternio/rtmpcore/internal/observability"
)

type Config struct {
	Listen           string
	MetricsListen    string
	FrameSize        uint32
	HandshakeUptime  uint32
	HandshakeVersion uint32
	ReadBufferBytes  int
}

func DefaultConfig() Config {
	return Config{
		Listen:          ":1935",
		MetricsListen:   "127.0.0.1:9322",
		FrameSize:       chunk.DefaultFrameSize,
		ReadBufferBytes: 4096,
	}
}

// Service accepts connections and runs one session per peer.
type Service struct {
	cfg Config
	log zerolog.Logger
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) Run() error {
	logging.ConfigureRuntime()
	s.log = logging.New("server")
	observability.RegisterMetrics()

	if s.cfg.MetricsListen != "" {
		go s.serveMetrics()
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	s.log.Info().Str("listen", ln.Addr().String()).Msg("accepting connections")

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		sess := newSession(conn, s.cfg)
		go sess.run()
	}
}

func (s *Service) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.log.Info().Str("listen", s.cfg.MetricsListen).Msg("metrics endpoint up")
	if err := http.ListenAndServe(s.cfg.MetricsListen, mux); err != nil {
		s.log.Error().Err(err).Msg("metrics endpoint failed")
	}
}
