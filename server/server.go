package server

import (
	"context"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
)

// Server serves /generate_text_stream, /generate_text and /find_similar.
type Server struct {
	config    Config
	generator Generator
	index     Index
	logger    *slog.Logger
	app       *fiber.App

	// ctx outlives individual handlers so streams keep generating after the
	// handler has returned the body reader. It is cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new server. A nil generator or index falls back to
// EchoGenerator and a CorpusIndex over DefaultCorpus.
func NewServer(config Config, generator Generator, index Index, logger *slog.Logger) *Server {
	if generator == nil {
		generator = &EchoGenerator{Delay: config.TokenDelay}
	}
	if index == nil {
		index = NewCorpusIndex(DefaultCorpus)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    config,
		generator: generator,
		index:     index,
		logger:    logger,
		app:       app,
		ctx:       ctx,
		cancel:    cancel,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/generate_text_stream", s.handleGenerateStream)
	app.Post("/generate_text", s.handleGenerate)
	app.Post("/find_similar", s.handleFindSimilar)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting inference server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Serve starts the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting inference server",
		"listen", ln.Addr().String(),
	)
	return s.app.Listener(ln)
}

// Shutdown stops in-flight generations and gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
