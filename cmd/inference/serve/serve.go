// Package servecmder provides the serve command, which runs a local
// development inference server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuhaigao/inference-server/pkg/config"
	"github.com/fuhaigao/inference-server/pkg/logger"
	"github.com/fuhaigao/inference-server/server"
)

type ServeCommander struct {
	listen     string
	tokenDelay time.Duration
	logJSON    bool
	logFile    string
	debug      bool
	logger     *slog.Logger
}

const serveLongDesc string = `Run a local development inference server.

The server streams the words of each prompt back as tokens, which is enough
to exercise the client end to end without a model:
  inference serve --listen :8080 --token-delay 100ms`

const serveShortDesc string = "Run a local development server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
			cmder.listen = v.GetString("server.listen")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	cmd.Flags().DurationVar(&cmder.tokenDelay, "token-delay", 50*time.Millisecond, "Delay between streamed tokens")
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write JSON logs to stderr")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	srv := server.NewServer(server.Config{
		ListenAddr: c.listen,
		TokenDelay: c.tokenDelay,
	}, nil, nil, c.logger)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return srv.Shutdown()
	}
}

// setupLogger builds the server logger: human or JSON on stderr, plus JSON
// with source locations in logFile when set.
func (c *ServeCommander) setupLogger() (func(), error) {
	if c.logJSON {
		c.logger = logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(os.Stderr),
		)
	} else {
		c.logger = logger.NewCLI(c.debug)
	}

	if c.logFile == "" {
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	fileLogger := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(f),
	)
	c.logger = logger.Multi(c.logger, fileLogger)

	return func() { _ = f.Close() }, nil
}
