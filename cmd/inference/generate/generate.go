// Package generatecmder provides the generate command, which streams a
// generation from the inference server to stdout.
package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuhaigao/inference-server/cmd/inference/historydb"
	"github.com/fuhaigao/inference-server/pkg/cliui"
	"github.com/fuhaigao/inference-server/pkg/client"
	"github.com/fuhaigao/inference-server/pkg/config"
	"github.com/fuhaigao/inference-server/pkg/history"
	"github.com/fuhaigao/inference-server/pkg/logger"
	"github.com/fuhaigao/inference-server/pkg/stream"
	"github.com/fuhaigao/inference-server/pkg/worker"
)

type generateCommander struct {
	target            string
	timeout           string
	maxLength         uint
	chunkSize         uint
	allowUnterminated bool
	endMarker         string

	noStream bool
	markdown bool

	sqlitePath  string
	postgresDSN string
	history     bool
	configDir   string

	debug  bool
	logger *slog.Logger
}

const generateLongDesc string = `Generate text for a prompt.

The prompt is taken from the arguments, or from stdin when none are given.
By default the response is streamed and printed as it arrives. A stream that
completes normally ends with "[End of Stream]". A stream that fails exits
non-zero with the kind of failure in the message; text received before the
failure has already been printed.

Examples:
  inference generate "Once upon a time"
  echo "Once upon a time" | inference generate --max-length 50
  inference generate --no-stream --markdown "Write a list"`

const generateShortDesc string = "Generate text for a prompt"

var generateFlags = []string{
	config.FlagTarget,
	config.FlagTimeout,
	config.FlagMaxLength,
	config.FlagChunkSize,
	config.FlagAllowUnterminated,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagHistory,
}

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, generateFlags)

			cmder.target = v.GetString("client.target")
			cmder.timeout = v.GetString("client.timeout")
			cmder.maxLength = v.GetUint("stream.max_length")
			cmder.chunkSize = v.GetUint("stream.chunk_size")
			cmder.allowUnterminated = v.GetBool("stream.allow_unterminated")
			cmder.endMarker = v.GetString("stream.end_marker")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.history = v.GetBool("history.enabled")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context(), prompt, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxLength, &cmder.maxLength)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAllowUnterminated, &cmder.allowUnterminated)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddBoolFlag(cmd, config.Flags, config.FlagHistory, &cmder.history)
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the complete text instead of streaming")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the complete text as markdown (with --no-stream)")

	return cmd
}

// readPrompt joins args, or reads all of stdin when there are none.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading prompt from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (c *generateCommander) run(ctx context.Context, prompt string, out, errOut io.Writer) error {
	c.logger = logger.NewCLI(c.debug)

	if strings.TrimSpace(prompt) == "" {
		return stream.ErrEmptyPrompt
	}

	timeout, err := config.ParseTimeout(c.timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.timeout, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pool, closeHistory := c.openHistory(ctx)
	defer closeHistory()

	cl := client.New(c.target,
		client.WithChunkSize(int(c.chunkSize)),
		client.WithLogger(c.logger),
	)

	if c.noStream {
		return c.generateUnary(ctx, cl, prompt, pool, out, errOut)
	}
	return c.generateStream(ctx, cl, prompt, pool, out)
}

func (c *generateCommander) generateStream(ctx context.Context, cl *client.Client, prompt string, pool *worker.Pool, out io.Writer) error {
	var writeErr error
	runner := stream.NewRunner(
		stream.WithTransport(cl),
		stream.WithMaxLength(int(c.maxLength)),
		stream.WithEndMarker(c.endMarker),
		stream.WithAllowUnterminated(c.allowUnterminated),
		stream.WithLogger(c.logger),
		stream.WithObserver(func(u stream.Update) {
			if u.Delta == "" || writeErr != nil {
				return
			}
			_, writeErr = io.WriteString(out, u.Delta)
		}),
	)

	st, err := runner.Submit(ctx, prompt)
	if st.Output != "" {
		fmt.Fprintln(out)
	}

	if pool != nil && st.Status.Terminal() {
		pool.Enqueue(worker.Job{Record: history.FromState(st, int(c.maxLength))})
	}

	c.logger.Debug("generation finished",
		"session", st.ID,
		"status", st.Status.String(),
		"frames", st.Frames,
		"bytes", st.Bytes,
	)

	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	return writeErr
}

func (c *generateCommander) generateUnary(ctx context.Context, cl *client.Client, prompt string, pool *worker.Pool, out, errOut io.Writer) error {
	var (
		text    string
		started = time.Now()
	)

	call := func() error {
		var err error
		text, err = cl.GenerateText(ctx, prompt, int(c.maxLength))
		return err
	}

	var err error
	if cliui.IsTerminal(errOut) {
		err = cliui.Step(errOut, "Generating", call)
	} else {
		err = call()
	}

	if pool != nil {
		pool.Enqueue(worker.Job{Record: history.NewUnaryRecord(prompt, text, int(c.maxLength), started, err)})
	}

	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if c.markdown {
		rendered, err := cliui.RenderMarkdown(text)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, rendered)
		return err
	}

	_, err = fmt.Fprintln(out, text)
	return err
}

// openHistory starts a history pool when a backend is configured. History is
// best effort: a backend that cannot be opened is logged and skipped.
func (c *generateCommander) openHistory(ctx context.Context) (*worker.Pool, func()) {
	driver, err := historydb.Open(ctx, historydb.Options{
		SQLitePath:  c.sqlitePath,
		PostgresDSN: c.postgresDSN,
		Enabled:     c.history,
		ConfigDir:   c.configDir,
	}, c.logger)
	if errors.Is(err, historydb.ErrDisabled) {
		return nil, func() {}
	}
	if err != nil {
		c.logger.Warn("history disabled", "error", err)
		return nil, func() {}
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver: driver,
		Logger: c.logger,
	})
	if err != nil {
		_ = driver.Close()
		c.logger.Warn("history disabled", "error", err)
		return nil, func() {}
	}

	return pool, func() {
		pool.Close()
		if err := driver.Close(); err != nil {
			c.logger.Warn("closing history", "error", err)
		}
	}
}
