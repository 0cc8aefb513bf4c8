package historycmder

import (
	"errors"
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/fuhaigao/inference-server/pkg/cliui"
	"github.com/fuhaigao/inference-server/pkg/history"
)

const showLongDesc string = `Show a recorded generation.

Examples:
  inference history show 3f1c9a4e-0d6b-4c2e-9a51-2b7d8e6f0a13`

const showShortDesc string = "Show a recorded generation"

func newShowCmd() *cobra.Command {
	var backend backendFlags

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := backend.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer driver.Close()

			rec, err := driver.Get(cmd.Context(), args[0])
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no generation with id %q", args[0])
			}
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}

			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	backend.register(cmd)

	return cmd
}

func printRecord(w io.Writer, rec *history.Record) {
	field := func(key, value string) {
		lipgloss.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-10s", key)), cliui.ValueStyle.Render(value))
	}

	lipgloss.Fprintf(w, "\n  %s %s\n\n", statusMark(rec), cliui.IDStyle.Render(rec.ID))
	field("mode", string(rec.Mode))
	field("status", rec.Status)
	if rec.ErrorKind != "" {
		field("error", rec.Error)
	}
	field("started", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	field("duration", cliui.FormatDuration(rec.Duration()))
	field("max_length", fmt.Sprint(rec.MaxLength))
	field("prompt", rec.Prompt)

	fmt.Fprintf(w, "\n%s\n\n", rec.Output)
}
