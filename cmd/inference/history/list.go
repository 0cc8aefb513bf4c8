package historycmder

import (
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/fuhaigao/inference-server/pkg/cliui"
	"github.com/fuhaigao/inference-server/pkg/history"
	"github.com/fuhaigao/inference-server/pkg/utils"
)

const listLongDesc string = `List recorded generations, most recent first.

Examples:
  inference history list
  inference history list --limit 5 --sqlite ./history.db`

const listShortDesc string = "List recorded generations"

const promptPreviewLen = 48

func newListCmd() *cobra.Command {
	var (
		backend backendFlags
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, err := backend.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer driver.Close()

			records, err := driver.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing history: %w", err)
			}

			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	backend.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to list (0 for all)")

	return cmd
}

func printRecords(w io.Writer, records []*history.Record) {
	if len(records) == 0 {
		lipgloss.Fprintf(w, "  %s\n", cliui.DimStyle.Render("No generations recorded."))
		return
	}

	for _, rec := range records {
		lipgloss.Fprintf(w, "  %s %s  %s  %s  %s\n",
			statusMark(rec),
			cliui.IDStyle.Render(rec.ID),
			cliui.DimStyle.Render(rec.StartedAt.Local().Format("2006-01-02 15:04:05")),
			cliui.DimStyle.Render(cliui.FormatDuration(rec.Duration())),
			cliui.ValueStyle.Render(utils.Truncate(utils.OneLine(rec.Prompt), promptPreviewLen)),
		)
	}
}

func statusMark(rec *history.Record) string {
	if rec.Status == "failed" {
		return cliui.FailMark
	}
	return cliui.SuccessMark
}
