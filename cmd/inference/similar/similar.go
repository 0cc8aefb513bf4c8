// Package similarcmder provides the similar command for finding the items
// most similar to a text.
package similarcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/fuhaigao/inference-server/pkg/cliui"
	"github.com/fuhaigao/inference-server/pkg/client"
	"github.com/fuhaigao/inference-server/pkg/config"
	"github.com/fuhaigao/inference-server/pkg/logger"
	"github.com/fuhaigao/inference-server/pkg/utils"
)

type similarCommander struct {
	target     string
	timeout    string
	numResults uint

	debug  bool
	logger *slog.Logger
}

const similarLongDesc string = `Find the items most similar to a text.

Results are printed best first with their similarity score.

Examples:
  inference similar "a quick brown fox"
  inference similar --num-results 3 "weather today"`

const similarShortDesc string = "Find similar items"

var similarFlags = []string{
	config.FlagTarget,
	config.FlagTimeout,
	config.FlagNumResults,
}

func NewSimilarCmd() *cobra.Command {
	cmder := &similarCommander{}

	cmd := &cobra.Command{
		Use:   "similar <text...>",
		Short: similarShortDesc,
		Long:  similarLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, similarFlags)

			cmder.target = v.GetString("client.target")
			cmder.timeout = v.GetString("client.timeout")
			cmder.numResults = v.GetUint("similar.num_results")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagNumResults, &cmder.numResults)

	return cmd
}

func (c *similarCommander) run(ctx context.Context, text string, out io.Writer) error {
	c.logger = logger.NewCLI(c.debug)

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is empty")
	}

	timeout, err := config.ParseTimeout(c.timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.timeout, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cl := client.New(c.target, client.WithLogger(c.logger))
	results, err := cl.FindSimilar(ctx, text, int(c.numResults))
	if err != nil {
		return fmt.Errorf("finding similar items: %w", err)
	}

	if len(results) == 0 {
		lipgloss.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No similar items found."))
		return nil
	}

	for i, r := range results {
		lipgloss.Fprintf(out, "  %s  %s  %s\n",
			cliui.IDStyle.Render(fmt.Sprintf("%2d.", i+1)),
			cliui.KeyStyle.Render(fmt.Sprintf("%.4f", r.Score)),
			cliui.ValueStyle.Render(utils.OneLine(r.Item)),
		)
	}
	return nil
}
