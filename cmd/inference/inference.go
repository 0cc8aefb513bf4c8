// Package inferencecmder
package inferencecmder

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	configcmder "github.com/fuhaigao/inference-server/cmd/inference/config"
	generatecmder "github.com/fuhaigao/inference-server/cmd/inference/generate"
	historycmder "github.com/fuhaigao/inference-server/cmd/inference/history"
	servecmder "github.com/fuhaigao/inference-server/cmd/inference/serve"
	similarcmder "github.com/fuhaigao/inference-server/cmd/inference/similar"
	versioncmder "github.com/fuhaigao/inference-server/cmd/version"
)

const inferenceLongDesc string = `Inference is a client for a text generation server.

Generated text is streamed to stdout as it arrives:
  inference generate "Once upon a time"     Stream a generation
  inference generate --no-stream "Hello"    Wait for the complete text
  inference similar "a quick fox"           Find similar items
  inference serve                           Run a local development server
  inference history list                    Show recorded generations`

const inferenceShortDesc string = "Inference - streamed text generation client"

func NewInferenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "inference",
		Short:        inferenceShortDesc,
		Long:         inferenceLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Values from .env never override the environment.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .inference/ config directory")

	// Add subcommands
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(similarcmder.NewSimilarCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
