// Package historycmder provides the history command for inspecting recorded
// generations.
package historycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuhaigao/inference-server/cmd/inference/historydb"
	"github.com/fuhaigao/inference-server/pkg/config"
	"github.com/fuhaigao/inference-server/pkg/history"
	"github.com/fuhaigao/inference-server/pkg/logger"
)

const historyLongDesc string = `Inspect recorded generations.

Generations are recorded by "inference generate" when history is enabled or a
backend is configured. The backend is chosen in this order:
  --sqlite / storage.sqlite_path       SQLite database file
  --postgres / storage.postgres_dsn    PostgreSQL connection string
  history.enabled = true               history.db in the .inference/ directory

Examples:
  inference history list
  inference history list --limit 5
  inference history show <id>`

const historyShortDesc string = "Inspect recorded generations"

var historyFlags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagHistory,
}

// backendFlags holds the flags shared by the history subcommands.
type backendFlags struct {
	sqlitePath  string
	postgresDSN string
	enabled     bool
}

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

func (b *backendFlags) register(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &b.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &b.postgresDSN)
	config.AddBoolFlag(cmd, config.Flags, config.FlagHistory, &b.enabled)
}

// open resolves flags against the config and opens the history driver.
func (b *backendFlags) open(ctx context.Context, cmd *cobra.Command) (history.Driver, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	log := logger.NewCLI(debug)

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, historyFlags)

	driver, err := historydb.Open(ctx, historydb.Options{
		SQLitePath:  v.GetString("storage.sqlite_path"),
		PostgresDSN: v.GetString("storage.postgres_dsn"),
		Enabled:     v.GetBool("history.enabled"),
		ConfigDir:   configDir,
	}, log)
	if err != nil {
		return nil, err
	}
	return driver, nil
}
