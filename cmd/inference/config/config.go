// Package configcmder provides the config command for managing persistent
// inference configuration stored in the .inference/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent inference configuration.

Configuration is stored as config.toml in the .inference/ directory and
provides default values for command flags. CLI flags and INFERENCE_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.target, client.timeout,
  stream.max_length, stream.chunk_size, stream.allow_unterminated, stream.end_marker,
  similar.num_results, server.listen,
  storage.sqlite_path, storage.postgres_dsn, history.enabled

Use subcommands to get, set, or list configuration values:
  inference config set <key> <value>    Set a configuration value
  inference config get <key>            Get a configuration value
  inference config list                 List all configuration values

Examples:
  inference config set client.target http://gpu-box:8080
  inference config set stream.max_length 50
  inference config get client.target
  inference config list`

const configShortDesc string = "Manage persistent inference configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
