// Package configcmder provides the config command for managing
// persistent engram configuration stored in the .engram/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent engram configuration.

Configuration is stored as config.toml in the .engram/ directory and
provides default values for command flags. CLI flags and ENGRAM_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.database_url, storage.attachments_path,
  engine.name, engine.data_dir, engine.remote_endpoint,
  server.listen, server.transport,
  vector_store.host, vector_store.port, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  engram config set <key> <value>    Set a configuration value
  engram config get <key>            Get a configuration value
  engram config list                 List all configuration values

Examples:
  engram config set engine.name markdown
  engram config set events.provider kafka
  engram config get server.listen
  engram config list`

const configShortDesc string = "Manage persistent engram configuration"

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
