// Package configcmder provides the config command for managing persistent
// banter configuration stored in the .banter/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent banter configuration.

Configuration is stored as config.toml in the .banter/ directory and provides
default values for command flags. CLI flags and BANTER_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  cache.provider, cache.redis_addr, cache.transcript_ttl, cache.max_messages,
  llm.base_url, llm.model, llm.api_key,
  matrix.homeserver, matrix.user_id, matrix.access_token, matrix.rooms,
  api.listen, events.provider, events.brokers, metrics.namespace

Use subcommands to get, set, or list configuration values:
  banter config set <key> <value>    Set a configuration value
  banter config get <key>            Get a configuration value
  banter config list                 List all configuration values

Examples:
  banter config set cache.redis_addr redis.internal:6379
  banter config set matrix.rooms '!abc:example.org,!def:example.org'
  banter config get llm.model
  banter config list`

const configShortDesc string = "Manage persistent banter configuration"

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
