// Package bantercmder
package bantercmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/banter/cmd/banter/chat"
	configcmder "github.com/papercomputeco/banter/cmd/banter/config"
	initcmder "github.com/papercomputeco/banter/cmd/banter/init"
	personacmder "github.com/papercomputeco/banter/cmd/banter/persona"
	resetcmder "github.com/papercomputeco/banter/cmd/banter/reset"
	servecmder "github.com/papercomputeco/banter/cmd/banter/serve"
	versioncmder "github.com/papercomputeco/banter/cmd/version"
)

const banterLongDesc string = `banter is a chat assistant that answers in the style each user picks.

Run the bot using:
  banter serve         Run the Matrix bot and the HTTP API
  banter chat          Talk to the bot from this terminal

Manage users and settings:
  banter persona       Show or change a user's reply style
  banter reset         Forget a user's chat history
  banter config        Manage persistent configuration
  banter init          Initialize a local .banter/ directory`

const banterShortDesc string = "banter - persona chat bot"

func NewBanterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "banter",
		Short:         banterShortDesc,
		Long:          banterLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .banter/ directory (default: ./.banter or ~/.banter)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(personacmder.NewPersonaCmd())
	cmd.AddCommand(resetcmder.NewResetCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
