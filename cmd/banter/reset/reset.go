// Package resetcmder provides the reset command for forgetting a user's chat
// history.
package resetcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/banter/cmd/banter/bootstrap"
	"github.com/papercomputeco/banter/pkg/cliui"
)

const resetLongDesc string = `Forget a user's chat history.

Deletes the transcript the bot keeps for the user. The user's profile and
persona are kept.

Examples:
  banter reset @ada:example.org`

const resetShortDesc string = "Forget a user's chat history"

func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <user-id>",
		Short: resetShortDesc,
		Long:  resetLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := bootstrap.Open(cmd)
			if err != nil {
				return err
			}
			defer orch.Close()

			deleted, err := orch.Reset(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Reset chat history for %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(args[0]))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", cliui.DimStyle.Render("No chat history for "+args[0]))
			}
			return nil
		},
	}
	bootstrap.AddStoreFlags(cmd)

	return cmd
}
