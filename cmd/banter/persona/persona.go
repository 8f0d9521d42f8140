// Package personacmder provides the persona command for reading and changing
// a user's reply style without going through a chat platform.
package personacmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/banter/cmd/banter/bootstrap"
	"github.com/papercomputeco/banter/pkg/cliui"
	"github.com/papercomputeco/banter/pkg/dialogue"
	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/preference"
	"github.com/papercomputeco/banter/pkg/storage"
)

const personaLongDesc string = `Show or change the reply style of a user.

The persona is read the same way the bot reads it (cache first, then the
profile store) and written to the profile store before the cache.

Available personas: strict, neutral, casual

Examples:
  banter persona get @ada:example.org
  banter persona set @ada:example.org casual`

const personaShortDesc string = "Show or change a user's persona"

func NewPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: personaShortDesc,
		Long:  personaLongDesc,
	}

	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSetCmd())

	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user's persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := bootstrap.Open(cmd)
			if err != nil {
				return err
			}
			defer orch.Close()

			p := orch.Persona(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s %s\n",
				cliui.KeyStyle.Render(args[0]),
				cliui.ValueStyle.Render(strings.ToLower(p.String())),
				cliui.DimStyle.Render("("+p.Label()+")"),
			)
			return nil
		},
	}
	bootstrap.AddStoreFlags(cmd)

	return cmd
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <user-id> <persona>",
		Short: "Change a user's persona",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := persona.Parse(args[1])
			if err != nil {
				return err
			}

			orch, err := bootstrap.Open(cmd)
			if err != nil {
				return err
			}
			defer orch.Close()

			return runSet(cmd.Context(), cmd.OutOrStdout(), orch, args[0], p)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return []string{"strict", "neutral", "casual"}, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}
	bootstrap.AddStoreFlags(cmd)

	return cmd
}

func runSet(ctx context.Context, out io.Writer, orch *dialogue.Orchestrator, userID string, p persona.Persona) error {
	err := orch.SetPersona(ctx, userID, p)
	switch {
	case err == nil:
		fmt.Fprintf(out, "  %s Set %s to %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(userID), cliui.ValueStyle.Render(p.Label()))
		return nil
	case storage.IsNotFound(err):
		return fmt.Errorf("user %s is not registered", userID)
	case errors.Is(err, preference.ErrCacheNotUpdated):
		fmt.Fprintf(out, "  %s Saved %s for %s, but the cache was not updated\n", cliui.FailMark, p.Label(), userID)
		return err
	default:
		return err
	}
}
