// Package chatcmder provides the chat command for talking to the bot from a
// terminal. Messages go through the same orchestrator the Matrix bot uses,
// so personas and transcripts are shared with it.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/banter/bot"
	"github.com/papercomputeco/banter/cmd/banter/bootstrap"
	"github.com/papercomputeco/banter/pkg/cliui"
	"github.com/papercomputeco/banter/pkg/config"
	"github.com/papercomputeco/banter/pkg/dotdir"
	"github.com/papercomputeco/banter/pkg/logger"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("banter> ")
)

type chatCommander struct {
	cfg       *config.Config
	configDir string
	userID    string
	name      string
	debug     bool

	storageDriver string
	sqlitePath    string
	cacheProvider string
	redisAddr     string
	llmBaseURL    string
	model         string

	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

var chatFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagCacheProvider,
	config.FlagRedisAddr,
	config.FlagLLMBaseURL,
	config.FlagModel,
}

const chatLongDesc string = `Start an interactive chat session with the bot.

Messages are answered exactly as the Matrix bot would answer them, using the
same profile store, cache and completion backend, so commands such as
!mode casual and !reset work here too.

The chat identity is saved in the .banter/ directory and reused by later
sessions. Use --user to talk as someone else, for example a Matrix user
whose persona you want to try out.

Type /exit or press Ctrl+D to quit.

Examples:
  banter chat
  banter chat --user @ada:example.org
  banter chat --cache-provider memory --model llama3.2 --llm-base-url http://localhost:11434/v1`

const chatShortDesc string = "Interactive chat with the bot"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(cmd, chatFlags)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			cmder.configDir = bootstrap.ConfigDir(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User id to chat as (default: the saved chat identity)")
	cmd.Flags().StringVar(&cmder.name, "name", "", "Display name used when registering")
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheProvider, &cmder.cacheProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &cmder.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMBaseURL, &cmder.llmBaseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.Nop()
	if c.debug {
		c.logger = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	}

	identity, err := c.resolveIdentity()
	if err != nil {
		return err
	}

	orch, err := bootstrap.NewOrchestrator(ctx, bootstrap.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.CheckHealth(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if _, err := orch.Register(ctx, identity.UserID, identity.DisplayName); err != nil {
		return err
	}

	b, err := bot.New(bot.Config{Dialogue: orch, Logger: c.logger})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("User:"), cliui.NameStyle.Render(identity.UserID))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Mode:"), cliui.ValueStyle.Render(orch.Persona(ctx, identity.UserID).Label()))
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(c.cfg.LLM.Model))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. !help lists commands, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		var replies []string
		handle := func() error {
			replies = b.Handle(ctx, bot.Message{
				UserID:      identity.UserID,
				Text:        input,
				DisplayName: func(context.Context) string { return identity.DisplayName },
			})
			return nil
		}

		if c.interactive() {
			_ = cliui.Step(c.out, cliui.DimStyle.Render("thinking"), handle)
		} else {
			_ = handle()
		}

		for _, reply := range replies {
			fmt.Fprintf(c.out, "%s%s\n", assistantPrompt, c.render(reply))
		}
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// resolveIdentity picks the --user flag, then the saved identity, then a
// local identity derived from $USER, and saves the result for next time.
func (c *chatCommander) resolveIdentity() (*dotdir.Identity, error) {
	ddm := dotdir.NewManager()

	saved, err := ddm.LoadIdentity(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading chat identity: %w", err)
	}

	identity := &dotdir.Identity{UserID: c.userID, DisplayName: c.name}
	switch {
	case identity.UserID != "":
	case saved != nil:
		identity.UserID = saved.UserID
		if identity.DisplayName == "" {
			identity.DisplayName = saved.DisplayName
		}
	default:
		identity.UserID = "local:" + localUser()
	}
	if identity.DisplayName == "" {
		identity.DisplayName = localUser()
	}

	if err := ddm.SaveIdentity(identity, c.configDir); err != nil {
		return nil, fmt.Errorf("saving chat identity: %w", err)
	}
	return identity, nil
}

// interactive reports whether output goes to a terminal.
func (c *chatCommander) interactive() bool {
	f, ok := c.out.(*os.File)
	return ok && cliui.IsTerminal(f)
}

func (c *chatCommander) render(reply string) string {
	if !c.interactive() {
		return reply
	}

	rendered, err := cliui.RenderMarkdown(reply, cliui.WrapWidth(c.out.(*os.File)))
	if err != nil {
		c.logger.Debug("failed to render markdown", "error", err)
		return reply
	}
	return strings.TrimSpace(rendered)
}

func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "me"
}
