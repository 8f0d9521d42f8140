// Package initcmder provides the init command for initializing a local .banter
// directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/banter/pkg/cliui"
	"github.com/papercomputeco/banter/pkg/config"
	"github.com/papercomputeco/banter/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .banter/ directory in the current working directory.

Creates a local .banter/ directory that takes precedence over the default
~/.banter/ directory for configuration, the SQLite profile database and the
chat identity.

A config.toml is written alongside it. Use --preset to start from one of the
built-in presets (openai, ollama, local) or from a config.toml served at a
http(s) URL. Without --preset an existing config.toml is left untouched.

Examples:
  banter init
  banter init --preset local
  banter init --preset https://example.org/banter/config.toml`

const initShortDesc string = "Initialize a local .banter/ directory"

const fetchTimeout = 15 * time.Second

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or a URL to a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	configPath := filepath.Join(dir, "config.toml")

	// Resolve the config before touching disk so a bad preset leaves nothing behind.
	cfg, err := c.resolveConfig(ctx)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .banter directory: %w", err)
		}
	}

	_, statErr := os.Stat(configPath)
	writeConfig := c.preset != "" || os.IsNotExist(statErr)

	if writeConfig {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	}

	if existed {
		fmt.Fprintf(out, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
	} else {
		fmt.Fprintf(out, "  %s Initialized .banter directory: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
	}
	if writeConfig {
		fmt.Fprintf(out, "  %s Wrote %s\n", cliui.SuccessMark, cliui.DimStyle.Render(configPath))
	}

	return nil
}

func (c *initCommander) resolveConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchRemoteConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
