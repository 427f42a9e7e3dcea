package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	xbrowser "github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
)

const botTestURL = "https://bot.sannysoft.com"

func newBotTestCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open bot.sannysoft.com with the stealth browser options to audit the fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			st.log.Info("Opening fingerprint audit with stealth browser options", zap.String("url", botTestURL))

			h, err := xbrowser.Launch(cmd.Context(), xbrowser.LaunchOptions{
				Headless:  false, // visible so you can inspect it
				UserAgent: st.cfg.Browser.UserAgent,
				ProxyURL:  st.cfg.Browser.ProxyURL,
				ExecPath:  st.cfg.Browser.ExecPath,
			}, st.cfg.Browser.NavigationTimeout, st.log)
			if err != nil {
				return err
			}
			defer h.Close()

			if err := h.Navigate(cmd.Context(), botTestURL); err != nil {
				return err
			}

			cmd.Println("Press Enter to close the browser...")
			done := make(chan struct{})
			go func() {
				bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				close(done)
			}()
			select {
			case <-done:
			case <-cmd.Context().Done():
			}
			st.log.Info("Done")
			return nil
		},
	}
}

func newOpenCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache>",
		Short:     "Open the config file in the default editor or the cache directory in the file explorer",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch args[0] {
			case "config":
				path = st.cfgFile
				if path == "" {
					var err error
					if path, err = config.ConfigPath(); err != nil {
						return err
					}
				}
				if err := ensureConfig(path, st.cfg); err != nil {
					return err
				}
			case "cache":
				dir, err := config.CacheDir()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0755); err != nil {
					return err
				}
				path = dir
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}

			st.log.Info("Opening", zap.String("path", path))
			if err := st.open(path); err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			return nil
		},
	}
}

// ensureConfig writes cfg to path when no config file exists yet.
func ensureConfig(path string, cfg *config.Config) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("could not save default config: %w", err)
	}
	return nil
}
