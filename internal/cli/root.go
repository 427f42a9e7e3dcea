// Package cli implements the xpilot command line.
package cli

import (
	"context"
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/observability"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// state is shared by every subcommand of one invocation.
type state struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
	log      *zap.Logger

	// open opens a file or directory with the platform's default handler.
	open func(path string) error
}

// Execute runs the root command under ctx.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&state{open: browser.OpenFile})
}

func newRootCmdWith(st *state) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "xpilot",
		Short:         "xpilot drives an X account: trend-based posting and feed engagement",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&st.cfgFile, "config", "c", "", "config file (default is <user config dir>/xpilot/config.toml)")
	rootCmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override logger.level")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(st),
		newEngageCmd(st),
		newLoginCmd(st),
		newScheduleCmd(st),
		newSessionsCmd(st),
		newTrendsCmd(st),
		newEngagementCmd(st),
		newBotTestCmd(st),
		newOpenCmd(st),
	)
	return rootCmd
}

func (s *state) load() error {
	cfg, err := config.Load(s.cfgFile)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console"})
		return err
	}
	if s.logLevel != "" {
		cfg.Logger.Level = s.logLevel
	}
	observability.InitializeLogger(cfg.Logger)

	s.cfg = cfg
	s.log = observability.GetLogger()
	s.log.Debug("Configuration loaded", zap.String("version", Version), zap.String("account", cfg.Account.ID()))
	return nil
}

// validated returns the loaded config after checking it is complete enough to drive a browser.
func (s *state) validated() (*config.Config, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s.cfg, nil
}

// Main runs the CLI and returns the process exit code.
func Main(ctx context.Context) int {
	if err := Execute(ctx); err != nil {
		observability.GetLogger().Error("Command failed", zap.Error(err))
		observability.Sync()
		return 1
	}
	return 0
}
