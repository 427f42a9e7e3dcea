package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/app"
)

func newRunCmd(st *state) *cobra.Command {
	var cycles int
	var noEmail bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Authenticate, then discover trends, generate and post for the configured number of cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.validated()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cycles") {
				cfg.Posting.Cycles = cycles
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, app.ModePost, st.log)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, runErr := a.Runner().Run(ctx)
			if sum != nil {
				st.log.Info("Run finished",
					zap.String("run_id", sum.RunID),
					zap.Int("cycles", len(sum.Cycles)),
					zap.Int("posted", sum.Posted()),
					zap.Duration("elapsed", sum.Finished.Sub(sum.Started).Round(time.Second)))
				deliverReport(ctx, st, a, sum.Started, !noEmail)
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 1, "number of post cycles (overrides posting.cycles)")
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "do not email the run report")
	return cmd
}

// deliverReport saves the content log since since as a report and emails it when enabled.
// Failures are logged; they never change the outcome of the run.
func deliverReport(ctx context.Context, st *state, a *app.App, since time.Time, email bool) {
	r, err := a.SaveReport(ctx, since)
	if err != nil {
		st.log.Warn("Failed to build run report", zap.Error(err))
		if r == nil {
			return
		}
	}
	if !email {
		return
	}
	if err := app.EmailReport(st.cfg.Email, r, st.log); err != nil {
		st.log.Warn("Failed to email run report", zap.Error(err))
	}
}

func newEngageCmd(st *state) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "engage",
		Short: "Scroll the home feed liking, commenting and answering mentions until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.validated()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			a, err := app.New(ctx, cfg, app.ModeEngage, st.log)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Engage(ctx)
			st.log.Info("Engagement finished",
				zap.Int("passes", stats.Passes),
				zap.Int("likes", stats.Likes),
				zap.Int("comments", stats.Comments),
				zap.Int("replies", stats.Replies))
			return err
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: until interrupted)")
	return cmd
}

func newLoginCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session without posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.validated()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, app.ModeLogin, st.log)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Login(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Logged in as %s (%s session)\n", cfg.Account.Username, res.SessionUsed)
			return nil
		},
	}
}
