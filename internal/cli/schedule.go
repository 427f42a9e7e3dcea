package cli

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/xpilot/internal/app"
	"github.com/ibeckermayer/xpilot/internal/scheduler"
)

const (
	postJob   = "post"
	reportJob = "daily-report"
)

func newScheduleCmd(st *state) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run one post cycle per schedule.cron tick and email a daily report, until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.validated()
			if err != nil {
				return err
			}
			// Each tick is a single cycle; the runner keeps its used-topic set across ticks.
			cfg.Posting.Cycles = 1

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, app.ModePost, st.log)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.New(ctx, cfg.Schedule.Timezone, st.log)
			if err != nil {
				return err
			}
			sched.SetJobTimeout(cfg.Schedule.JobTimeout)

			// The browser is shared, so a cycle never starts while another is running.
			var busy sync.Mutex
			post := func(ctx context.Context) error {
				if !busy.TryLock() {
					st.log.Warn("Previous cycle still running, skipping")
					return nil
				}
				defer busy.Unlock()

				sum, err := a.Runner().Run(ctx)
				if sum != nil {
					st.log.Info("Scheduled cycle finished", zap.Int("posted", sum.Posted()))
					if _, rerr := a.SaveReport(ctx, sum.Started); rerr != nil {
						st.log.Warn("Failed to save cycle report", zap.Error(rerr))
					}
				}
				return err
			}
			if err := sched.AddJob(postJob, cfg.Schedule.Cron, post); err != nil {
				return err
			}

			if cfg.Schedule.ReportAt != "" {
				err := sched.AddDailyJob(reportJob, cfg.Schedule.ReportAt, func(ctx context.Context) error {
					r, err := app.BuildReport(ctx, a.Store(), cfg.Account.ID(), time.Now().Add(-24*time.Hour))
					if err != nil {
						return err
					}
					return app.EmailReport(cfg.Email, r, st.log)
				})
				if err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				sched.Start()
				for _, j := range sched.ListJobs() {
					st.log.Info("Scheduled job", zap.String("job", j.Name), zap.Time("next", j.NextRun))
				}
				<-gctx.Done()
				st.log.Info("Stopping scheduler, waiting for running jobs")
				<-sched.Stop().Done()
				return nil
			})
			if now {
				g.Go(func() error {
					if err := sched.RunNow(postJob, post); err != nil {
						st.log.Error("Immediate cycle failed", zap.Error(err))
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "also run one cycle immediately")
	return cmd
}
