package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xpilot/internal/engagelog"
	"github.com/ibeckermayer/xpilot/internal/runner"
	"github.com/ibeckermayer/xpilot/internal/store"
)

func newTrendsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Show the trends found by the most recent discovery pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := store.NewCache("")
			if err != nil {
				return err
			}
			trends, path, err := cache.LatestTrends()
			if err != nil {
				return err
			}
			cmd.Printf("From %s\n", path)
			for i, t := range trends {
				cmd.Printf("%2d. %s", i+1, t.Topic)
				if t.ContextLabel != "" {
					cmd.Printf("  [%s]", t.ContextLabel)
				}
				if t.VolumeLabel != "" {
					cmd.Printf("  %s", t.VolumeLabel)
				}
				cmd.Println()
			}
			return nil
		},
	}
}

func newEngagementCmd(st *state) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "engagement",
		Short: "Summarise the engagement log per session",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := st.cfg.Engagement.LogFile
			recs, err := engagelog.Read(path)
			if err != nil {
				return fmt.Errorf("failed to read engagement log %s: %w", path, err)
			}

			type totals struct {
				likes, comments, replies, scrolls int
			}
			bySession := map[string]*totals{}
			var order []string
			for _, r := range recs {
				if session != "" && r.SessionID != session {
					continue
				}
				t, ok := bySession[r.SessionID]
				if !ok {
					t = &totals{}
					bySession[r.SessionID] = t
					order = append(order, r.SessionID)
				}
				switch r.Action {
				case runner.ActionLike:
					t.likes++
				case runner.ActionComment:
					t.comments++
				case runner.ActionReply:
					t.replies++
				}
				if r.ScrollCount > t.scrolls {
					t.scrolls = r.ScrollCount
				}
			}
			if len(order) == 0 {
				cmd.Println("No engagement recorded")
				return nil
			}
			for _, id := range order {
				t := bySession[id]
				cmd.Printf("%s  scrolls=%d likes=%d comments=%d reply_rounds=%d\n", id, t.scrolls, t.likes, t.comments, t.replies)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "only this session id")
	return cmd
}
