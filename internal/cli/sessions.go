package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xpilot/internal/app"
	"github.com/ibeckermayer/xpilot/internal/store"
)

func newSessionsCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect or delete the stored session of the configured account",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored session",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, st, func(s store.Store, accountID string) error {
					sess, err := s.LoadSession(cmd.Context(), accountID)
					if err != nil {
						return err
					}
					if sess == nil {
						cmd.Printf("No stored session for %s\n", accountID)
						return nil
					}
					cmd.Printf("Account:         %s\n", sess.AccountID)
					cmd.Printf("Updated:         %s (%s ago)\n", sess.UpdatedAt.Format(time.RFC3339), time.Since(sess.UpdatedAt).Round(time.Minute))
					cmd.Printf("Cookies:         %d (auth_token: %t)\n", len(sess.Cookies), sess.HasCookie("auth_token"))
					cmd.Printf("localStorage:    %d keys\n", len(sess.LocalStorage))
					cmd.Printf("sessionStorage:  %d keys\n", len(sess.SessionStorage))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the stored session, forcing a fresh login on the next run",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, st, func(s store.Store, accountID string) error {
					if err := s.DeleteSession(cmd.Context(), accountID); err != nil {
						return err
					}
					cmd.Printf("Cleared session for %s\n", accountID)
					return nil
				})
			},
		},
	)
	return cmd
}

func withStore(cmd *cobra.Command, st *state, fn func(store.Store, string) error) error {
	accountID := st.cfg.Account.ID()
	if accountID == "" {
		return fmt.Errorf("account.username is not configured")
	}
	s, _, err := app.OpenStore(cmd.Context(), st.cfg, st.log)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, accountID)
}
