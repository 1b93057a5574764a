package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/rewardbot/internal/app"
	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		customerID string
		sessionID  string
		userType   string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			actor, err := domain.ParseActorType(userType)
			if err != nil {
				return err
			}
			q := domain.Query{
				Text:       strings.Join(args, " "),
				CustomerID: strings.TrimSpace(customerID),
				SessionID:  sessionID,
				Actor:      actor,
			}
			if err := q.Validate(); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := validate(&cfg); err != nil {
				return err
			}
			if cfg.History.Enabled {
				if err := paths.EnsureDirs(); err != nil {
					return fmt.Errorf("creating data directories: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, log, app.WithHistoryPath(paths.History))
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.Close(context.Background()))
			}()

			ans := a.Orchestrator.Handle(ctx, q)
			if err := printAnswer(cmd.OutOrStdout(), ans, asJSON); err != nil {
				return err
			}
			if !ans.Success {
				return errors.New(ans.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&customerID, "customer", "c", "", "customer ID (required)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID to continue")
	cmd.Flags().StringVar(&userType, "user-type", "CUSTOMER", "who is asking (CUSTOMER or AGENT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full answer as JSON")
	_ = cmd.MarkFlagRequired("customer")

	return cmd
}

// printAnswer writes the response text, or the whole answer as indented JSON.
func printAnswer(w io.Writer, ans domain.Answer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	if ans.Response != "" {
		fmt.Fprintln(w, ans.Response)
	}
	fmt.Fprintf(w, "\n(session %s, %dms)\n", ans.SessionID, ans.ElapsedMs)
	return nil
}
