package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/rewardbot/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		customerID  string
		search      string
		limit       int
		pruneBefore time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [sessionId]",
		Short: "Show answered queries from the history log",
		Long: "With a session ID, lists that session's turns oldest first. " +
			"--customer lists a customer's most recent answers and --search runs a full-text match.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled (history.enabled: false)")
			}
			path := cfg.History.Path
			if path == "" {
				path = paths.History
			}

			db, err := store.Open(path, log)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer func() { err = errors.Join(err, db.Close()) }()
			hs := store.NewHistoryStore(db)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var entries []store.Entry
			switch {
			case pruneBefore > 0:
				n, err := hs.Prune(ctx, time.Now().Add(-pruneBefore))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
				return nil
			case len(args) == 1:
				entries, err = hs.History(ctx, args[0], limit)
			case customerID != "":
				entries, err = hs.Recent(ctx, customerID, limit)
			case search != "":
				entries, err = hs.Search(ctx, search, limit)
			default:
				return errors.New("give a session ID, --customer or --search")
			}
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVarP(&customerID, "customer", "c", "", "list a customer's most recent answers")
	cmd.Flags().StringVar(&search, "search", "", "full-text search over queries and responses")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to show (0 = default)")
	cmd.Flags().DurationVar(&pruneBefore, "prune-older-than", 0, "delete entries older than this age instead of listing")

	return cmd
}

func printEntries(w io.Writer, entries []store.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tCUSTOMER\tSTATUS\tQUERY\tRESPONSE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.SessionID,
			e.CustomerID,
			entryStatus(e),
			truncate(e.Query, 40),
			truncate(e.Response, 60),
		)
	}
	return tw.Flush()
}

func entryStatus(e store.Entry) string {
	switch {
	case !e.Success:
		return "failed"
	case e.Degraded:
		return "degraded"
	}
	return "ok"
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
