package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"library-ledger/library"
)

type circulationAction struct {
	use, short, done string
	run              func(*library.LibraryManager, context.Context, string, string) (library.LedgerEntry, error)
}

var circulationActions = []circulationAction{
	{"checkout", "Check an item out", "checked out", (*library.LibraryManager).Checkout},
	{"return", "Return a checked-out item", "returned", (*library.LibraryManager).Return},
	{"hold", "Place a hold on an item", "held", (*library.LibraryManager).Hold},
	{"cancel-hold", "Cancel a hold", "released", (*library.LibraryManager).CancelHold},
	{"renew", "Renew a checkout", "renewed", (*library.LibraryManager).Renew},
}

// newCirculationCommands builds one command per client action. Each one
// authenticates the client before touching the ledger.
func newCirculationCommands(opts *rootOptions) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(circulationActions))
	for _, a := range circulationActions {
		var userID, itemID string
		cmd := &cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
					u, err := authenticate(ctx, mgr, userID)
					if err != nil {
						return err
					}
					e, err := a.run(mgr, ctx, userID, itemID)
					if err != nil {
						return err
					}
					it, err := mgr.GetItem(ctx, itemID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Item '%s' %s by %s %s (%s)\n",
						it.Title, a.done, u.FirstName, u.LastName, e.TransactionID)
					return nil
				})
			},
		}
		cmd.Flags().StringVar(&userID, "user", "", "client id")
		cmd.Flags().StringVar(&itemID, "item", "", "item id")
		_ = cmd.MarkFlagRequired("user")
		_ = cmd.MarkFlagRequired("item")
		cmds = append(cmds, cmd)
	}
	return cmds
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a client's checkouts, holds and overdue items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticate(ctx, mgr, userID); err != nil {
					return err
				}
				st, err := mgr.Status(ctx, userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, section := range []struct {
					title   string
					entries []library.LedgerEntry
				}{
					{"Checked out", st.Checkouts},
					{"On hold", st.Holds},
					{"Overdue", st.Overdue},
				} {
					fmt.Fprintf(out, "%s (%d):\n", section.title, len(section.entries))
					for _, e := range section.entries {
						fmt.Fprintf(out, "  %-11s since %s\n", e.ItemID, e.CreatedAt.Format("2006-01-02"))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "client id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var (
		librarianID string
		at          string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark items of past-due checkouts as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				now = t
			}
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticate(ctx, mgr, librarianID); err != nil {
					return err
				}
				marked, err := mgr.SweepOverdue(ctx, librarianID, now)
				if err != nil {
					return err
				}
				if len(marked) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No overdue items.")
					return nil
				}
				for _, id := range marked {
					fmt.Fprintf(cmd.OutOrStdout(), "Marked %s overdue\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&librarianID, "librarian", "", "acting librarian id")
	cmd.Flags().StringVar(&at, "at", "", "evaluate due dates at this RFC3339 time instead of now")
	_ = cmd.MarkFlagRequired("librarian")
	return cmd
}
