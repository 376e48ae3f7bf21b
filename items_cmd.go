package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-ledger/library"
)

func newItemCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Curate the catalog",
	}
	cmd.AddCommand(newItemAddCommand(opts))
	cmd.AddCommand(newItemShowCommand(opts))
	cmd.AddCommand(newItemUpdateCommand(opts))
	cmd.AddCommand(newItemDeleteCommand(opts))
	cmd.AddCommand(newItemSearchCommand(opts))
	cmd.AddCommand(newItemAuditCommand(opts))
	return cmd
}

// itemFlags are the catalog columns shared by add and update.
type itemFlags struct {
	title, creator, isbn, genre, format, status, imageURL string
	maxDays                                               int
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "title")
	cmd.Flags().StringVar(&f.creator, "creator", "", "author, director or other creator")
	cmd.Flags().StringVar(&f.isbn, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&f.genre, "genre", "", "genre")
	cmd.Flags().StringVar(&f.format, "format", "", "format (book, dvd, ...)")
	cmd.Flags().StringVar(&f.status, "status", "", "curation status")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "cover image URL")
	cmd.Flags().IntVar(&f.maxDays, "max-days", 0, "maximum checkout length in days")
}

// fields returns the columns whose flags were set on the command line.
func (f *itemFlags) fields(cmd *cobra.Command) library.Fields {
	fields := library.Fields{}
	for flag, col := range map[string]struct {
		name string
		val  any
	}{
		"title":     {"title", f.title},
		"creator":   {"creator", f.creator},
		"isbn":      {"isbn", f.isbn},
		"genre":     {"genre", f.genre},
		"format":    {"format", f.format},
		"status":    {"status", f.status},
		"image-url": {"image_url", f.imageURL},
		"max-days":  {"max_checkout_days", f.maxDays},
	} {
		if cmd.Flags().Changed(flag) {
			fields[col.name] = col.val
		}
	}
	return fields
}

func newItemAddCommand(opts *rootOptions) *cobra.Command {
	var (
		f           itemFlags
		id          string
		librarianID string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticate(ctx, mgr, librarianID); err != nil {
					return err
				}
				it, err := mgr.AddItem(ctx, librarianID, library.NewItem{
					ID: id, Title: f.title, Creator: f.creator, ISBN: f.isbn, Genre: f.genre,
					Format: f.format, MaxCheckoutDays: f.maxDays, Status: f.status, ImageURL: f.imageURL,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item '%s' with ID %s\n", it.Title, it.ID)
				return nil
			})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "item id (generated when empty)")
	cmd.Flags().StringVar(&librarianID, "librarian", "", "acting librarian id")
	_ = cmd.MarkFlagRequired("librarian")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newItemShowCommand(opts *rootOptions) *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				it, err := mgr.GetItem(ctx, args[0])
				if err != nil {
					return err
				}
				printItems(cmd, []*library.Item{it})
				if !history {
					return nil
				}
				entries, err := mgr.Database().ItemHistory(ctx, it.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				printEntries(cmd, entries)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "also list the item's ledger entries")
	return cmd
}

func newItemUpdateCommand(opts *rootOptions) *cobra.Command {
	var (
		f           itemFlags
		librarianID string
	)

	cmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Change catalog fields of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := f.fields(cmd)
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticate(ctx, mgr, librarianID); err != nil {
					return err
				}
				n, err := mgr.UpdateItem(ctx, librarianID, args[0], fields)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%d row)\n", args[0], n)
				return nil
			})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&librarianID, "librarian", "", "acting librarian id")
	_ = cmd.MarkFlagRequired("librarian")
	return cmd
}

func newItemDeleteCommand(opts *rootOptions) *cobra.Command {
	var librarianID string

	cmd := &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an item and its ledger history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticate(ctx, mgr, librarianID); err != nil {
					return err
				}
				del, err := mgr.DeleteItem(ctx, librarianID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted item '%s' (ID: %s)\n", del.Title, del.ItemID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&librarianID, "librarian", "", "acting librarian id")
	_ = cmd.MarkFlagRequired("librarian")
	return cmd
}

func newItemSearchCommand(opts *rootOptions) *cobra.Command {
	var filter library.ItemFilter

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog by title, genre or creator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				items, err := mgr.SearchItems(ctx, filter)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items found.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Found %d item(s):\n", len(items))
				printItems(cmd, items)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Title, "title", "", "title contains")
	cmd.Flags().StringVar(&filter.Genre, "genre", "", "genre contains")
	cmd.Flags().StringVar(&filter.Creator, "creator", "", "creator contains")
	return cmd
}

func newItemAuditCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <item-id>",
		Short: "List audit entries left by deleted items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				entries, err := mgr.Database().AuditLog(ctx, args[0])
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No audit entries for %s.\n", args[0])
					return nil
				}
				for _, a := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.AuditID, a.Description)
				}
				return nil
			})
		},
	}
}

func printItems(cmd *cobra.Command, items []*library.Item) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-11s %-30s %-25s %-12s %-8s %-5s %s\n", "ID", "Title", "Creator", "Genre", "Format", "Days", "Status")
	fmt.Fprintln(out, strings.Repeat("-", 105))
	for _, it := range items {
		fmt.Fprintf(out, "%-11s %-30s %-25s %-12s %-8s %-5d %s\n",
			it.ID,
			truncateString(it.Title, 30),
			truncateString(it.Creator, 25),
			truncateString(it.Genre, 12),
			truncateString(it.Format, 8),
			it.MaxCheckoutDays,
			it.Status)
	}
}

func printEntries(cmd *cobra.Command, entries []library.LedgerEntry) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-6s %-17s %-13s %-11s %-13s %s\n", "Seq", "Transaction", "User", "Item", "Type", "When")
	fmt.Fprintln(out, strings.Repeat("-", 85))
	for _, e := range entries {
		fmt.Fprintf(out, "%-6d %-17s %-13s %-11s %-13s %s\n",
			e.Seq, e.TransactionID, e.UserID, e.ItemID, e.Type, e.CreatedAt.Format("2006-01-02 15:04"))
	}
}
