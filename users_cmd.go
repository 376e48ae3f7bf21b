package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-ledger/library"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Database ready (%s).\n", mgr.Database().Dialect().Name)
				return nil
			})
		},
	}
}

func newSignupCommand(opts *rootOptions) *cobra.Command {
	var kind, first, last, email string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a client, librarian or admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := library.ParseUserKind(kind)
			if !ok {
				return fmt.Errorf("invalid kind %q: must be client, librarian or admin", kind)
			}
			password, err := readPassword(fmt.Sprintf("Enter password for %s %s: ", first, last))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if strings.TrimSpace(password) == "" {
				return fmt.Errorf("password cannot be empty")
			}
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				u, err := mgr.SignUp(ctx, k, first, last, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %s %s with ID %s\n", u.Kind, u.FirstName, u.LastName, u.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "client", "user kind (client|librarian|admin)")
	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show and maintain user accounts",
	}
	cmd.AddCommand(newUserListCommand(opts))
	cmd.AddCommand(newUserShowCommand(opts))
	cmd.AddCommand(newUserUpdateCommand(opts))
	cmd.AddCommand(newUserDeleteCommand(opts))
	cmd.AddCommand(newUserPasswdCommand(opts))
	return cmd
}

func newUserListCommand(opts *rootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients or staff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := library.ParseUserKind(kind)
			if !ok {
				return fmt.Errorf("invalid kind %q: must be client, librarian or admin", kind)
			}
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				users, err := mgr.Database().ListUsers(ctx, k)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No users registered.")
					return nil
				}
				fmt.Fprintf(out, "%-13s %-10s %-30s %-30s %s\n", "ID", "Kind", "Name", "Email", "Active")
				fmt.Fprintln(out, strings.Repeat("-", 95))
				for _, u := range users {
					fmt.Fprintf(out, "%-13s %-10s %-30s %-30s %t\n", u.ID, u.Kind,
						truncateString(u.FirstName+" "+u.LastName, 30), truncateString(u.Email, 30), u.Active)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "client", "user kind (client|librarian|admin); librarian and admin share a table")
	return cmd
}

func newUserShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				u, err := mgr.FindUser(ctx, args[0])
				if err != nil {
					return err
				}
				printUser(cmd, u)
				return nil
			})
		},
	}
}

func newUserUpdateCommand(opts *rootOptions) *cobra.Command {
	var (
		first, last, email string
		active             bool
		librarianID        string
	)

	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Change a user's name, email or active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := library.Fields{}
			flags := cmd.Flags()
			if flags.Changed("first") {
				fields["first_name"] = first
			}
			if flags.Changed("last") {
				fields["last_name"] = last
			}
			if flags.Changed("email") {
				fields["email"] = email
			}
			if flags.Changed("active") {
				fields["is_active"] = active
			}
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticateStaff(ctx, mgr, librarianID); err != nil {
					return err
				}
				if err := mgr.UpdateUser(ctx, args[0], fields); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&active, "active", true, "whether the account is active")
	cmd.Flags().StringVar(&librarianID, "librarian", "", "acting librarian id")
	_ = cmd.MarkFlagRequired("librarian")
	return cmd
}

func newUserDeleteCommand(opts *rootOptions) *cobra.Command {
	var librarianID string

	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user without ledger history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				if _, err := authenticateStaff(ctx, mgr, librarianID); err != nil {
					return err
				}
				if err := mgr.DeleteUser(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&librarianID, "librarian", "", "acting librarian id")
	_ = cmd.MarkFlagRequired("librarian")
	return cmd
}

func newUserPasswdCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <user-id>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			return opts.withManager(cmd, func(ctx context.Context, mgr *library.LibraryManager) error {
				u, err := authenticate(ctx, mgr, userID)
				if err != nil {
					return err
				}
				newPassword, err := readPassword(fmt.Sprintf("Enter new password for %s %s (ID: %s): ", u.FirstName, u.LastName, u.ID))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				if strings.TrimSpace(newPassword) == "" {
					return fmt.Errorf("password cannot be empty")
				}
				if err := mgr.ResetPassword(ctx, userID, newPassword); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password successfully reset for %s %s (ID: %s)\n", u.FirstName, u.LastName, u.ID)
				return nil
			})
		},
	}
}

func printUser(cmd *cobra.Command, u *library.User) {
	out := cmd.OutOrStdout()
	active := "Yes"
	if !u.Active {
		active = "No"
	}
	fmt.Fprintf(out, "%-12s %s\n", "ID:", u.ID)
	fmt.Fprintf(out, "%-12s %s\n", "Kind:", u.Kind)
	fmt.Fprintf(out, "%-12s %s %s\n", "Name:", u.FirstName, u.LastName)
	fmt.Fprintf(out, "%-12s %s\n", "Email:", u.Email)
	fmt.Fprintf(out, "%-12s %s\n", "Active:", active)
	fmt.Fprintf(out, "%-12s %s\n", "Joined:", u.CreatedAt.Format("2006-01-02"))
}
