package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-ledger/library"
)

// rootOptions holds the global flags and the state PersistentPreRunE
// prepares for subcommands.
type rootOptions struct {
	ConfigPath string
	Driver     string
	DSN        string
	LogLevel   string

	cfg Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lms",
		Short:         "Library ledger management",
		Long:          "Manage a library catalog whose circulation state is derived from an append-only transaction ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|pgx)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database path or connection string")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newSignupCommand(opts))
	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newItemCommand(opts))
	for _, c := range newCirculationCommands(opts) {
		cmd.AddCommand(c)
	}
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))

	return cmd
}

// prepare resolves the configuration: file, then environment, then flags.
func (o *rootOptions) prepare(cmd *cobra.Command) error {
	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	cfg.applyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Database.Driver = o.Driver
	}
	if flags.Changed("dsn") {
		cfg.Database.DSN = o.DSN
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if o.log == nil {
		if o.log, err = newLogger(cfg.Log.Level); err != nil {
			return err
		}
	}
	o.cfg = cfg
	return nil
}

// openManager opens the configured store. Callers close the manager.
func (o *rootOptions) openManager(ctx context.Context) (*library.LibraryManager, error) {
	db, err := library.Open(ctx, library.Options{Driver: o.cfg.Database.Driver, DSN: o.cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	o.log.Debug("database opened",
		zap.String("driver", o.cfg.Database.Driver), zap.String("dialect", db.Dialect().Name))
	return library.NewLibraryManager(db, library.WithLogger(o.log)), nil
}

// withManager opens the store for the duration of fn.
func (o *rootOptions) withManager(cmd *cobra.Command, fn func(ctx context.Context, mgr *library.LibraryManager) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := o.openManager(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()
	return describe(fn(ctx, mgr))
}

// describe prefixes an error with a short human reason for its kind.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var reason string
	switch {
	case errors.Is(err, library.ErrInvalidCredentials):
		reason = "authentication failed"
	case errors.Is(err, library.ErrRouting):
		reason = "unknown identifier"
	case errors.Is(err, library.ErrNotFound):
		reason = "not found"
	case errors.Is(err, library.ErrValidation), errors.Is(err, library.ErrAbstraction):
		reason = "invalid request"
	case errors.Is(err, library.ErrConcurrentModification):
		reason = "modified concurrently, try again"
	case errors.Is(err, library.ErrDuplicateKey):
		reason = "already exists"
	case errors.Is(err, library.ErrForeignKey):
		reason = "still referenced"
	case errors.Is(err, library.ErrPersistence):
		reason = "storage failure"
	default:
		return err
	}
	return fmt.Errorf("%s: %w", reason, err)
}

// authenticate prompts for userID's password and verifies it.
func authenticate(ctx context.Context, mgr *library.LibraryManager, userID string) (*library.User, error) {
	password, err := readPassword(fmt.Sprintf("Password for %s: ", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return mgr.Authenticate(ctx, userID, password)
}

// authenticateStaff authenticates librarianID and checks it may curate.
func authenticateStaff(ctx context.Context, mgr *library.LibraryManager, librarianID string) (*library.User, error) {
	if _, err := authenticate(ctx, mgr, librarianID); err != nil {
		return nil, err
	}
	return mgr.Database().ValidateLibrarian(ctx, librarianID)
}
