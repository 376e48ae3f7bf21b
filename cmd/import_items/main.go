// Command import_items loads a YAML catalog into the library as one
// librarian.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"library-ledger/library"
)

// Catalog is the import file format.
type Catalog struct {
	Librarian string            `yaml:"librarian"`
	Items     []library.NewItem `yaml:"items"`
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var driver, dsn, file, librarian string

	cmd := &cobra.Command{
		Use:           "import_items",
		Short:         "Import catalog items from a YAML file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(file)
			if err != nil {
				return err
			}
			if librarian != "" {
				cat.Librarian = librarian
			}

			ctx := context.Background()
			db, err := library.Open(ctx, library.Options{Driver: driver, DSN: dsn})
			if err != nil {
				return fmt.Errorf("error opening database: %w", err)
			}
			logger, err := zap.NewProduction()
			if err != nil {
				db.Close()
				return err
			}
			defer logger.Sync()
			manager := library.NewLibraryManager(db, library.WithLogger(logger))
			defer manager.Close()

			ok, failed := importCatalog(ctx, manager, cat, cmd.OutOrStdout())
			if failed > 0 {
				return fmt.Errorf("%d of %d items failed to import", failed, ok+failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "database driver (sqlite3|pgx)")
	cmd.Flags().StringVar(&dsn, "dsn", "library.db", "database path or connection string")
	cmd.Flags().StringVar(&file, "file", "catalog.yaml", "catalog file to import")
	cmd.Flags().StringVar(&librarian, "librarian", "", "acting librarian id (overrides the file)")
	return cmd
}

func loadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var cat Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cat); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return cat, nil
}

// importCatalog adds every item of cat and reports how many succeeded and
// failed. A failing item does not stop the import.
func importCatalog(ctx context.Context, manager *library.LibraryManager, cat Catalog, out io.Writer) (successCount, errorCount int) {
	fmt.Fprintf(out, "Importing %d item(s) as %s...\n", len(cat.Items), cat.Librarian)

	var imported []*library.Item
	for _, ni := range cat.Items {
		fmt.Fprintf(out, "Importing: %s by %s... ", ni.Title, ni.Creator)
		it, err := manager.AddItem(ctx, cat.Librarian, ni)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %s)\n", it.ID)
		imported = append(imported, it)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d items\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nImported items:")
		fmt.Fprintf(out, "%-11s %-50s %-30s\n", "ID", "Title", "Creator")
		fmt.Fprintln(out, strings.Repeat("-", 93))
		for _, it := range imported {
			fmt.Fprintf(out, "%-11s %-50s %-30s\n", it.ID, truncateString(it.Title, 50), truncateString(it.Creator, 30))
		}
	}
	return successCount, errorCount
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
