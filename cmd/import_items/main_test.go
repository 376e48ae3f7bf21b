package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"library-ledger/library"
)

const catalogYAML = `
librarian: %s
items:
  - item_id: itm-100001
    title: The Fellowship of the Ring
    creator: J.R.R. Tolkien
    genre: fantasy
  - title: The Art of War
    creator: Sun Tzu
    format: ebook
    max_checkout_days: 7
  - title: ""
`

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("librarian: libra-000001\nitems:\n  - title: Emma\n    max_checkout_days: 21\n"), 0o644))

	cat, err := loadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "libra-000001", cat.Librarian)
	require.Len(t, cat.Items, 1)
	assert.Equal(t, library.NewItem{Title: "Emma", MaxCheckoutDays: 21}, cat.Items[0])

	require.NoError(t, os.WriteFile(path, []byte("items:\n  - name: Emma\n"), 0o644))
	_, err = loadCatalog(path)
	assert.Error(t, err, "unknown keys are rejected")
}

func TestImportCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := library.NewDatabase(filepath.Join(t.TempDir(), "lib.db"))
	require.NoError(t, err)
	manager := library.NewLibraryManager(db, library.WithLogger(zaptest.NewLogger(t)), library.WithHashCost(bcrypt.MinCost))
	t.Cleanup(func() { manager.Close() })

	lib, err := manager.SignUp(ctx, library.KindLibrarian, "Melvil", "Dewey", "dewey@example.com", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(catalogYAML, lib.ID)), 0o644))
	cat, err := loadCatalog(path)
	require.NoError(t, err)

	var out bytes.Buffer
	ok, failed := importCatalog(ctx, manager, cat, &out)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed, "the untitled item is rejected")
	assert.Contains(t, out.String(), "SUCCESS (ID: itm-100001)")

	it, err := manager.GetItem(ctx, "itm-100001")
	require.NoError(t, err)
	assert.Equal(t, "fantasy", it.Genre)
	assert.Equal(t, lib.ID, it.LastUpdatedBy)

	items, err := manager.SearchItems(ctx, library.ItemFilter{Creator: "sun tzu"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ebook", items[0].Format)
	assert.Equal(t, 7, items[0].MaxCheckoutDays)
}

func TestImportCatalogUnknownLibrarian(t *testing.T) {
	db, err := library.NewDatabase(filepath.Join(t.TempDir(), "lib.db"))
	require.NoError(t, err)
	manager := library.NewLibraryManager(db)
	t.Cleanup(func() { manager.Close() })

	cat := Catalog{Librarian: "libra-000404", Items: []library.NewItem{{Title: "Emma"}}}
	ok, failed := importCatalog(context.Background(), manager, cat, &bytes.Buffer{})
	assert.Zero(t, ok)
	assert.Equal(t, 1, failed)
}
