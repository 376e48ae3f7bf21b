package library

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// insertUser stores an active user with a fixed id, bypassing id generation.
func insertUser(t *testing.T, db *Database, id string) {
	t.Helper()
	route, err := Resolve(id)
	require.NoError(t, err)
	_, err = db.db.Exec(`INSERT INTO `+route.Table+` (`+route.Key+`, first_name, last_name, email, password, is_active)
        VALUES (?, 'Test', 'User', ?, 'hash', 1)`, id, id+"@example.com")
	require.NoError(t, err)
}

// addItem stores itemID through AddItem as librarianID.
func addItem(t *testing.T, db *Database, librarianID, itemID, title string) *Item {
	t.Helper()
	it, err := db.AddItem(context.Background(), librarianID, NewItem{ID: itemID, Title: title, Genre: "fiction"})
	require.NoError(t, err)
	return it
}

func count(t *testing.T, db *Database, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.db.QueryRow(query, args...).Scan(&n))
	return n
}

func itemIDs(entries []LedgerEntry) []string {
	ids := []string{}
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	return ids
}

// constReader yields the same byte forever, making generated ids repeat.
type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

func fixedIDs(t *testing.T) {
	t.Helper()
	prev := idSource
	idSource = constReader(1)
	t.Cleanup(func() { idSource = prev })
}
