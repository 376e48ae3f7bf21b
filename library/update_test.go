package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateDropsUnknownFields(t *testing.T) {
	u, err := BuildUpdate(Fields{"title": "X", "bogusField": "Y"}, []string{"title", "genre"})
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, u.Columns)
	assert.Equal(t, []any{"X"}, u.Params)
	assert.Equal(t, "SET title = ?", u.SetClause())
}

func TestBuildUpdateFollowsAllowListOrder(t *testing.T) {
	fields := Fields{"status": "lost", "genre": "poetry", "title": "Odes", "creator": nil}
	u, err := BuildUpdate(fields, Items.Updatable)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "genre", "status"}, u.Columns)
	assert.Equal(t, []any{"Odes", "poetry", "lost"}, u.Params)
}

func TestBuildUpdateRejectsEmptyIntersection(t *testing.T) {
	for name, fields := range map[string]Fields{
		"nil":      nil,
		"unknown":  {"password": "x", "item_id": "itm-1"},
		"all nil":  {"title": nil},
		"no match": {"bogus": 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := BuildUpdate(fields, Items.Updatable)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateStatementPutsKeyLast(t *testing.T) {
	u, err := BuildUpdate(Fields{"genre": "drama", "title": "Hamlet"}, Items.Updatable)
	require.NoError(t, err)
	u.Set("last_updated_by", "libra-000001")

	query, params := u.Statement(Items.Table, Items.Key, "itm-000001")
	assert.Equal(t, "UPDATE library_items SET title = ?, genre = ?, last_updated_by = ? WHERE item_id = ?", query)
	assert.Equal(t, []any{"Hamlet", "drama", "libra-000001", "itm-000001"}, params)

	assert.Equal(t,
		"UPDATE library_items SET title = $1, genre = $2, last_updated_by = $3 WHERE item_id = $4",
		Postgres.Rebind(query))
}

func TestUpdateEntityTouchesOnlyAllowedColumns(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	insertUser(t, db, "cli-000001")

	n, err := db.UpdateEntity(ctx, Clients, "cli-000001", Fields{"first_name": "Ada", "password": "stolen"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	u, err := db.FindUser(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "hash", u.PasswordHash)

	n, err = db.UpdateEntity(ctx, Clients, "cli-999999", Fields{"first_name": "Nobody"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuildUpdateDropsNilPointers(t *testing.T) {
	var title *string
	genre := "poetry"
	u, err := BuildUpdate(Fields{"title": title, "genre": &genre}, Items.Updatable)
	require.NoError(t, err)
	assert.Equal(t, []string{"genre"}, u.Columns)

	_, err = BuildUpdate(Fields{"title": title}, Items.Updatable)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateEntityRefusesItems(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	insertUser(t, db, "libra-000001")
	addItem(t, db, "libra-000001", "itm-000001", "Dune")

	n, err := db.UpdateEntity(ctx, Items, "itm-000001", Fields{"title": "Dune II"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, n)

	it, err := db.GetItem(ctx, "itm-000001")
	require.NoError(t, err)
	assert.Equal(t, "Dune", it.Title)
	history, err := db.ItemHistory(ctx, "itm-000001")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
