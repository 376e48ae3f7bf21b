package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerFixture(t *testing.T) *Database {
	t.Helper()
	db := tempDB(t)
	insertUser(t, db, "libra-000001")
	insertUser(t, db, "cli-000001")
	addItem(t, db, "libra-000001", "itm-000001", "Dune")
	return db
}

func TestAppendTransaction(t *testing.T) {
	db := ledgerFixture(t)
	ctx := context.Background()

	first, err := db.AppendTransaction(ctx, "cli-000001", "itm-000001", TxCheckout)
	require.NoError(t, err)
	assert.Regexp(t, `^chk-[a-z0-9]{12}$`, first.TransactionID)
	assert.Equal(t, "cli-000001", first.UserID)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := db.AppendTransaction(ctx, "cli-000001", "itm-000001", TxReturn)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	// the client reference lands in client_id, never librarian_id
	assert.Equal(t, 2, count(t, db, `SELECT COUNT(*) FROM item_transactions WHERE client_id = ? AND librarian_id IS NULL`, "cli-000001"))

	history, err := db.UserHistory(ctx, "cli-000001")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, TxCheckout, history[0].Type)
	assert.Equal(t, TxReturn, history[1].Type)
}

func TestAppendTransactionRoutesLibrarians(t *testing.T) {
	db := ledgerFixture(t)

	history, err := db.ItemHistory(context.Background(), "itm-000001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, TxItemAdded, history[0].Type)
	assert.Equal(t, "libra-000001", history[0].UserID)
	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM item_transactions WHERE librarian_id = ? AND client_id IS NULL`, "libra-000001"))
}

func TestAppendTransactionRejectsBadInput(t *testing.T) {
	db := ledgerFixture(t)
	ctx := context.Background()

	_, err := db.AppendTransaction(ctx, "xyz-000001", "itm-000001", TxCheckout)
	assert.ErrorIs(t, err, ErrRouting)

	_, err = db.AppendTransaction(ctx, "cli-000001", "itm-000001", TxType("borrow"))
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 1, count(t, db, `SELECT COUNT(*) FROM item_transactions`))
}

func TestAppendTransactionForeignKey(t *testing.T) {
	db := ledgerFixture(t)
	ctx := context.Background()

	_, err := db.AppendTransaction(ctx, "cli-000001", "itm-999999", TxCheckout)
	assert.ErrorIs(t, err, ErrForeignKey)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = db.AppendTransaction(ctx, "cli-999999", "itm-000001", TxCheckout)
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestAppendTransactionDuplicateID(t *testing.T) {
	db := ledgerFixture(t)
	ctx := context.Background()
	fixedIDs(t)

	_, err := db.AppendTransaction(ctx, "cli-000001", "itm-000001", TxCheckout)
	require.NoError(t, err)
	_, err = db.AppendTransaction(ctx, "cli-000001", "itm-000001", TxCheckout)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestUserHistoryUnknownPrefix(t *testing.T) {
	db := tempDB(t)
	_, err := db.UserHistory(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrRouting)
}
