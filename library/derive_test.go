package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deriveFixture(t *testing.T) *Database {
	t.Helper()
	db := tempDB(t)
	insertUser(t, db, "libra-000001")
	insertUser(t, db, "cli-000001")
	insertUser(t, db, "cli-000002")
	addItem(t, db, "libra-000001", "itm-000001", "Dune")
	addItem(t, db, "libra-000001", "itm-000002", "Emma")
	return db
}

func appendAll(t *testing.T, db *Database, userID, itemID string, types ...TxType) {
	t.Helper()
	for _, typ := range types {
		_, err := db.AppendTransaction(context.Background(), userID, itemID, typ)
		require.NoError(t, err)
	}
}

func TestDerivedSetsEmptyWithoutHistory(t *testing.T) {
	db := deriveFixture(t)
	ctx := context.Background()

	checkouts, err := db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	assert.NotNil(t, checkouts)
	assert.Empty(t, checkouts)

	holds, err := db.ActiveHolds(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Empty(t, holds)

	overdue, err := db.OverdueItems(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestActiveCheckouts(t *testing.T) {
	db := deriveFixture(t)
	ctx := context.Background()

	appendAll(t, db, "cli-000001", "itm-000001", TxCheckout)
	appendAll(t, db, "cli-000001", "itm-000002", TxCheckout, TxReturn)
	appendAll(t, db, "cli-000002", "itm-000002", TxCheckout)

	got, err := db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"itm-000001"}, itemIDs(got))
	assert.Equal(t, "cli-000001", got[0].UserID)
	assert.Equal(t, TxCheckout, got[0].Type)

	got, err = db.ActiveCheckouts(ctx, "cli-000002")
	require.NoError(t, err)
	assert.Equal(t, []string{"itm-000002"}, itemIDs(got))
}

func TestActiveCheckoutsRepeatedCycles(t *testing.T) {
	db := deriveFixture(t)
	ctx := context.Background()

	appendAll(t, db, "cli-000001", "itm-000001", TxCheckout, TxReturn, TxCheckout)
	got, err := db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	require.Len(t, got, 1)

	history, err := db.UserHistory(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, history[2].Seq, got[0].Seq, "the second checkout is the open one")

	appendAll(t, db, "cli-000001", "itm-000001", TxReturn)
	got, err = db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestActiveCheckoutsIgnoresEarlierReturns(t *testing.T) {
	db := deriveFixture(t)

	// a return that precedes the checkout closes nothing
	appendAll(t, db, "cli-000001", "itm-000001", TxReturn, TxCheckout)
	got, err := db.ActiveCheckouts(context.Background(), "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"itm-000001"}, itemIDs(got))
}

func TestActiveCheckoutsIgnoresOtherUsersReturns(t *testing.T) {
	db := deriveFixture(t)

	appendAll(t, db, "cli-000001", "itm-000001", TxCheckout)
	appendAll(t, db, "cli-000002", "itm-000001", TxReturn)
	got, err := db.ActiveCheckouts(context.Background(), "cli-000001")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestActiveHolds(t *testing.T) {
	db := deriveFixture(t)
	ctx := context.Background()

	appendAll(t, db, "cli-000001", "itm-000001", TxHold)
	appendAll(t, db, "cli-000001", "itm-000002", TxHold, TxCancelHold)
	got, err := db.ActiveHolds(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"itm-000001"}, itemIDs(got))

	appendAll(t, db, "cli-000001", "itm-000001", TxHoldExpired)
	got, err = db.ActiveHolds(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Empty(t, got)

	// renewals and holds never close checkouts
	appendAll(t, db, "cli-000001", "itm-000002", TxCheckout, TxRenewal, TxHold)
	checkouts, err := db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"itm-000002"}, itemIDs(checkouts))
}

func TestOverdueItems(t *testing.T) {
	db := deriveFixture(t)
	ctx := context.Background()

	appendAll(t, db, "cli-000001", "itm-000001", TxCheckout)
	appendAll(t, db, "cli-000001", "itm-000002", TxCheckout)
	_, err := db.UpdateItem(ctx, "libra-000001", "itm-000002", Fields{"status": StatusOverdue})
	require.NoError(t, err)

	got, err := db.OverdueItems(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"itm-000002"}, itemIDs(got))

	// overdue status without an active checkout is not reported
	appendAll(t, db, "cli-000002", "itm-000002", TxHold)
	got, err = db.OverdueItems(ctx, "cli-000002")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDerivationIsIdempotent(t *testing.T) {
	db := deriveFixture(t)
	ctx := context.Background()
	appendAll(t, db, "cli-000001", "itm-000001", TxCheckout, TxReturn, TxCheckout)
	appendAll(t, db, "cli-000001", "itm-000002", TxHold)

	first, err := db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	second, err := db.ActiveCheckouts(ctx, "cli-000001")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 6, count(t, db, `SELECT COUNT(*) FROM item_transactions`), "reads never write")
}

func TestDeriveUnknownPrefix(t *testing.T) {
	db := tempDB(t)
	_, err := db.ActiveCheckouts(context.Background(), "abc-000001")
	assert.ErrorIs(t, err, ErrRouting)
}

func TestMatchClosers(t *testing.T) {
	ev := func(seq int64, candidates ...int64) openEvent {
		return openEvent{entry: LedgerEntry{Seq: seq}, candidates: candidates}
	}
	seqs := func(events []openEvent) []int64 {
		out := []int64{}
		for _, e := range events {
			out = append(out, e.entry.Seq)
		}
		return out
	}

	tests := []struct {
		name   string
		events []openEvent
		want   []int64
	}{
		{"no closers", []openEvent{ev(1), ev(3)}, []int64{1, 3}},
		{"closed then reopened", []openEvent{ev(1, 2), ev(3)}, []int64{3}},
		{"two cycles closed", []openEvent{ev(1, 2, 4), ev(3, 4)}, []int64{}},
		// one return can only close one checkout
		{"shared closer", []openEvent{ev(1, 3), ev(2, 3)}, []int64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, seqs(matchClosers(tt.events)))
		})
	}
}
