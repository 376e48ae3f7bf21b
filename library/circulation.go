package library

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RecordReturn appends a return for (clientID, itemID). An item that was
// marked overdue goes back to available in the same transaction, unless
// another client still has it checked out.
func (d *Database) RecordReturn(ctx context.Context, clientID, itemID string) (LedgerEntry, error) {
	var entry LedgerEntry
	err := d.withTx(ctx, func(ctx context.Context, s session) error {
		var err error
		if entry, err = appendEntry(ctx, s, clientID, itemID, TxReturn); err != nil {
			return err
		}
		out, err := checkedOutElsewhere(ctx, s, itemID)
		if err != nil || out {
			return err
		}
		return resetOverdue(ctx, s, itemID)
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// DueCheckout is an active checkout together with its due date.
type DueCheckout struct {
	Checkout   LedgerEntry
	DueAt      time.Time
	ItemStatus string
}

// Overdue reports whether the checkout is past due at now.
func (c DueCheckout) Overdue(now time.Time) bool { return c.DueAt.Before(now) }

// ActiveCheckoutsWithDue returns every client's active checkout with its
// due date: the latest of the checkout and any later renewal, plus the
// item's max_checkout_days.
func (d *Database) ActiveCheckoutsWithDue(ctx context.Context) ([]DueCheckout, error) {
	s := d.session()

	clients, err := checkoutClients(ctx, s, "")
	if err != nil {
		return nil, err
	}

	var due []DueCheckout
	for _, clientID := range clients {
		events, err := openEvents(ctx, s, clientID, TxCheckout)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			start := ev.entry.CreatedAt
			renewed, err := lastRenewal(ctx, s, clientID, ev.entry.ItemID, ev.entry.Seq)
			if err != nil {
				return nil, err
			}
			if renewed.After(start) {
				start = renewed
			}
			due = append(due, DueCheckout{
				Checkout:   ev.entry,
				DueAt:      start.AddDate(0, 0, ev.maxCheckoutDays),
				ItemStatus: ev.itemStatus,
			})
		}
	}
	return due, nil
}

// checkedOutElsewhere reports whether any client still has an active
// checkout of itemID.
func checkedOutElsewhere(ctx context.Context, s session, itemID string) (bool, error) {
	clients, err := checkoutClients(ctx, s, itemID)
	if err != nil {
		return false, err
	}
	for _, clientID := range clients {
		events, err := openEvents(ctx, s, clientID, TxCheckout)
		if err != nil {
			return false, err
		}
		for _, ev := range events {
			if ev.entry.ItemID == itemID {
				return true, nil
			}
		}
	}
	return false, nil
}

// checkoutClients lists the clients with any checkout in the ledger,
// restricted to itemID when it is not empty.
func checkoutClients(ctx context.Context, s session, itemID string) ([]string, error) {
	query := `SELECT DISTINCT client_id FROM item_transactions
        WHERE client_id IS NOT NULL AND transaction_type = ?`
	args := []any{string(TxCheckout)}
	if itemID != "" {
		query += ` AND item_id = ?`
		args = append(args, itemID)
	}
	rows, err := s.query(ctx, query+` ORDER BY client_id`, args...)
	if err != nil {
		return nil, storeError("list borrowers", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeError("list borrowers", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list borrowers", err)
	}
	return ids, nil
}

// lastRenewal returns the time of the newest renewal after seq, or the zero
// time when there is none.
func lastRenewal(ctx context.Context, s session, clientID, itemID string, afterSeq int64) (time.Time, error) {
	var at time.Time
	err := s.queryRow(ctx, `SELECT created_at FROM item_transactions
        WHERE client_id = ? AND item_id = ? AND transaction_type = ? AND seq > ?
        ORDER BY seq DESC LIMIT 1`, clientID, itemID, string(TxRenewal), afterSeq).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, storeError("last renewal", err)
	}
	return at, nil
}
