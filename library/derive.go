package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// closers lists, per opening type, the event types that end its episode.
var closers = map[TxType][]TxType{
	TxCheckout: {TxReturn},
	TxHold:     {TxCancelHold, TxHoldExpired},
}

// openEventsQuery is a self anti-join: every opening row of the user paired
// with each later closing row of the same (user, item). %[1]s is the routed
// key column, %[2]s the closing type placeholders.
const openEventsQuery = `
SELECT o.seq, o.transaction_id, o.item_id, o.transaction_type, o.created_at,
       i.status, i.max_checkout_days, c.seq
FROM item_transactions AS o
JOIN library_items AS i ON i.item_id = o.item_id
LEFT JOIN item_transactions AS c
       ON c.%[1]s = o.%[1]s
      AND c.item_id = o.item_id
      AND c.transaction_type IN (%[2]s)
      AND c.seq > o.seq
WHERE o.%[1]s = ?
  AND o.transaction_type = ?
ORDER BY o.seq ASC, c.seq ASC`

// openEvent is an opening ledger row together with the item state needed
// by the read paths and the seqs of closing rows that could end it.
type openEvent struct {
	entry           LedgerEntry
	itemStatus      string
	maxCheckoutDays int
	candidates      []int64
}

// ActiveCheckouts returns the checkouts of userID not yet matched by a
// return, oldest first. No history yields an empty slice.
func (d *Database) ActiveCheckouts(ctx context.Context, userID string) ([]LedgerEntry, error) {
	events, err := openEvents(ctx, d.session(), userID, TxCheckout)
	if err != nil {
		return nil, err
	}
	return entriesOf(events, nil), nil
}

// ActiveHolds returns the holds of userID not yet cancelled or expired.
func (d *Database) ActiveHolds(ctx context.Context, userID string) ([]LedgerEntry, error) {
	events, err := openEvents(ctx, d.session(), userID, TxHold)
	if err != nil {
		return nil, err
	}
	return entriesOf(events, nil), nil
}

// OverdueItems returns the active checkouts of userID whose item has been
// marked overdue.
func (d *Database) OverdueItems(ctx context.Context, userID string) ([]LedgerEntry, error) {
	events, err := openEvents(ctx, d.session(), userID, TxCheckout)
	if err != nil {
		return nil, err
	}
	return entriesOf(events, func(ev openEvent) bool { return ev.itemStatus == StatusOverdue }), nil
}

func entriesOf(events []openEvent, keep func(openEvent) bool) []LedgerEntry {
	out := []LedgerEntry{}
	for _, ev := range events {
		if keep == nil || keep(ev) {
			out = append(out, ev.entry)
		}
	}
	return out
}

// openEvents derives the still-open episodes of type open for userID.
func openEvents(ctx context.Context, s session, userID string, open TxType) ([]openEvent, error) {
	closing, ok := closers[open]
	if !ok {
		return nil, fmt.Errorf("derive %q: not an opening type: %w", open, ErrValidation)
	}
	route, err := Resolve(userID)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", open, err)
	}

	args := make([]any, 0, len(closing)+2)
	for _, t := range closing {
		args = append(args, string(t))
	}
	args = append(args, userID, string(open))
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(closing)), ",")

	rows, err := s.query(ctx, fmt.Sprintf(openEventsQuery, route.Key, placeholders), args...)
	if err != nil {
		return nil, storeError("derive "+string(open), err)
	}
	defer rows.Close()

	var events []openEvent
	for rows.Next() {
		var (
			e      LedgerEntry
			typ    string
			status string
			days   int
			closer sql.NullInt64
		)
		if err := rows.Scan(&e.Seq, &e.TransactionID, &e.ItemID, &typ, &e.CreatedAt, &status, &days, &closer); err != nil {
			return nil, storeError("derive "+string(open), err)
		}
		if n := len(events); n == 0 || events[n-1].entry.Seq != e.Seq {
			e.UserID = userID
			e.Type = TxType(typ)
			events = append(events, openEvent{entry: e, itemStatus: status, maxCheckoutDays: days})
		}
		if closer.Valid {
			last := &events[len(events)-1]
			last.candidates = append(last.candidates, closer.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("derive "+string(open), err)
	}
	return matchClosers(events), nil
}

// matchClosers walks opening events in seq order and lets each claim the
// earliest closing event after it that no earlier opener claimed. Openers
// left unclaimed are still open. Candidates must be ascending.
func matchClosers(events []openEvent) []openEvent {
	consumed := make(map[int64]bool)
	var open []openEvent
	for _, ev := range events {
		matched := false
		for _, c := range ev.candidates {
			if !consumed[c] {
				consumed[c] = true
				matched = true
				break
			}
		}
		if !matched {
			open = append(open, ev)
		}
	}
	return open
}
