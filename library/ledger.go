package library

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendTransaction records one immutable event of type t between userID
// and itemID. Ledger rows are never updated; a cancellation is a new,
// opposing event.
func (d *Database) AppendTransaction(ctx context.Context, userID, itemID string, t TxType) (LedgerEntry, error) {
	return appendEntry(ctx, d.session(), userID, itemID, t)
}

func appendEntry(ctx context.Context, s session, userID, itemID string, t TxType) (LedgerEntry, error) {
	if !t.Valid() {
		return LedgerEntry{}, fmt.Errorf("append transaction %q: %w", t, ErrValidation)
	}
	route, err := Resolve(userID)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("append transaction: %w", err)
	}
	txID, err := NewTransactionID(t)
	if err != nil {
		return LedgerEntry{}, err
	}

	query := fmt.Sprintf(`INSERT INTO item_transactions (transaction_id, %s, item_id, transaction_type)
        VALUES (?, ?, ?, ?)`, route.Key)
	if _, err := s.exec(ctx, query, txID, userID, itemID, string(t)); err != nil {
		return LedgerEntry{}, storeError("append transaction", err)
	}

	e := LedgerEntry{TransactionID: txID, UserID: userID, ItemID: itemID, Type: t}
	err = s.queryRow(ctx, `SELECT seq, created_at FROM item_transactions WHERE transaction_id = ?`, txID).
		Scan(&e.Seq, &e.CreatedAt)
	if err != nil {
		return LedgerEntry{}, storeError("read appended transaction", err)
	}
	return e, nil
}

const historyColumns = `seq, transaction_id, COALESCE(client_id, librarian_id), item_id, transaction_type, created_at`

// ItemHistory lists every ledger entry that references itemID in seq order.
func (d *Database) ItemHistory(ctx context.Context, itemID string) ([]LedgerEntry, error) {
	rows, err := d.session().query(ctx, `SELECT `+historyColumns+`
        FROM item_transactions WHERE item_id = ? ORDER BY seq`, itemID)
	if err != nil {
		return nil, storeError("item history", err)
	}
	return scanEntries(rows)
}

// UserHistory lists every ledger entry of userID in seq order.
func (d *Database) UserHistory(ctx context.Context, userID string) ([]LedgerEntry, error) {
	route, err := Resolve(userID)
	if err != nil {
		return nil, fmt.Errorf("user history: %w", err)
	}
	rows, err := d.session().query(ctx, fmt.Sprintf(`SELECT `+historyColumns+`
        FROM item_transactions WHERE %s = ? ORDER BY seq`, route.Key), userID)
	if err != nil {
		return nil, storeError("user history", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]LedgerEntry, error) {
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var (
			e   LedgerEntry
			typ string
		)
		if err := rows.Scan(&e.Seq, &e.TransactionID, &e.UserID, &e.ItemID, &typ, &e.CreatedAt); err != nil {
			return nil, storeError("scan transaction", err)
		}
		e.Type = TxType(typ)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("scan transaction", err)
	}
	return entries, nil
}

// AuditLog lists the audit entries recorded for itemID in seq order.
func (d *Database) AuditLog(ctx context.Context, itemID string) ([]AuditEntry, error) {
	rows, err := d.session().query(ctx, `SELECT seq, audit_id, item_id, librarian_id, transaction_type, description, created_at
        FROM item_audit_logs WHERE item_id = ? ORDER BY seq`, itemID)
	if err != nil {
		return nil, storeError("audit log", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var (
			a   AuditEntry
			typ string
		)
		if err := rows.Scan(&a.Seq, &a.AuditID, &a.ItemID, &a.LibrarianID, &typ, &a.Description, &a.CreatedAt); err != nil {
			return nil, storeError("scan audit entry", err)
		}
		a.Type = TxType(typ)
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("scan audit entry", err)
	}
	return entries, nil
}
