package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Catalog defaults applied by AddItem.
const (
	DefaultFormat          = "book"
	DefaultMaxCheckoutDays = 14
)

const itemColumns = `item_id, title, COALESCE(creator,''), COALESCE(isbn,''), COALESCE(genre,''),
        format, max_checkout_days, status, COALESCE(image_url,''), COALESCE(last_updated_by,''), created_at`

func scanItem(sc interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	err := sc.Scan(&it.ID, &it.Title, &it.Creator, &it.ISBN, &it.Genre,
		&it.Format, &it.MaxCheckoutDays, &it.Status, &it.ImageURL, &it.LastUpdatedBy, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// nullable keeps optional text columns NULL instead of "".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// AddItem validates the librarian, then inserts the item and its
// item_added ledger entry in one transaction.
func (d *Database) AddItem(ctx context.Context, librarianID string, ni NewItem) (*Item, error) {
	if strings.TrimSpace(ni.Title) == "" {
		return nil, fmt.Errorf("add item: title is required: %w", ErrValidation)
	}
	if ni.MaxCheckoutDays < 0 {
		return nil, fmt.Errorf("add item: negative max_checkout_days: %w", ErrValidation)
	}
	if _, err := d.ValidateLibrarian(ctx, librarianID); err != nil {
		return nil, err
	}

	if ni.ID == "" {
		id, err := NewItemID()
		if err != nil {
			return nil, err
		}
		ni.ID = id
	}
	if ni.Format == "" {
		ni.Format = DefaultFormat
	}
	if ni.MaxCheckoutDays == 0 {
		ni.MaxCheckoutDays = DefaultMaxCheckoutDays
	}
	if ni.Status == "" {
		ni.Status = StatusAvailable
	}

	var item *Item
	err := d.withTx(ctx, func(ctx context.Context, s session) error {
		_, err := s.exec(ctx, `INSERT INTO library_items (
            item_id, title, creator, isbn, genre, format,
            max_checkout_days, status, image_url, last_updated_by
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ni.ID, ni.Title, nullable(ni.Creator), nullable(ni.ISBN), nullable(ni.Genre), ni.Format,
			ni.MaxCheckoutDays, ni.Status, nullable(ni.ImageURL), librarianID)
		if err != nil {
			return storeError("add item", err)
		}
		if _, err := appendEntry(ctx, s, librarianID, ni.ID, TxItemAdded); err != nil {
			return err
		}
		item, err = getItem(ctx, s, ni.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem loads one catalog item.
func (d *Database) GetItem(ctx context.Context, id string) (*Item, error) {
	return getItem(ctx, d.session(), id)
}

func getItem(ctx context.Context, s session, id string) (*Item, error) {
	it, err := scanItem(s.queryRow(ctx, `SELECT `+itemColumns+` FROM library_items WHERE item_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("get item", err)
	}
	return it, nil
}

// SearchItems matches each non-blank filter as a case-insensitive
// substring and ANDs them. An empty filter lists the whole catalog.
func (d *Database) SearchItems(ctx context.Context, f ItemFilter) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM library_items WHERE 1=1`
	var params []any
	for _, c := range []struct{ col, val string }{
		{"title", f.Title},
		{"genre", f.Genre},
		{"creator", f.Creator},
	} {
		if v := strings.TrimSpace(c.val); v != "" {
			query += ` AND LOWER(` + c.col + `) LIKE ?`
			params = append(params, "%"+strings.ToLower(v)+"%")
		}
	}
	query += ` ORDER BY item_id`

	rows, err := d.session().query(ctx, query, params...)
	if err != nil {
		return nil, storeError("search items", err)
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storeError("search items", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("search items", err)
	}
	return items, nil
}

// UpdateItem applies the allow-listed subset of fields, stamps
// last_updated_by and appends item_updated, all in one transaction.
func (d *Database) UpdateItem(ctx context.Context, librarianID, itemID string, fields Fields) (int64, error) {
	u, err := BuildUpdate(fields, Items.Updatable)
	if err != nil {
		return 0, fmt.Errorf("update item %s: %w", itemID, err)
	}
	if _, err := d.ValidateLibrarian(ctx, librarianID); err != nil {
		return 0, err
	}
	// Always stamp last_updated_by for the audit trail.
	u.Set("last_updated_by", librarianID)

	var n int64
	err = d.withTx(ctx, func(ctx context.Context, s session) error {
		var err error
		if n, err = applyUpdate(ctx, s, Items, itemID, u); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("update item %s: %w", itemID, ErrNotFound)
		}
		_, err = appendEntry(ctx, s, librarianID, itemID, TxItemUpdated)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteItem removes an item and its ledger history, leaving one
// item_deleted audit entry. The steps run in one transaction in this order:
// verify the item, delete its ledger rows, insert the audit entry, delete
// the item. Any failure rolls everything back and is returned unchanged.
func (d *Database) DeleteItem(ctx context.Context, librarianID, itemID string) (DeletedItem, error) {
	if _, err := d.ValidateLibrarian(ctx, librarianID); err != nil {
		return DeletedItem{}, err
	}

	var deleted DeletedItem
	err := d.withTx(ctx, func(ctx context.Context, s session) error {
		var title string
		err := s.queryRow(ctx, `SELECT title FROM library_items WHERE item_id = ?`, itemID).Scan(&title)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delete item %s: %w", itemID, ErrNotFound)
		}
		if err != nil {
			return storeError("delete item: check item", err)
		}

		// Child rows first to satisfy referential integrity.
		if _, err := s.exec(ctx, `DELETE FROM item_transactions WHERE item_id = ?`, itemID); err != nil {
			return storeError("delete item: ledger rows", err)
		}

		auditID, err := NewAuditID()
		if err != nil {
			return err
		}
		description := fmt.Sprintf("Item '%s' deleted by librarian %s", title, librarianID)
		if _, err := s.exec(ctx, `INSERT INTO item_audit_logs (audit_id, item_id, librarian_id, transaction_type, description)
            VALUES (?, ?, ?, ?, ?)`, auditID, itemID, librarianID, string(TxItemDeleted), description); err != nil {
			return storeError("delete item: audit entry", err)
		}

		res, err := s.exec(ctx, `DELETE FROM library_items WHERE item_id = ?`, itemID)
		if err != nil {
			return storeError("delete item", err)
		}
		n, err := rowsAffected("delete item", res)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("delete item %s: %w", itemID, ErrConcurrentModification)
		}

		deleted = DeletedItem{ItemID: itemID, Title: title}
		return nil
	})
	if err != nil {
		return DeletedItem{}, err
	}
	return deleted, nil
}

// resetOverdue returns an overdue item to available. It is a no-op for any
// other status.
func resetOverdue(ctx context.Context, s session, itemID string) error {
	_, err := s.exec(ctx, `UPDATE library_items SET status = ? WHERE item_id = ? AND status = ?`,
		StatusAvailable, itemID, StatusOverdue)
	return storeError("reset overdue status", err)
}
