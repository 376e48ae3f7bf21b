package library

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Fields is a sparse column → value map supplied by a caller. Nil values,
// including nil pointers, mean "leave unchanged".
type Fields map[string]any

// Update is an ordered list of column assignments. Columns[i] is bound to
// Params[i].
type Update struct {
	Columns []string
	Params  []any
}

// BuildUpdate keeps the entries of fields whose key is in allowed and whose
// value is non-nil, in the order of allowed. Anything else in fields is
// dropped. It fails with ErrValidation when nothing remains.
func BuildUpdate(fields Fields, allowed []string) (Update, error) {
	var u Update
	for _, col := range allowed {
		v, ok := fields[col]
		if !ok || isNil(v) {
			continue
		}
		u.Columns = append(u.Columns, col)
		u.Params = append(u.Params, v)
	}
	if len(u.Columns) == 0 {
		return Update{}, fmt.Errorf("no valid fields provided for update: %w", ErrValidation)
	}
	return u, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Set appends an assignment without consulting any allow-list.
func (u *Update) Set(col string, v any) {
	u.Columns = append(u.Columns, col)
	u.Params = append(u.Params, v)
}

// SetClause renders "SET a = ?, b = ?".
func (u Update) SetClause() string {
	parts := make([]string, len(u.Columns))
	for i, col := range u.Columns {
		parts[i] = col + " = ?"
	}
	return "SET " + strings.Join(parts, ", ")
}

// Statement renders the full UPDATE for one row of table. The key value is
// the last parameter.
func (u Update) Statement(table, keyCol string, id any) (string, []any) {
	query := fmt.Sprintf("UPDATE %s %s WHERE %s = ?", table, u.SetClause(), keyCol)
	params := make([]any, 0, len(u.Params)+1)
	params = append(params, u.Params...)
	return query, append(params, id)
}

// UpdateEntity applies the allow-listed subset of fields to one row of c
// and reports the affected row count. Items are refused: they change only
// through UpdateItem, which stamps last_updated_by and appends item_updated.
func (d *Database) UpdateEntity(ctx context.Context, c Collection, id string, fields Fields) (int64, error) {
	if c.Table == Items.Table {
		return 0, fmt.Errorf("update %s %s: items need an acting librarian, use UpdateItem: %w", c.Table, id, ErrValidation)
	}
	u, err := BuildUpdate(fields, c.Updatable)
	if err != nil {
		return 0, fmt.Errorf("update %s %s: %w", c.Table, id, err)
	}
	return applyUpdate(ctx, d.session(), c, id, u)
}

func applyUpdate(ctx context.Context, s session, c Collection, id string, u Update) (int64, error) {
	query, params := u.Statement(c.Table, c.Key, id)
	res, err := s.exec(ctx, query, params...)
	if err != nil {
		return 0, storeError("update "+c.Table, err)
	}
	return rowsAffected("update "+c.Table, res)
}
