package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateUser stores a new user of kind and returns it with its generated
// identifier. The abstract kind cannot be created.
func (d *Database) CreateUser(ctx context.Context, kind UserKind, nu NewUser) (*User, error) {
	if kind == KindUnknown {
		return nil, fmt.Errorf("create user: %w", ErrAbstraction)
	}
	if strings.TrimSpace(nu.FirstName) == "" || strings.TrimSpace(nu.LastName) == "" ||
		strings.TrimSpace(nu.Email) == "" || nu.PasswordHash == "" {
		return nil, fmt.Errorf("create user: first name, last name, email and password are required: %w", ErrValidation)
	}
	id, err := NewUserID(kind)
	if err != nil {
		return nil, err
	}
	route, err := Resolve(id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s, first_name, last_name, email, password, is_active)
        VALUES (?, ?, ?, ?, ?, ?)`, route.Table, route.Key)
	if _, err := d.session().exec(ctx, query, id, nu.FirstName, nu.LastName, nu.Email, nu.PasswordHash, true); err != nil {
		return nil, storeError("create "+kind.String(), err)
	}
	return d.FindUser(ctx, id)
}

// FindUser loads the user identified by id from the table its prefix
// routes to.
func (d *Database) FindUser(ctx context.Context, id string) (*User, error) {
	return findUser(ctx, d.session(), id)
}

func findUser(ctx context.Context, s session, id string) (*User, error) {
	route, err := Resolve(id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u := User{Kind: route.Kind}
	query := fmt.Sprintf(`SELECT %s, first_name, last_name, email, password, is_active, created_at
        FROM %s WHERE %s = ?`, route.Key, route.Table, route.Key)
	err = s.queryRow(ctx, query, id).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeError("find user", err)
	}
	return &u, nil
}

// ListUsers returns every user of the collection backing kind.
func (d *Database) ListUsers(ctx context.Context, kind UserKind) ([]*User, error) {
	prefix, ok := kindPrefixes[kind]
	if !ok {
		return nil, fmt.Errorf("list users: %w", ErrAbstraction)
	}
	route := routes[prefix]
	rows, err := d.session().query(ctx, fmt.Sprintf(`SELECT %s, first_name, last_name, email, is_active, created_at
        FROM %s ORDER BY %s`, route.Key, route.Table, route.Key))
	if err != nil {
		return nil, storeError("list users", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Active, &u.CreatedAt); err != nil {
			return nil, storeError("list users", err)
		}
		// librarians and admins share a table; the prefix tells them apart
		if r, err := Resolve(u.ID); err == nil {
			u.Kind = r.Kind
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

// UpdateUser applies the allow-listed subset of fields to the user.
func (d *Database) UpdateUser(ctx context.Context, id string, fields Fields) error {
	route, err := Resolve(id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := d.UpdateEntity(ctx, route.Collection, id, fields)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update user %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetPassword replaces the stored credential hash.
func (d *Database) SetPassword(ctx context.Context, id, hash string) error {
	route, err := Resolve(id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if hash == "" {
		return fmt.Errorf("set password: empty hash: %w", ErrValidation)
	}
	var u Update
	u.Set("password", hash)
	n, err := applyUpdate(ctx, d.session(), route.Collection, id, u)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set password %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteUser removes the user row unconditionally. Ledger rows that still
// reference the user make this fail with ErrForeignKey.
func (d *Database) DeleteUser(ctx context.Context, id string) error {
	route, err := Resolve(id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	res, err := d.session().exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, route.Table, route.Key), id)
	if err != nil {
		return storeError("delete user", err)
	}
	n, err := rowsAffected("delete user", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete user %s: %w", id, ErrNotFound)
	}
	return nil
}

// ValidateLibrarian checks that id names an existing, active librarian or
// admin. It only reads, so it runs outside any mutation scope.
func (d *Database) ValidateLibrarian(ctx context.Context, id string) (*User, error) {
	route, err := Resolve(id)
	if err != nil {
		return nil, fmt.Errorf("validate librarian: %w", err)
	}
	if !route.Kind.Staff() {
		return nil, fmt.Errorf("validate librarian: %s is a %s: %w", id, route.Kind, ErrValidation)
	}
	u, err := d.FindUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("validate librarian: %w", err)
	}
	if !u.Active {
		return nil, fmt.Errorf("validate librarian: %s is inactive: %w", id, ErrValidation)
	}
	return u, nil
}
