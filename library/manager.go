package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LibraryManager is the facade callers use. It adds caller-side
// preconditions, credential hashing and logging on top of the Database.
type LibraryManager struct {
	db       *Database
	log      *zap.Logger
	hashCost int
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(lm *LibraryManager) { lm.log = l }
}

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(lm *LibraryManager) { lm.hashCost = cost }
}

// NewLibraryManager wraps an open Database. The manager does not own db;
// Close closes it for convenience.
func NewLibraryManager(db *Database, opts ...Option) *LibraryManager {
	lm := &LibraryManager{db: db, log: zap.NewNop(), hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the underlying store.
func (lm *LibraryManager) Database() *Database { return lm.db }

// ------------------ Users ------------------

// SignUp hashes password and creates a user of kind.
func (lm *LibraryManager) SignUp(ctx context.Context, kind UserKind, first, last, email, password string) (*User, error) {
	if password == "" {
		return nil, fmt.Errorf("sign up: password is required: %w", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), lm.hashCost)
	if err != nil {
		return nil, fmt.Errorf("sign up: hash password: %w", err)
	}
	u, err := lm.db.CreateUser(ctx, kind, NewUser{FirstName: first, LastName: last, Email: email, PasswordHash: string(hash)})
	if err != nil {
		lm.log.Warn("sign up rejected", zap.Stringer("kind", kind), zap.Error(err))
		return nil, err
	}
	lm.log.Info("user signed up", zap.String("user", u.ID), zap.Stringer("kind", kind))
	return u, nil
}

// Authenticate checks password against the stored hash. Inactive users
// never authenticate.
func (lm *LibraryManager) Authenticate(ctx context.Context, userID, password string) (*User, error) {
	u, err := lm.db.FindUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("authenticate %s: %w", userID, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("authenticate %s: inactive: %w", userID, ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", userID, ErrInvalidCredentials)
	}
	return u, nil
}

// ResetPassword stores a new hash for userID.
func (lm *LibraryManager) ResetPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return fmt.Errorf("reset password: %w", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), lm.hashCost)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return lm.db.SetPassword(ctx, userID, string(hash))
}

func (lm *LibraryManager) FindUser(ctx context.Context, id string) (*User, error) {
	return lm.db.FindUser(ctx, id)
}

func (lm *LibraryManager) UpdateUser(ctx context.Context, id string, fields Fields) error {
	return lm.db.UpdateUser(ctx, id, fields)
}

func (lm *LibraryManager) DeleteUser(ctx context.Context, id string) error {
	if err := lm.db.DeleteUser(ctx, id); err != nil {
		return err
	}
	lm.log.Info("user deleted", zap.String("user", id))
	return nil
}

// ------------------ Catalog ------------------

func (lm *LibraryManager) AddItem(ctx context.Context, librarianID string, ni NewItem) (*Item, error) {
	it, err := lm.db.AddItem(ctx, librarianID, ni)
	if err != nil {
		lm.log.Error("add item failed", zap.String("librarian", librarianID), zap.Error(err))
		return nil, err
	}
	lm.log.Info("item added", zap.String("item", it.ID), zap.String("librarian", librarianID))
	return it, nil
}

func (lm *LibraryManager) GetItem(ctx context.Context, id string) (*Item, error) {
	return lm.db.GetItem(ctx, id)
}

func (lm *LibraryManager) SearchItems(ctx context.Context, f ItemFilter) ([]*Item, error) {
	return lm.db.SearchItems(ctx, f)
}

func (lm *LibraryManager) UpdateItem(ctx context.Context, librarianID, itemID string, fields Fields) (int64, error) {
	n, err := lm.db.UpdateItem(ctx, librarianID, itemID, fields)
	if err != nil {
		lm.log.Error("update item failed", zap.String("item", itemID), zap.String("librarian", librarianID), zap.Error(err))
		return 0, err
	}
	lm.log.Info("item updated", zap.String("item", itemID), zap.String("librarian", librarianID))
	return n, nil
}

func (lm *LibraryManager) DeleteItem(ctx context.Context, librarianID, itemID string) (DeletedItem, error) {
	del, err := lm.db.DeleteItem(ctx, librarianID, itemID)
	if err != nil {
		lm.log.Error("delete item failed", zap.String("item", itemID), zap.String("librarian", librarianID), zap.Error(err))
		return DeletedItem{}, err
	}
	lm.log.Info("item deleted", zap.String("item", itemID), zap.String("title", del.Title), zap.String("librarian", librarianID))
	return del, nil
}

// ------------------ Circulation ------------------

// Status is the derived relationship of one client to the catalog.
type Status struct {
	Checkouts []LedgerEntry `json:"checkouts"`
	Holds     []LedgerEntry `json:"holds"`
	Overdue   []LedgerEntry `json:"overdue"`
}

// Status derives the active checkouts, holds and overdue items of userID.
func (lm *LibraryManager) Status(ctx context.Context, userID string) (Status, error) {
	var (
		st  Status
		err error
	)
	if st.Checkouts, err = lm.db.ActiveCheckouts(ctx, userID); err != nil {
		return Status{}, err
	}
	if st.Holds, err = lm.db.ActiveHolds(ctx, userID); err != nil {
		return Status{}, err
	}
	if st.Overdue, err = lm.db.OverdueItems(ctx, userID); err != nil {
		return Status{}, err
	}
	return st, nil
}

func (lm *LibraryManager) Checkout(ctx context.Context, clientID, itemID string) (LedgerEntry, error) {
	return lm.circulate(ctx, clientID, itemID, TxCheckout)
}

func (lm *LibraryManager) Return(ctx context.Context, clientID, itemID string) (LedgerEntry, error) {
	return lm.circulate(ctx, clientID, itemID, TxReturn)
}

func (lm *LibraryManager) Hold(ctx context.Context, clientID, itemID string) (LedgerEntry, error) {
	return lm.circulate(ctx, clientID, itemID, TxHold)
}

func (lm *LibraryManager) CancelHold(ctx context.Context, clientID, itemID string) (LedgerEntry, error) {
	return lm.circulate(ctx, clientID, itemID, TxCancelHold)
}

func (lm *LibraryManager) Renew(ctx context.Context, clientID, itemID string) (LedgerEntry, error) {
	return lm.circulate(ctx, clientID, itemID, TxRenewal)
}

// circulate checks the caller-side preconditions for t and appends it. The
// checks and the append are separate calls; availability across clients is
// not locked.
func (lm *LibraryManager) circulate(ctx context.Context, clientID, itemID string, t TxType) (LedgerEntry, error) {
	if err := lm.checkCirculation(ctx, clientID, itemID, t); err != nil {
		lm.log.Warn("circulation refused",
			zap.String("user", clientID), zap.String("item", itemID), zap.String("type", string(t)), zap.Error(err))
		return LedgerEntry{}, err
	}

	var (
		e   LedgerEntry
		err error
	)
	if t == TxReturn {
		e, err = lm.db.RecordReturn(ctx, clientID, itemID)
	} else {
		e, err = lm.db.AppendTransaction(ctx, clientID, itemID, t)
	}
	if err != nil {
		lm.log.Error("append transaction failed",
			zap.String("user", clientID), zap.String("item", itemID), zap.String("type", string(t)), zap.Error(err))
		return LedgerEntry{}, err
	}
	lm.log.Info("transaction appended",
		zap.String("transaction", e.TransactionID), zap.String("user", clientID),
		zap.String("item", itemID), zap.String("type", string(t)))
	return e, nil
}

func (lm *LibraryManager) checkCirculation(ctx context.Context, clientID, itemID string, t TxType) error {
	route, err := Resolve(clientID)
	if err != nil {
		return err
	}
	if route.Kind != KindClient {
		return fmt.Errorf("%s by %s: only clients circulate items: %w", t, clientID, ErrValidation)
	}
	u, err := lm.db.FindUser(ctx, clientID)
	if err != nil {
		return err
	}
	if !u.Active {
		return fmt.Errorf("%s by %s: client is inactive: %w", t, clientID, ErrValidation)
	}
	if _, err := lm.db.GetItem(ctx, itemID); err != nil {
		return err
	}

	var active []LedgerEntry
	switch t {
	case TxCheckout, TxReturn, TxRenewal:
		active, err = lm.db.ActiveCheckouts(ctx, clientID)
	case TxHold, TxCancelHold:
		active, err = lm.db.ActiveHolds(ctx, clientID)
	}
	if err != nil {
		return err
	}
	holding := containsItem(active, itemID)

	switch {
	case (t == TxCheckout || t == TxHold) && holding:
		return fmt.Errorf("%s of %s: already active for %s: %w", t, itemID, clientID, ErrValidation)
	case (t == TxReturn || t == TxRenewal) && !holding:
		return fmt.Errorf("%s of %s: no active checkout for %s: %w", t, itemID, clientID, ErrValidation)
	case t == TxCancelHold && !holding:
		return fmt.Errorf("%s of %s: no active hold for %s: %w", t, itemID, clientID, ErrValidation)
	}
	return nil
}

func containsItem(entries []LedgerEntry, itemID string) bool {
	for _, e := range entries {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}

// SweepOverdue marks the items of checkouts past due at now as overdue,
// acting as librarianID. It returns the item ids it marked.
func (lm *LibraryManager) SweepOverdue(ctx context.Context, librarianID string, now time.Time) ([]string, error) {
	if _, err := lm.db.ValidateLibrarian(ctx, librarianID); err != nil {
		return nil, err
	}
	due, err := lm.db.ActiveCheckoutsWithDue(ctx)
	if err != nil {
		return nil, err
	}

	var marked []string
	seen := make(map[string]bool)
	for _, c := range due {
		if !c.Overdue(now) || c.ItemStatus == StatusOverdue || seen[c.Checkout.ItemID] {
			continue
		}
		seen[c.Checkout.ItemID] = true
		if _, err := lm.db.UpdateItem(ctx, librarianID, c.Checkout.ItemID, Fields{"status": StatusOverdue}); err != nil {
			return marked, err
		}
		marked = append(marked, c.Checkout.ItemID)
		lm.log.Info("item marked overdue",
			zap.String("item", c.Checkout.ItemID), zap.String("user", c.Checkout.UserID), zap.Time("due", c.DueAt))
	}
	return marked, nil
}
