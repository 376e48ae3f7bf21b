package library

import (
	"crypto/rand"
	"fmt"
	"io"
)

// TxType is a ledger transaction type.
type TxType string

const (
	TxCheckout    TxType = "checkout"
	TxReturn      TxType = "return"
	TxHold        TxType = "hold"
	TxCancelHold  TxType = "cancel_hold"
	TxRenewal     TxType = "renewal"
	TxHoldExpired TxType = "hold_expired"
	TxItemAdded   TxType = "item_added"
	TxItemUpdated TxType = "item_updated"
	TxItemDeleted TxType = "item_deleted"
)

const auditPrefix = "aud"

var txPrefixes = map[TxType]string{
	TxCheckout:    "chk",
	TxReturn:      "ret",
	TxHold:        "hld",
	TxCancelHold:  "chl",
	TxRenewal:     "rnw",
	TxHoldExpired: "exp",
	TxItemAdded:   "add",
	TxItemUpdated: "upd",
	TxItemDeleted: "del",
}

// Prefix returns the identifier prefix of t, or "" if t is not a known type.
func (t TxType) Prefix() string { return txPrefixes[t] }

// Valid reports whether t belongs to the closed enumeration.
func (t TxType) Valid() bool { return t.Prefix() != "" }

// ParseTxType accepts either a type name ("checkout") or its prefix ("chk").
func ParseTxType(s string) (TxType, error) {
	if t := TxType(s); t.Valid() {
		return t, nil
	}
	for t, p := range txPrefixes {
		if p == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("transaction type %q: %w", s, ErrValidation)
}

const (
	idAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	digits       = "0123456789"
	randomLength = 12
	numberLength = 6
)

// idSource feeds every generated identifier. Tests swap it for a
// deterministic reader.
var idSource io.Reader = rand.Reader

// NewTransactionID returns "<prefix>-<12 random [a-z0-9]>" for t. Uniqueness
// is left to the store's key constraint.
func NewTransactionID(t TxType) (string, error) {
	p := t.Prefix()
	if p == "" {
		return "", fmt.Errorf("transaction id for %q: %w", t, ErrValidation)
	}
	return newID(p, idAlphabet, randomLength)
}

// NewAuditID returns an "aud-" identifier for an audit log entry.
func NewAuditID() (string, error) { return newID(auditPrefix, idAlphabet, randomLength) }

// NewUserID returns "<prefix>-<6 digits>" for kind.
func NewUserID(kind UserKind) (string, error) {
	p, ok := kindPrefixes[kind]
	if !ok {
		return "", fmt.Errorf("user id for kind %s: %w", kind, ErrAbstraction)
	}
	return newID(p, digits, numberLength)
}

// NewItemID returns "itm-<6 digits>".
func NewItemID() (string, error) { return newID("itm", digits, numberLength) }

func newID(prefix, alphabet string, n int) (string, error) {
	s, err := randomString(alphabet, n)
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", prefix, err)
	}
	return prefix + "-" + s, nil
}

// randomString draws n symbols uniformly from alphabet, rejecting bytes
// past the largest multiple of len(alphabet) to avoid modulo bias.
func randomString(alphabet string, n int) (string, error) {
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(idSource, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
