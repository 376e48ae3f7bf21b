package library

import (
	"fmt"
	"strings"
)

// Collection names a table, its key column and the columns callers may
// change through UpdateEntity or, for items, UpdateItem.
type Collection struct {
	Table     string
	Key       string
	Updatable []string
}

var userFields = []string{"first_name", "last_name", "email", "is_active"}

var (
	Clients    = Collection{Table: "clients", Key: "client_id", Updatable: userFields}
	Librarians = Collection{Table: "librarians", Key: "librarian_id", Updatable: userFields}
	Items      = Collection{
		Table: "library_items",
		Key:   "item_id",
		Updatable: []string{
			"title", "creator", "isbn", "genre", "format",
			"max_checkout_days", "status", "image_url",
		},
	}
)

// Route is where a user identifier lives.
type Route struct {
	Kind UserKind
	Collection
}

var routes = map[string]Route{
	"cli":   {Kind: KindClient, Collection: Clients},
	"libra": {Kind: KindLibrarian, Collection: Librarians},
	"admin": {Kind: KindAdmin, Collection: Librarians}, // admins are librarians
}

var kindPrefixes = map[UserKind]string{
	KindClient:    "cli",
	KindLibrarian: "libra",
	KindAdmin:     "admin",
}

// Resolve maps a user identifier such as "cli-000123" to its table and key
// column by the text before the first hyphen.
func Resolve(id string) (Route, error) {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return Route{}, fmt.Errorf("resolve %q: %w", id, ErrRouting)
	}
	r, ok := routes[prefix]
	if !ok {
		return Route{}, fmt.Errorf("resolve %q: %w", id, ErrRouting)
	}
	return r, nil
}
