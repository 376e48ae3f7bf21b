package library

import "time"

// UserKind tags the variant of a User. The zero value is the abstract kind
// and cannot be stored.
type UserKind int

const (
	KindUnknown UserKind = iota
	KindClient
	KindLibrarian
	KindAdmin
)

func (k UserKind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindLibrarian:
		return "librarian"
	case KindAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Staff reports whether the kind may curate the catalog.
func (k UserKind) Staff() bool { return k == KindLibrarian || k == KindAdmin }

// ParseUserKind maps a CLI/user-facing name to a kind.
func ParseUserKind(s string) (UserKind, bool) {
	switch s {
	case "client":
		return KindClient, true
	case "librarian":
		return KindLibrarian, true
	case "admin":
		return KindAdmin, true
	}
	return KindUnknown, false
}

// User is a client, librarian or admin. Which table backs it is decided by
// the prefix of ID, see Resolve.
type User struct {
	ID           string    `json:"id"`
	Kind         UserKind  `json:"kind"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Don't serialize password hash
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser carries sign-up data. PasswordHash must already be hashed.
type NewUser struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}

// Item lifecycle states curated by librarians. Whether an item is checked
// out or held is derived from the ledger, not from Status.
const (
	StatusAvailable = "available"
	StatusOverdue   = "overdue"
)

// Item is one catalog unit.
type Item struct {
	ID              string    `json:"item_id"`
	Title           string    `json:"title"`
	Creator         string    `json:"creator,omitempty"`
	ISBN            string    `json:"isbn,omitempty"`
	Genre           string    `json:"genre,omitempty"`
	Format          string    `json:"format"`
	MaxCheckoutDays int       `json:"max_checkout_days"`
	Status          string    `json:"status"`
	ImageURL        string    `json:"image_url,omitempty"`
	LastUpdatedBy   string    `json:"last_updated_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewItem is the input of AddItem. Zero values take the catalog defaults;
// an empty ID is generated.
type NewItem struct {
	ID              string `yaml:"item_id"`
	Title           string `yaml:"title"`
	Creator         string `yaml:"creator"`
	ISBN            string `yaml:"isbn"`
	Genre           string `yaml:"genre"`
	Format          string `yaml:"format"`
	MaxCheckoutDays int    `yaml:"max_checkout_days"`
	Status          string `yaml:"status"`
	ImageURL        string `yaml:"image_url"`
}

// ItemFilter narrows SearchItems. Blank fields are ignored.
type ItemFilter struct {
	Title   string
	Genre   string
	Creator string
}

// DeletedItem reports what DeleteItem removed.
type DeletedItem struct {
	ItemID string `json:"deleted_item_id"`
	Title  string `json:"item_title"`
}

// LedgerEntry is one immutable user–item event. Seq is the store's logical
// clock and the only ordering key.
type LedgerEntry struct {
	Seq           int64     `json:"seq"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	ItemID        string    `json:"item_id"`
	Type          TxType    `json:"transaction_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuditEntry records an administrative action the ledger cannot express.
type AuditEntry struct {
	Seq         int64     `json:"seq"`
	AuditID     string    `json:"audit_id"`
	ItemID      string    `json:"item_id"`
	LibrarianID string    `json:"librarian_id"`
	Type        TxType    `json:"transaction_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
