package models

import (
	"database/sql/driver"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Role is the authorization level of a user
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// RequestType distinguishes borrow requests from return requests
type RequestType string

const (
	RequestBorrow RequestType = "borrow"
	RequestReturn RequestType = "return"
)

// RequestStatus is the lifecycle state of a book record
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusReturned RequestStatus = "returned"
)

// User represents a user in the system
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Identity is the authenticated caller, resolved once at the HTTP boundary
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Authors is an ordered author list stored as a JSON array column
type Authors []string

// Value implements driver.Valuer
func (a Authors) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Plain strings that are not JSON are kept as a single author.
func (a *Authors) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Authors{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("authors: unsupported column type")
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		*a = Authors{string(raw)}
		return nil
	}
	*a = list
	return nil
}

// Book is a cataloged title held by the library
type Book struct {
	ID              string    `db:"id" json:"id"`
	ExternalID      *string   `db:"external_id" json:"externalId,omitempty"`
	Title           string    `db:"title" json:"title"`
	Authors         Authors   `db:"authors" json:"authors"`
	Publisher       string    `db:"publisher" json:"publisher,omitempty"`
	PublishedDate   string    `db:"published_date" json:"publishedDate,omitempty"`
	Description     string    `db:"description" json:"description,omitempty"`
	Thumbnail       string    `db:"thumbnail" json:"thumbnail,omitempty"`
	TotalCopies     int       `db:"total_copies" json:"totalCopies"`
	AvailableCopies int       `db:"available_copies" json:"availableCopies"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Outstanding returns the number of copies committed to approved, unreturned borrows
func (b *Book) Outstanding() int {
	return b.TotalCopies - b.AvailableCopies
}

// BookRecord is one row of the request ledger
type BookRecord struct {
	ID               string        `db:"id" json:"id"`
	UserID           string        `db:"user_id" json:"userId"`
	BookID           string        `db:"book_id" json:"bookId"`
	RequestType      RequestType   `db:"request_type" json:"requestType"`
	Status           RequestStatus `db:"status" json:"status"`
	RequestDate      time.Time     `db:"request_date" json:"requestDate"`
	IssueDate        *time.Time    `db:"issue_date" json:"issueDate,omitempty"`
	ReturnDueDate    *time.Time    `db:"return_due_date" json:"returnDueDate,omitempty"`
	ReturnDate       *time.Time    `db:"return_date" json:"returnDate,omitempty"`
	OriginalRecordID *string       `db:"original_record_id" json:"originalRecordId,omitempty"`
	ApprovedAt       *time.Time    `db:"approved_at" json:"approvedAt,omitempty"`
	DecidedBy        *string       `db:"decided_by" json:"decidedBy,omitempty"`
}

// RecordView is a ledger row joined with display fields for reporting
type RecordView struct {
	BookRecord
	BookTitle             string     `db:"book_title" json:"bookTitle"`
	Authors               Authors    `db:"authors" json:"authors"`
	Thumbnail             string     `db:"thumbnail" json:"thumbnail,omitempty"`
	ExternalID            *string    `db:"external_id" json:"externalId,omitempty"`
	UserName              string     `db:"user_name" json:"userName"`
	OriginalIssueDate     *time.Time `db:"original_issue_date" json:"originalIssueDate,omitempty"`
	OriginalReturnDueDate *time.Time `db:"original_return_due_date" json:"originalReturnDueDate,omitempty"`
	StatusLabel           string     `db:"-" json:"statusLabel"`
	RowState              string     `db:"-" json:"rowState"`
}

// RecordFilter narrows the administrative ledger listing. Zero values mean "any".
type RecordFilter struct {
	Status      RequestStatus
	RequestType RequestType
	UserID      string
	BookID      string
	Limit       int
	Offset      int
}
