package service

// Error is a domain failure with a stable machine-readable code.
// Compare with errors.Is against the sentinels below; detail may be wrapped
// around them with fmt.Errorf("%w: ...").
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Lending lifecycle failures
var (
	ErrNotFound           = &Error{Code: "NOT_FOUND", Message: "not found"}
	ErrAlreadyProcessed   = &Error{Code: "ALREADY_PROCESSED", Message: "request already processed"}
	ErrInvalidAction      = &Error{Code: "INVALID_ACTION", Message: "invalid action specified"}
	ErrNoCopiesAvailable  = &Error{Code: "NO_COPIES_AVAILABLE", Message: "no copies available to borrow"}
	ErrBorrowLimitReached = &Error{Code: "BORROW_LIMIT_REACHED", Message: "borrow limit reached"}
	ErrDuplicateRequest   = &Error{Code: "DUPLICATE_REQUEST", Message: "a matching request is already open"}
	ErrNoActiveBorrow     = &Error{Code: "NO_ACTIVE_BORROW", Message: "no active borrow found to return"}
)

// Authentication gate failures
var (
	ErrUnauthorized       = &Error{Code: "UNAUTHORIZED", Message: "authentication required"}
	ErrForbidden          = &Error{Code: "FORBIDDEN", Message: "access denied"}
	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrEmailTaken         = &Error{Code: "EMAIL_TAKEN", Message: "user with this email already exists"}
)

// Inventory and input failures
var (
	ErrBookExists   = &Error{Code: "BOOK_EXISTS", Message: "book is already in the library"}
	ErrBookInUse    = &Error{Code: "BOOK_IN_USE", Message: "book has lending history"}
	ErrInvalidInput = &Error{Code: "INVALID_INPUT", Message: "invalid input"}
)
