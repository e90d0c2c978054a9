// Package labels derives display text for ledger rows. It is the single
// source for status wording; handlers attach the result to listings.
package labels

import "github.com/rongwang/library-server/internal/models"

// Row states used by clients to style ledger rows
const (
	StateActive   = "active"
	StateClosed   = "closed"
	StatePending  = "pending"
	StateRejected = "rejected"
)

// Display is the presentation of one (request type, status) pair
type Display struct {
	Label string
	State string
}

type key struct {
	requestType models.RequestType
	status      models.RequestStatus
}

var table = map[key]Display{
	{models.RequestBorrow, models.StatusPending}:  {"Borrow Request Pending", StatePending},
	{models.RequestBorrow, models.StatusApproved}: {"Borrowed", StateActive},
	{models.RequestBorrow, models.StatusRejected}: {"Borrow Request Rejected", StateRejected},
	{models.RequestBorrow, models.StatusReturned}: {"Returned", StateClosed},
	{models.RequestReturn, models.StatusPending}:  {"Return Request Pending", StatePending},
	{models.RequestReturn, models.StatusApproved}: {"Returned", StateClosed},
	{models.RequestReturn, models.StatusRejected}: {"Return Request Rejected", StateRejected},
	{models.RequestReturn, models.StatusReturned}: {"Returned", StateClosed},
}

// Describe returns the display for a pair. Unknown pairs fall back to the raw status.
func Describe(requestType models.RequestType, status models.RequestStatus) Display {
	if d, ok := table[key{requestType, status}]; ok {
		return d
	}
	return Display{Label: string(status)}
}

// Apply fills the label fields of every view in place
func Apply(views []models.RecordView) {
	for i := range views {
		d := Describe(views[i].RequestType, views[i].Status)
		views[i].StatusLabel = d.Label
		views[i].RowState = d.State
	}
}
