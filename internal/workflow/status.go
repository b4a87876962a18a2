// Package workflow holds the status machine shared by forms and requests:
// permission evaluation, transition validation and the controller that runs
// side effects once a change is committed.
package workflow

// Status is the lifecycle state of a form or request.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusSubmitted Status = "SUBMITTED"
	StatusReturned  Status = "RETURNED"
	StatusRejected  Status = "REJECTED"
	StatusApproved  Status = "APPROVED"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusSubmitted, StatusReturned, StatusRejected, StatusApproved:
		return true
	}
	return false
}

// HistoryType is the kind of an audit trail record.
type HistoryType string

const (
	HistoryCreated       HistoryType = "CREATED"
	HistoryUpdated       HistoryType = "UPDATED"
	HistoryRejected      HistoryType = "REJECTED"
	HistoryReturned      HistoryType = "RETURNED"
	HistoryApproved      HistoryType = "APPROVED"
	HistoryFileGenerated HistoryType = "FILE_GENERATED"
)

var historyTypesByStatus = map[Status]HistoryType{
	StatusSubmitted: HistoryUpdated,
	StatusRejected:  HistoryRejected,
	StatusReturned:  HistoryReturned,
	StatusApproved:  HistoryApproved,
}

// HistoryTypeFor maps the status an entity moved to onto the record type written for it.
// CREATED has no mapping since creation is recorded separately.
func HistoryTypeFor(s Status) (HistoryType, bool) {
	t, ok := historyTypesByStatus[s]
	return t, ok
}

// AutoApproveComment is attached to the APPROVED record of a request created by an admin.
const AutoApproveComment = "Automatiškai patvirtintas prašymas."
