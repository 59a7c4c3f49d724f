package models

import "slices"

// Record statuses shared by dropoffs and transactions.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusRejected   = "REJECTED"
	StatusCancelled  = "CANCELLED"
)

// Waste type availability, derived from the upstream isActive flag.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// StatusSet is the closed set of statuses a resource may take.
// An empty set means the resource has no status lifecycle.
type StatusSet []string

// DropoffStatuses includes CANCELLED: dropoffs can be cancelled by their
// owner through a dedicated upstream endpoint.
var DropoffStatuses = StatusSet{StatusPending, StatusProcessing, StatusCompleted, StatusRejected, StatusCancelled}

var TransactionStatuses = StatusSet{StatusPending, StatusProcessing, StatusCompleted, StatusRejected}

var WasteTypeStatuses = StatusSet{StatusActive, StatusInactive}

// Contains reports whether v is a member of the set.
func (s StatusSet) Contains(v string) bool {
	return slices.Contains(s, v)
}

// Empty reports whether the resource has no status lifecycle.
func (s StatusSet) Empty() bool {
	return len(s) == 0
}
