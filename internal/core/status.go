package core

// Status is the approval/payment state of an expense.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusValidated Status = "VALIDATED"
	StatusReviewed  Status = "REVIEWED"
	StatusApproved  Status = "APPROVED"
	StatusPartPay   Status = "PART-PAY"
	StatusPaid      Status = "PAID"

	// Declared by the upstream API but absent from the transition table;
	// AllowedNext treats them like any unknown value (empty set).
	StatusDeclined Status = "DECLINED"
	StatusOpen     Status = "OPEN"
)

// statusFlow is the single source of truth for legal forward transitions.
// PAID is terminal. Reset-to-draft is a separately guarded operation on the
// lifecycle service, not a transition through this table.
var statusFlow = map[Status][]Status{
	StatusDraft:     {StatusValidated},
	StatusValidated: {StatusReviewed},
	StatusReviewed:  {StatusApproved},
	StatusApproved:  {StatusPartPay, StatusPaid},
	StatusPartPay:   {StatusPaid},
	StatusPaid:      {},
}

// AllowedNext returns the statuses reachable from s in one step. It is total:
// terminal and unknown statuses yield the empty set, never an error.
func AllowedNext(s Status) []Status {
	next, ok := statusFlow[s]
	if !ok {
		return nil
	}
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether target is a legal one-step successor of from.
func CanTransition(from, target Status) bool {
	for _, s := range statusFlow[from] {
		if s == target {
			return true
		}
	}
	return false
}

// Known reports whether s is one of the declared status values, including the
// two that the transition table never reaches.
func (s Status) Known() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusReviewed, StatusApproved,
		StatusPartPay, StatusPaid, StatusDeclined, StatusOpen:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return len(statusFlow[s]) == 0
}

func (s Status) String() string {
	return string(s)
}
