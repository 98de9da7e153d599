// Package lifecycle defines the four contract states shared by the contract
// and occupancy packages.
package lifecycle

import "strings"

type Status string

const (
	Draft    Status = "draft"
	Active   Status = "active"
	Ended    Status = "ended"
	Archived Status = "archived"
)

var all = []Status{Draft, Active, Ended, Archived}

func (s Status) Valid() bool {
	switch s {
	case Draft, Active, Ended, Archived:
		return true
	default:
		return false
	}
}

// Closed reports whether the status ends an occupancy.
func (s Status) Closed() bool {
	return s == Ended || s == Archived
}

// HoldsMeter reports whether a contract in this status occupies its meter.
func (s Status) HoldsMeter() bool {
	return s == Active
}

// ClosedStatuses lists the statuses for which Closed is true.
func ClosedStatuses() []Status {
	out := make([]Status, 0, len(all))
	for _, s := range all {
		if s.Closed() {
			out = append(out, s)
		}
	}
	return out
}

func (s Status) String() string { return string(s) }

// Parse normalizes a status name. ok is false for unknown values.
func Parse(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	return s, s.Valid()
}
