package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketStatuses lists the four accepted status literals. Every status is
// reachable from every other status.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is one of the four status literals.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// VoteDirection selects which counter a vote increments.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Valid reports whether d is up or down.
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	OwnerID     string
	CategoryID  string
	AssigneeID  *string
	Subject     string
	Description string
	Status      TicketStatus
	Upvotes     int
	Downvotes   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOwnedBy reports whether userID created the ticket.
func (t *Ticket) IsOwnedBy(userID string) bool {
	return t != nil && t.OwnerID == userID
}

// TicketSummary is a ticket joined with the data dashboards display.
type TicketSummary struct {
	Ticket
	CategoryName  string
	OwnerUsername string
	CommentCount  int
}

// NextUpdatedAt returns the timestamp a mutation stamps on a ticket last
// touched at prev. The result is strictly after prev.
func NextUpdatedAt(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}
