package domain

import "time"

// Comment is an immutable reply in a ticket's conversation.
type Comment struct {
	ID             string
	TicketID       string
	AuthorID       string
	AuthorUsername string
	AuthorRole     Role
	Body           string
	CreatedAt      time.Time
}
