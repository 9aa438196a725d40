package domain

import "time"

// Category is a uniquely named classification tag for tickets.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// DefaultCategories are seeded into an empty registry on first start.
var DefaultCategories = []string{
	"Technical Issue",
	"Billing Query",
	"Feature Request",
	"General Support",
}
