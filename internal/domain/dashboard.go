package domain

// FilterAll is the "no filter" sentinel for every dashboard parameter.
const FilterAll = "all"

// DashboardSort orders dashboard results.
type DashboardSort string

const (
	SortRecentlyModified DashboardSort = "recently_modified"
	SortMostReplied      DashboardSort = "most_replied"
)

// Valid reports whether s is a known sort order.
func (s DashboardSort) Valid() bool {
	return s == SortRecentlyModified || s == SortMostReplied
}

// AssignedFilter narrows staff dashboards by assignment.
type AssignedFilter string

const (
	AssignedAll        AssignedFilter = "all"
	AssignedMine       AssignedFilter = "mine"
	AssignedUnassigned AssignedFilter = "unassigned"
)

// Valid reports whether f is a known assignment filter.
func (f AssignedFilter) Valid() bool {
	return f == AssignedAll || f == AssignedMine || f == AssignedUnassigned
}

// DashboardQuery carries the caller supplied dashboard parameters. Empty
// fields behave like FilterAll, an empty Sort like SortRecentlyModified.
type DashboardQuery struct {
	Status   string
	Category string
	Sort     DashboardSort
	Assigned AssignedFilter
}

// TicketView is a dashboard row annotated with what the caller may do.
type TicketView struct {
	TicketSummary
	Actions []Action
}
