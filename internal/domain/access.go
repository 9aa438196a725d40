package domain

// Action names an operation gated by the access policy.
type Action string

const (
	ActionCreateTicket       Action = "create_ticket"
	ActionViewTicket         Action = "view_ticket"
	ActionCommentTicket      Action = "comment_ticket"
	ActionVoteTicket         Action = "vote_ticket"
	ActionChangeStatus       Action = "change_status"
	ActionAssignTicket       Action = "assign_ticket"
	ActionDeleteTicket       Action = "delete_ticket"
	ActionViewAgentDashboard Action = "view_agent_dashboard"
	ActionManageCategories   Action = "manage_categories"
	ActionManageUsers        Action = "manage_users"
)

// TicketActions are the actions evaluated against a specific ticket.
var TicketActions = []Action{
	ActionViewTicket,
	ActionCommentTicket,
	ActionVoteTicket,
	ActionChangeStatus,
	ActionAssignTicket,
	ActionDeleteTicket,
}
