package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/quickdesk/internal/domain"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// Decision is the outcome of a policy check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

type rule func(user *domain.User, ticket *domain.Ticket) bool

func anyone(*domain.User, *domain.Ticket) bool { return true }

func staff(user *domain.User, _ *domain.Ticket) bool { return user.Role.IsStaff() }

func adminOnly(user *domain.User, _ *domain.Ticket) bool { return user.Role == domain.RoleAdmin }

func endUser(user *domain.User, _ *domain.Ticket) bool { return user.Role == domain.RoleEndUser }

func ownerOrStaff(user *domain.User, ticket *domain.Ticket) bool {
	return user.Role.IsStaff() || ticket.IsOwnedBy(user.ID)
}

// policy is the single capability table every action is checked against.
var policy = map[domain.Action]rule{
	domain.ActionCreateTicket:       anyone,
	domain.ActionViewTicket:         ownerOrStaff,
	domain.ActionCommentTicket:      ownerOrStaff,
	domain.ActionVoteTicket:         endUser,
	domain.ActionChangeStatus:       staff,
	domain.ActionAssignTicket:       staff,
	domain.ActionDeleteTicket:       adminOnly,
	domain.ActionViewAgentDashboard: staff,
	domain.ActionManageCategories:   adminOnly,
	domain.ActionManageUsers:        adminOnly,
}

// Authorize decides whether user may perform action, optionally against a
// ticket. Unknown actions and anonymous callers are denied.
func Authorize(user *domain.User, action domain.Action, ticket *domain.Ticket) Decision {
	if user == nil || !user.Role.Valid() {
		return Deny
	}
	allowed, ok := policy[action]
	if !ok {
		return Deny
	}
	return Decision(allowed(user, ticket))
}

// Check is Authorize returning an Unauthorized error on denial.
func Check(user *domain.User, action domain.Action, ticket *domain.Ticket) error {
	if Authorize(user, action, ticket) == Deny {
		return apperrors.NewUnauthorized("not permitted to " + string(action))
	}
	return nil
}

// PermittedActions lists the ticket actions user may perform on ticket.
func PermittedActions(user *domain.User, ticket *domain.Ticket) []domain.Action {
	actions := make([]domain.Action, 0, len(domain.TicketActions))
	for _, action := range domain.TicketActions {
		if Authorize(user, action, ticket) == Allow {
			actions = append(actions, action)
		}
	}
	return actions
}

// Require gates a route on an action that does not depend on a ticket.
func Require(action domain.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewAuthenticationFailed("authentication required")
		}
		if err := Check(principal.User, action, nil); err != nil {
			return err
		}
		return c.Next()
	}
}
