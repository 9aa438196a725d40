package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/quickdesk/internal/domain"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

func testUsers() (owner, stranger, agent, admin *domain.User) {
	owner = &domain.User{ID: "owner", Role: domain.RoleEndUser}
	stranger = &domain.User{ID: "stranger", Role: domain.RoleEndUser}
	agent = &domain.User{ID: "agent", Role: domain.RoleSupportAgent}
	admin = &domain.User{ID: "admin", Role: domain.RoleAdmin}
	return
}

func TestAuthorize_Table(t *testing.T) {
	owner, stranger, agent, admin := testUsers()
	ticket := &domain.Ticket{ID: "t1", OwnerID: owner.ID}

	tests := []struct {
		action domain.Action
		user   *domain.User
		want   Decision
	}{
		{domain.ActionCreateTicket, owner, Allow},
		{domain.ActionCreateTicket, agent, Allow},
		{domain.ActionCreateTicket, admin, Allow},

		{domain.ActionViewTicket, owner, Allow},
		{domain.ActionViewTicket, stranger, Deny},
		{domain.ActionViewTicket, agent, Allow},
		{domain.ActionViewTicket, admin, Allow},

		{domain.ActionCommentTicket, owner, Allow},
		{domain.ActionCommentTicket, stranger, Deny},
		{domain.ActionCommentTicket, agent, Allow},
		{domain.ActionCommentTicket, admin, Allow},

		{domain.ActionVoteTicket, owner, Allow},
		{domain.ActionVoteTicket, stranger, Allow},
		{domain.ActionVoteTicket, agent, Deny},
		{domain.ActionVoteTicket, admin, Deny},

		{domain.ActionChangeStatus, owner, Deny},
		{domain.ActionChangeStatus, agent, Allow},
		{domain.ActionChangeStatus, admin, Allow},

		{domain.ActionAssignTicket, owner, Deny},
		{domain.ActionAssignTicket, agent, Allow},
		{domain.ActionAssignTicket, admin, Allow},

		{domain.ActionDeleteTicket, owner, Deny},
		{domain.ActionDeleteTicket, agent, Deny},
		{domain.ActionDeleteTicket, admin, Allow},

		{domain.ActionViewAgentDashboard, owner, Deny},
		{domain.ActionViewAgentDashboard, agent, Allow},
		{domain.ActionViewAgentDashboard, admin, Allow},

		{domain.ActionManageCategories, agent, Deny},
		{domain.ActionManageCategories, admin, Allow},
		{domain.ActionManageUsers, agent, Deny},
		{domain.ActionManageUsers, admin, Allow},
	}

	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+tt.user.ID, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.user, tt.action, ticket))
		})
	}
}

func TestAuthorize_DeniesUnknownCallers(t *testing.T) {
	ticket := &domain.Ticket{OwnerID: "x"}

	assert.Equal(t, Deny, Authorize(nil, domain.ActionCreateTicket, ticket))
	assert.Equal(t, Deny, Authorize(&domain.User{ID: "x", Role: "guest"}, domain.ActionViewTicket, ticket))
	assert.Equal(t, Deny, Authorize(&domain.User{ID: "x", Role: domain.RoleAdmin}, "launch_rockets", ticket))
}

func TestAuthorize_NilTicketDeniesOwnerRules(t *testing.T) {
	owner, _, agent, _ := testUsers()

	assert.Equal(t, Deny, Authorize(owner, domain.ActionViewTicket, nil))
	assert.Equal(t, Allow, Authorize(agent, domain.ActionViewTicket, nil))
}

func TestCheck_ReturnsUnauthorized(t *testing.T) {
	_, stranger, _, admin := testUsers()

	err := Check(stranger, domain.ActionManageUsers, nil)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
	assert.NoError(t, Check(admin, domain.ActionManageUsers, nil))
}

func TestPermittedActions(t *testing.T) {
	owner, stranger, agent, admin := testUsers()
	ticket := &domain.Ticket{ID: "t1", OwnerID: owner.ID}

	assert.Equal(t, []domain.Action{
		domain.ActionViewTicket,
		domain.ActionCommentTicket,
		domain.ActionVoteTicket,
	}, PermittedActions(owner, ticket))

	assert.Equal(t, []domain.Action{domain.ActionVoteTicket}, PermittedActions(stranger, ticket))

	assert.Equal(t, []domain.Action{
		domain.ActionViewTicket,
		domain.ActionCommentTicket,
		domain.ActionChangeStatus,
		domain.ActionAssignTicket,
	}, PermittedActions(agent, ticket))

	assert.Equal(t, []domain.Action{
		domain.ActionViewTicket,
		domain.ActionCommentTicket,
		domain.ActionChangeStatus,
		domain.ActionAssignTicket,
		domain.ActionDeleteTicket,
	}, PermittedActions(admin, ticket))
}
