package service

import (
	"context"
	"errors"
	"iter"

	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// DashboardService answers filtered, sorted ticket listings.
type DashboardService struct {
	tickets     repository.TicketRepository
	tx          repository.TxManager
	logger      *zap.Logger
	pageSize    int
	maxPageSize int
}

// DashboardDependencies bundles collaborators.
type DashboardDependencies struct {
	TicketRepo  repository.TicketRepository
	TxManager   repository.TxManager
	Logger      *zap.Logger
	PageSize    int
	MaxPageSize int
}

// DashboardPage is one window of a dashboard listing.
type DashboardPage struct {
	Items    []domain.TicketView
	Page     int
	PageSize int
	HasMore  bool
}

// NewDashboardService constructs the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	maxPageSize := deps.MaxPageSize
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	return &DashboardService{
		tickets:     deps.TicketRepo,
		tx:          deps.TxManager,
		logger:      orNop(deps.Logger),
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
	}
}

// errStopIteration ends a snapshot read when the consumer stops ranging.
var errStopIteration = errors.New("iteration stopped")

// Tickets returns every ticket visible to actor that matches q. The
// sequence fetches lazily one page at a time and restarts from the first
// page on every range. All pages of one range come from a single read
// snapshot, so writes made while ranging neither repeat nor skip rows. A
// storage failure is yielded once and ends it.
func (s *DashboardService) Tickets(ctx context.Context, actor *domain.User, q domain.DashboardQuery) (iter.Seq2[domain.TicketView, error], error) {
	filter, err := s.resolveFilter(actor, q)
	if err != nil {
		return nil, err
	}

	return func(yield func(domain.TicketView, error) bool) {
		err := s.withinSnapshot(ctx, func(ctx context.Context) error {
			for offset := 0; ; offset += s.pageSize {
				f := filter
				f.Limit, f.Offset = s.pageSize, offset
				rows, err := s.tickets.ListWithFilter(ctx, f)
				if err != nil {
					return err
				}
				for _, row := range rows {
					if !yield(viewOf(actor, row), nil) {
						return errStopIteration
					}
				}
				if len(rows) < s.pageSize {
					return nil
				}
			}
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(domain.TicketView{}, apperrors.MapError(err))
		}
	}, nil
}

func (s *DashboardService) withinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinReadSnapshot(ctx, fn)
}

// Page returns the 1-based page of results. pageSize is clamped to the
// configured maximum; zero selects the default.
func (s *DashboardService) Page(ctx context.Context, actor *domain.User, q domain.DashboardQuery, page, pageSize int) (*DashboardPage, error) {
	filter, err := s.resolveFilter(actor, q)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	filter.Limit = pageSize + 1
	filter.Offset = (page - 1) * pageSize
	rows, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := &DashboardPage{Page: page, PageSize: pageSize, Items: []domain.TicketView{}}
	if len(rows) > pageSize {
		result.HasMore = true
		rows = rows[:pageSize]
	}
	for _, row := range rows {
		result.Items = append(result.Items, viewOf(actor, row))
	}
	return result, nil
}

// resolveFilter validates q and scopes it to what actor may see.
func (s *DashboardService) resolveFilter(actor *domain.User, q domain.DashboardQuery) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if err := requireActor(actor); err != nil {
		return filter, err
	}

	if q.Status != "" && q.Status != domain.FilterAll {
		status := domain.TicketStatus(q.Status)
		if !status.Valid() {
			return filter, apperrors.NewInvalidStatus(q.Status)
		}
		filter.Status = &status
	}
	if q.Category != "" && q.Category != domain.FilterAll {
		category := q.Category
		filter.CategoryName = &category
	}

	filter.Sort = q.Sort
	if filter.Sort == "" {
		filter.Sort = domain.SortRecentlyModified
	}
	if !filter.Sort.Valid() {
		return filter, apperrors.NewValidationError("invalid sort", map[string]any{
			"sort":    q.Sort,
			"allowed": []domain.DashboardSort{domain.SortRecentlyModified, domain.SortMostReplied},
		})
	}

	if auth.Authorize(actor, domain.ActionViewAgentDashboard, nil) == auth.Deny {
		ownerID := actor.ID
		filter.OwnerID = &ownerID
		return filter, nil
	}

	switch q.Assigned {
	case "", domain.AssignedAll:
	case domain.AssignedMine:
		assigneeID := actor.ID
		filter.AssigneeID = &assigneeID
	case domain.AssignedUnassigned:
		filter.Unassigned = true
	default:
		return filter, apperrors.NewValidationError("invalid assigned filter", map[string]any{
			"assigned": q.Assigned,
			"allowed":  []domain.AssignedFilter{domain.AssignedAll, domain.AssignedMine, domain.AssignedUnassigned},
		})
	}
	return filter, nil
}

func viewOf(actor *domain.User, summary domain.TicketSummary) domain.TicketView {
	return domain.TicketView{
		TicketSummary: summary,
		Actions:       auth.PermittedActions(actor, &summary.Ticket),
	}
}
