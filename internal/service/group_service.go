package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/domain"
	"github.com/spec-kit/modmail-service/internal/events"
	"github.com/spec-kit/modmail-service/internal/platform"
	"github.com/spec-kit/modmail-service/internal/registry"
	"github.com/spec-kit/modmail-service/internal/repository"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// BulkActionKind selects what a broadcast does to each member ticket.
type BulkActionKind string

const (
	BulkActionReply BulkActionKind = "reply"
	BulkActionClose BulkActionKind = "close"
)

// BulkAction describes the operation applied to every member of a tag.
// Anonymous replies are delivered without operator attribution.
type BulkAction struct {
	Kind      BulkActionKind
	StaffName string
	Body      string
	Reason    string
	Anonymous bool
}

// BulkResult reports the outcome for one member of a bulk operation.
type BulkResult struct {
	TicketID  string `json:"ticket_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Succeeded bool   `json:"succeeded"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GroupService coordinates group tags: transient labels grouping open tickets
// for bulk reply and close. The member map has its own mutex; it is never
// held across platform or store I/O. The group_tags table is a write-through
// copy for restart durability.
type GroupService struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
	created map[string]time.Time

	repo       repository.GroupTagRepository
	registry   *registry.Registry
	threads    platform.ThreadService
	tickets    *TicketService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// GroupDependencies bundles collaborators for the group service.
type GroupDependencies struct {
	GroupTagRepo repository.GroupTagRepository
	Registry     *registry.Registry
	Threads      platform.ThreadService
	Tickets      *TicketService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewGroupService constructs the service and subscribes it to ticket-closed
// events so closed tickets are detached from every tag they belong to.
func NewGroupService(deps GroupDependencies) *GroupService {
	s := &GroupService{
		members:    make(map[string]map[string]struct{}),
		created:    make(map[string]time.Time),
		repo:       deps.GroupTagRepo,
		registry:   deps.Registry,
		threads:    deps.Threads,
		tickets:    deps.Tickets,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
	deps.Dispatcher.Subscribe(events.EventTicketClosed, func(ctx context.Context, event events.Event) error {
		return s.DetachAll(ctx, event.TicketID)
	})
	return s
}

// Restore loads persisted tag memberships, dropping members whose tickets did
// not survive the restart. Tags left empty by the pruning are deleted.
func (s *GroupService) Restore(ctx context.Context) error {
	stored, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	var stale []string
	s.mu.Lock()
	for tag, ticketIDs := range stored {
		set := make(map[string]struct{})
		for _, id := range ticketIDs {
			if _, ok := s.registry.Get(id); ok {
				set[id] = struct{}{}
			}
		}
		if len(set) == 0 {
			stale = append(stale, tag)
			continue
		}
		s.members[tag] = set
		s.created[tag] = time.Now().UTC()
	}
	s.mu.Unlock()

	for _, tag := range stale {
		s.dropTagEffects(ctx, tag)
	}
	return nil
}

// EnsureTag creates the tag if it does not exist. Creating an existing tag is
// a no-op.
func (s *GroupService) EnsureTag(ctx context.Context, name string) error {
	if name == "" {
		return util.NewValidationError("tag name is required", nil)
	}
	s.mu.Lock()
	if _, ok := s.members[name]; !ok {
		s.members[name] = make(map[string]struct{})
		s.created[name] = time.Now().UTC()
	}
	s.mu.Unlock()

	if err := s.threads.EnsureLabel(ctx, name); err != nil {
		s.logger.Warn("label ensure failed", zap.String("tag", name), zap.Error(err))
	}
	return nil
}

// AddMember attaches an open ticket to a tag, creating the tag on first use.
// Get-or-create and the member insert happen under one lock acquisition, so a
// concurrent detach emptying the tag can never leave this write a nil map.
func (s *GroupService) AddMember(ctx context.Context, tagName, ticketID string) error {
	if tagName == "" {
		return util.NewValidationError("tag name is required", nil)
	}
	ticket, ok := s.registry.Get(ticketID)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	s.mu.Lock()
	set, ok := s.members[tagName]
	if !ok {
		set = make(map[string]struct{})
		s.members[tagName] = set
		s.created[tagName] = time.Now().UTC()
	}
	set[ticketID] = struct{}{}
	s.mu.Unlock()
	ticket.AddTag(tagName)

	if err := s.threads.EnsureLabel(ctx, tagName); err != nil {
		s.logger.Warn("label ensure failed", zap.String("tag", tagName), zap.Error(err))
	}

	if err := s.repo.AddMember(ctx, tagName, ticketID); err != nil {
		return err
	}
	if err := s.threads.ApplyLabel(ctx, platform.ThreadRef{ThreadID: ticket.ThreadID()}, tagName); err != nil {
		s.logger.Warn("label apply failed", zap.String("tag", tagName), zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return nil
}

// RemoveMember detaches a ticket from a tag. Emptying the member set deletes
// the tag in the same locked step, so an empty tag is never observable.
// Unknown tags and non-members are a no-op; close notifications may race
// with manual tag edits.
func (s *GroupService) RemoveMember(ctx context.Context, tagName, ticketID string) error {
	s.mu.Lock()
	set, ok := s.members[tagName]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(set, ticketID)
	emptied := len(set) == 0
	if emptied {
		delete(s.members, tagName)
		delete(s.created, tagName)
	}
	s.mu.Unlock()

	if ticket, ok := s.registry.Get(ticketID); ok {
		ticket.RemoveTag(tagName)
	}
	if err := s.repo.RemoveMember(ctx, tagName, ticketID); err != nil {
		return err
	}
	if emptied {
		s.dropTagEffects(ctx, tagName)
	}
	return nil
}

// DetachAll removes a ticket from every tag it belongs to. It is idempotent;
// tags emptied by the removal are deleted.
func (s *GroupService) DetachAll(ctx context.Context, ticketID string) error {
	var emptied []string
	s.mu.Lock()
	for tag, set := range s.members {
		if _, ok := set[ticketID]; !ok {
			continue
		}
		delete(set, ticketID)
		if len(set) == 0 {
			delete(s.members, tag)
			delete(s.created, tag)
			emptied = append(emptied, tag)
		}
	}
	s.mu.Unlock()

	if err := s.repo.RemoveTicket(ctx, ticketID); err != nil {
		return err
	}
	for _, tag := range emptied {
		s.dropTagEffects(ctx, tag)
	}
	return nil
}

// Tags returns every live tag with its member tickets, sorted by name.
func (s *GroupService) Tags() []domain.GroupTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.GroupTag, 0, len(s.members))
	for name, set := range s.members {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, domain.GroupTag{Name: name, MemberIDs: ids, CreatedAt: s.created[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// snapshot copies the member list for a tag, failing with NO_SUCH_TAG when
// the tag does not exist. Members added or removed afterwards do not affect
// an in-flight bulk operation.
func (s *GroupService) snapshot(tagName string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[tagName]
	if !ok {
		return nil, util.NewNoSuchTag(tagName)
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Broadcast applies an action to every member of a tag, from a snapshot taken
// at call time. Per-member failures are reported in the results; only an
// unknown tag fails the call itself.
func (s *GroupService) Broadcast(ctx context.Context, tagName string, action BulkAction) ([]BulkResult, error) {
	ids, err := s.snapshot(tagName)
	if err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(ids))
	delivered, failed := 0, 0
	for _, ticketID := range ids {
		var userID string
		if ticket, ok := s.registry.Get(ticketID); ok {
			userID = ticket.UserID()
		}
		var actionErr error
		switch {
		case action.Kind == BulkActionClose:
			actionErr = s.tickets.CloseTicket(ctx, ticketID, domain.AuthorRoleStaff, action.Reason)
		case action.Anonymous:
			actionErr = s.tickets.RelayStaffReplyAnonymous(ctx, ticketID, action.StaffName, action.Body)
		default:
			actionErr = s.tickets.RelayStaffReply(ctx, ticketID, action.StaffName, action.Body)
		}
		if actionErr != nil {
			failed++
			results = append(results, BulkResult{
				TicketID:  ticketID,
				UserID:    userID,
				ErrorCode: util.Code(actionErr),
				Error:     actionErr.Error(),
			})
			continue
		}
		delivered++
		results = append(results, BulkResult{TicketID: ticketID, UserID: userID, Succeeded: true})
	}

	s.publishBroadcast(ctx, tagName, delivered, failed)
	return results, nil
}

// SendMany opens a ticket for each listed user, delivers the message, and
// attaches the new tickets to the tag. A user who already has an open ticket
// is reported as a per-user ALREADY_OPEN failure and skipped.
func (s *GroupService) SendMany(ctx context.Context, tagName, staffName string, userIDs []string, body string) ([]BulkResult, error) {
	if err := s.EnsureTag(ctx, tagName); err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(userIDs))
	delivered, failed := 0, 0
	for _, userID := range userIDs {
		ticket, err := s.tickets.SendMessage(ctx, userID, "", staffName, body)
		if err != nil {
			failed++
			result := BulkResult{UserID: userID, ErrorCode: util.Code(err), Error: err.Error()}
			if ticket != nil {
				result.TicketID = ticket.ID()
			}
			results = append(results, result)
			continue
		}
		if err := s.AddMember(ctx, tagName, ticket.ID()); err != nil {
			s.logger.Warn("tag attach failed", zap.String("tag", tagName), zap.String("ticket_id", ticket.ID()), zap.Error(err))
		}
		delivered++
		results = append(results, BulkResult{TicketID: ticket.ID(), UserID: userID, Succeeded: true})
	}

	// A sendmany that opened nothing leaves no tag behind.
	s.mu.Lock()
	set, ok := s.members[tagName]
	emptied := ok && len(set) == 0
	if emptied {
		delete(s.members, tagName)
		delete(s.created, tagName)
	}
	s.mu.Unlock()
	if emptied {
		s.dropTagEffects(ctx, tagName)
	}

	s.publishBroadcast(ctx, tagName, delivered, failed)
	return results, nil
}

// dropTagEffects clears the durable row and the platform label for a tag that
// has already left the in-memory map. Both are idempotent.
func (s *GroupService) dropTagEffects(ctx context.Context, tagName string) {
	if err := s.repo.RemoveTag(ctx, tagName); err != nil {
		s.logger.Warn("tag row delete failed", zap.String("tag", tagName), zap.Error(err))
	}
	if err := s.threads.DeleteLabel(ctx, tagName); err != nil {
		s.logger.Warn("label delete failed", zap.String("tag", tagName), zap.Error(err))
	}
}

func (s *GroupService) publishBroadcast(ctx context.Context, tagName string, delivered, failed int) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventBroadcastCompleted,
		Timestamp: time.Now().UTC(),
		Payload: events.BroadcastCompletedPayload{
			TagName:   tagName,
			Delivered: delivered,
			Failed:    failed,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
