package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// OpenTicket is the live state of one open ticket. Its mutex guards status,
// the accumulated message log, and the tag set; it is never held across I/O.
type OpenTicket struct {
	mu      sync.Mutex
	ticket       domain.Ticket
	entries      []domain.TranscriptEntry
	tags         map[string]struct{}
	userLanguage string

	// close bookkeeping, so a retried close skips completed sub-steps
	pending      *domain.TranscriptRecord
	summaryTried bool
	persisted    bool
}

// ID returns the stable ticket identifier.
func (t *OpenTicket) ID() string {
	return t.ticket.ID
}

// UserID returns the owning user.
func (t *OpenTicket) UserID() string {
	return t.ticket.UserID
}

// Anonymous reports whether the ticket hides the user's name from staff.
func (t *OpenTicket) Anonymous() bool {
	return t.ticket.Anonymous
}

// ThreadID returns the platform thread handle, empty until SetThread.
func (t *OpenTicket) ThreadID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticket.ThreadID
}

// SetThread records the platform thread backing this ticket.
func (t *OpenTicket) SetThread(threadID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticket.ThreadID = threadID
	t.ticket.Name = name
}

// Status returns the current lifecycle status.
func (t *OpenTicket) Status() domain.TicketStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticket.Status
}

// Append adds a transcript entry, assigning its sequence number. It fails
// with TICKET_CLOSED once the ticket has left the OPEN state.
func (t *OpenTicket) Append(entry domain.TranscriptEntry) (domain.TranscriptEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticket.Status != domain.TicketStatusOpen {
		return domain.TranscriptEntry{}, util.NewTicketClosed(t.ticket.ID)
	}
	entry.Seq = len(t.entries)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.entries = append(t.entries, entry)
	return entry, nil
}

// Entries returns a copy of the accumulated log in append order.
func (t *OpenTicket) Entries() []domain.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// BeginClose moves OPEN to CLOSING. Calling it again while CLOSING is allowed
// so a failed close can be retried; a CLOSED ticket is rejected.
func (t *OpenTicket) BeginClose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.ticket.Status {
	case domain.TicketStatusOpen, domain.TicketStatusClosing:
		t.ticket.Status = domain.TicketStatusClosing
		return nil
	default:
		return util.NewTicketClosed(t.ticket.ID)
	}
}

// FinishClose marks the terminal state. Only valid after BeginClose.
func (t *OpenTicket) FinishClose(closedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticket.Status = domain.TicketStatusClosed
	t.ticket.ClosedAt = &closedAt
	t.tags = map[string]struct{}{}
}

// AddTag records membership in a group tag.
func (t *OpenTicket) AddTag(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags[name] = struct{}{}
}

// RemoveTag drops membership in a group tag. Unknown names are a no-op.
func (t *OpenTicket) RemoveTag(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tags, name)
}

// Tags returns the tag names currently applied, sorted for stable output.
func (t *OpenTicket) Tags() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.tags))
	for name := range t.tags {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetUserLanguage records the language last detected on the user's messages.
func (t *OpenTicket) SetUserLanguage(language string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userLanguage = language
}

// UserLanguage returns the last detected user language, empty when unknown.
func (t *OpenTicket) UserLanguage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userLanguage
}

// Snapshot returns a copy of the ticket's current state.
func (t *OpenTicket) Snapshot() domain.Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.ticket
	snap.Tags = make([]string, 0, len(t.tags))
	for name := range t.tags {
		snap.Tags = append(snap.Tags, name)
	}
	sort.Strings(snap.Tags)
	return snap
}

// PendingRecord returns the transcript record built by an earlier close
// attempt, if any.
func (t *OpenTicket) PendingRecord() *domain.TranscriptRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// SetPendingRecord stores the record so a retried close reuses it.
func (t *OpenTicket) SetPendingRecord(record *domain.TranscriptRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = record
}

// MarkSummaryTried notes that the AI summary was attempted; it is never
// re-requested on retry.
func (t *OpenTicket) MarkSummaryTried() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summaryTried = true
}

// SummaryTried reports whether an AI summary attempt already happened.
func (t *OpenTicket) SummaryTried() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summaryTried
}

// MarkPersisted notes that the transcript record reached the store.
func (t *OpenTicket) MarkPersisted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persisted = true
}

// Persisted reports whether the transcript record reached the store.
func (t *OpenTicket) Persisted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persisted
}

// Registry is the single source of truth for "does this user have an open
// ticket". One mutex guards the check-and-insert so concurrent opens for the
// same user are linearizable; the lock is released before any network I/O.
type Registry struct {
	mu       sync.Mutex
	byUser   map[string]*OpenTicket
	byTicket map[string]*OpenTicket
}

// NewRegistry creates an empty registry. Tests inject a fresh instance.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]*OpenTicket),
		byTicket: make(map[string]*OpenTicket),
	}
}

// Reserve atomically inserts a new OPEN ticket for the user, failing with
// ALREADY_OPEN if one exists.
func (r *Registry) Reserve(userID string, anonymous bool) (*OpenTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUser[userID]; exists {
		return nil, util.NewAlreadyOpen(userID)
	}
	ticket := &OpenTicket{
		ticket: domain.Ticket{
			ID:        uuid.NewString(),
			UserID:    userID,
			Anonymous: anonymous,
			Status:    domain.TicketStatusOpen,
			OpenedAt:  time.Now().UTC(),
		},
		tags: make(map[string]struct{}),
	}
	r.byUser[userID] = ticket
	r.byTicket[ticket.ticket.ID] = ticket
	return ticket, nil
}

// Lookup returns the open ticket for a user, if any.
func (r *Registry) Lookup(userID string) (*OpenTicket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byUser[userID]
	return ticket, ok
}

// Get returns a ticket by its identifier.
func (r *Registry) Get(ticketID string) (*OpenTicket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byTicket[ticketID]
	return ticket, ok
}

// Release removes the mapping for a ticket. Unknown IDs are a no-op so a
// rolled-back open and a completed close can both call it safely.
func (r *Registry) Release(ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byTicket[ticketID]
	if !ok {
		return
	}
	delete(r.byTicket, ticketID)
	if current, exists := r.byUser[ticket.ticket.UserID]; exists && current == ticket {
		delete(r.byUser, ticket.ticket.UserID)
	}
}

// Count returns the number of registered tickets; it backs the live
// open-ticket view used for container renaming.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// All returns every registered ticket.
func (r *Registry) All() []*OpenTicket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*OpenTicket, 0, len(r.byTicket))
	for _, ticket := range r.byTicket {
		out = append(out, ticket)
	}
	return out
}
