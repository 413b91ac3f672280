package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/config"
	"github.com/spec-kit/modmail-service/internal/domain"
	"github.com/spec-kit/modmail-service/internal/events"
	"github.com/spec-kit/modmail-service/internal/platform"
	"github.com/spec-kit/modmail-service/internal/registry"
	"github.com/spec-kit/modmail-service/internal/repository"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// AssistService is the slice of the AI collaborator the lifecycle uses. Every
// call is best-effort; ok=false degrades gracefully.
type AssistService interface {
	Summarize(ctx context.Context, transcript string) (string, bool)
	Translate(ctx context.Context, text, targetLang string) (string, bool)
	DetectLanguage(ctx context.Context, text string) (string, bool)
}

// TicketNumberSource hands out sequential numbers for anonymous ticket names.
type TicketNumberSource interface {
	NextTicketNumber(ctx context.Context) (int64, error)
}

// TicketService coordinates the ticket lifecycle: open, relay, close.
type TicketService struct {
	registry    *registry.Registry
	threads     platform.ThreadService
	transcripts repository.TranscriptRepository
	blacklist   repository.BlacklistRepository
	assist      AssistService
	numbers     TicketNumberSource
	dispatcher  events.Dispatcher
	cfg         config.DiscordConfig
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Registry       *registry.Registry
	Threads        platform.ThreadService
	TranscriptRepo repository.TranscriptRepository
	BlacklistRepo  repository.BlacklistRepository
	Assist         AssistService
	Numbers        TicketNumberSource
	Dispatcher     events.Dispatcher
	Config         config.DiscordConfig
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		registry:    deps.Registry,
		threads:     deps.Threads,
		transcripts: deps.TranscriptRepo,
		blacklist:   deps.BlacklistRepo,
		assist:      deps.Assist,
		numbers:     deps.Numbers,
		dispatcher:  deps.Dispatcher,
		cfg:         deps.Config,
		logger:      deps.Logger,
	}
}

// OpenCount returns the number of currently open tickets.
func (s *TicketService) OpenCount() int {
	return s.registry.Count()
}

// Lookup returns the open ticket for a user, if any.
func (s *TicketService) Lookup(userID string) (*registry.OpenTicket, bool) {
	return s.registry.Lookup(userID)
}

// OpenTicket reserves a ticket for the user and creates its platform thread.
// languageHint, when non-empty, localizes the greeting; it is typically the
// user's first message. The reservation is rolled back if the thread cannot
// be created.
func (s *TicketService) OpenTicket(ctx context.Context, userID, userName, languageHint string) (*registry.OpenTicket, error) {
	ticket, err := s.registry.Reserve(userID, s.cfg.AnonymousTickets)
	if err != nil {
		return nil, err
	}

	name := s.ticketName(ctx, userName)
	ref, err := s.threads.CreateThread(ctx, platform.ThreadMeta{
		Name:    name,
		UserID:  userID,
		Intro:   fmt.Sprintf("New ticket: %s", name),
		Created: time.Now().UTC(),
	})
	if err != nil {
		s.registry.Release(ticket.ID())
		return nil, util.NewThreadCreateFailed(err)
	}
	ticket.SetThread(ref.ThreadID, name)

	if languageHint != "" {
		if lang, ok := s.assist.DetectLanguage(ctx, languageHint); ok {
			ticket.SetUserLanguage(lang)
		}
	}
	s.sendLocalized(ctx, ticket, s.cfg.OpenMessage)

	if err := s.threads.PostLog(ctx, fmt.Sprintf("Ticket %s opened for user %s", name, userID)); err != nil {
		s.logger.Debug("log post failed", zap.Error(err))
	}
	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketOpened,
		TicketID:  ticket.ID(),
		Timestamp: time.Now().UTC(),
		Payload: events.TicketOpenedPayload{
			UserID:    userID,
			ThreadID:  ref.ThreadID,
			Name:      name,
			OpenCount: s.registry.Count(),
		},
	})
	return ticket, nil
}

// HandleUserMessage is the inbound path: blacklisted users are dropped, a
// message without an open ticket opens one, then the message is relayed.
func (s *TicketService) HandleUserMessage(ctx context.Context, msg platform.InboundMessage) error {
	if s.blacklist != nil {
		blocked, err := s.blacklist.Contains(ctx, msg.UserID)
		if err != nil {
			s.logger.Warn("blacklist check failed", zap.String("user_id", msg.UserID), zap.Error(err))
		} else if blocked {
			s.logger.Debug("dropping message from blacklisted user", zap.String("user_id", msg.UserID))
			return nil
		}
	}

	ticket, ok := s.registry.Lookup(msg.UserID)
	if !ok {
		opened, err := s.OpenTicket(ctx, msg.UserID, msg.UserName, msg.Body)
		if err != nil {
			s.threads.ReportError(ctx, "open ticket", err)
			return err
		}
		ticket = opened
	}
	return s.RelayUserMessage(ctx, ticket, msg)
}

// RelayUserMessage appends the user's message to the ticket log and posts it
// into the staff thread, translating best-effort when the user writes in
// another language.
func (s *TicketService) RelayUserMessage(ctx context.Context, ticket *registry.OpenTicket, msg platform.InboundMessage) error {
	body := msg.Body
	var from, to string
	if lang, ok := s.assist.DetectLanguage(ctx, msg.Body); ok {
		ticket.SetUserLanguage(lang)
		if !languageIsEnglish(lang) {
			if translated, ok := s.assist.Translate(ctx, msg.Body, "English"); ok && translated != msg.Body {
				body = translated
				from, to = lang, "english"
			}
		}
	}

	authorName := msg.UserName
	if ticket.Anonymous() {
		authorName = ""
	}
	entry, err := ticket.Append(domain.TranscriptEntry{
		AuthorRole:     domain.AuthorRoleUser,
		AuthorName:     authorName,
		Anonymized:     ticket.Anonymous(),
		Body:           body,
		Attachments:    attachmentRefs(msg.Attachments),
		TranslatedFrom: from,
		TranslatedTo:   to,
		CreatedAt:      msg.ReceivedAt,
	})
	if err != nil {
		return err
	}

	displayName := authorName
	if displayName == "" {
		snap := ticket.Snapshot()
		displayName = snap.Name
	}
	post := platform.ThreadPost{
		AuthorName:  displayName,
		Body:        body,
		Attachments: attachmentURLs(msg.Attachments),
	}
	if err := s.threads.PostToThread(ctx, platform.ThreadRef{ThreadID: ticket.ThreadID()}, post); err != nil {
		s.threads.ReportError(ctx, "relay to thread", err)
		return err
	}
	s.publishRelayed(ctx, ticket.ID(), entry)
	return nil
}

// RelayStaffReply appends a staff message and delivers it to the user,
// translated to the user's language when one was detected.
func (s *TicketService) RelayStaffReply(ctx context.Context, ticketID, staffName, body string) error {
	return s.relayStaffReply(ctx, ticketID, staffName, body, false)
}

// RelayStaffReplyAnonymous delivers a staff reply without attributing it to
// the operator. The transcript still records who sent it.
func (s *TicketService) RelayStaffReplyAnonymous(ctx context.Context, ticketID, staffName, body string) error {
	return s.relayStaffReply(ctx, ticketID, staffName, body, true)
}

func (s *TicketService) relayStaffReply(ctx context.Context, ticketID, staffName, body string, anonymous bool) error {
	ticket, ok := s.registry.Get(ticketID)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	delivered := body
	var from, to string
	if lang := ticket.UserLanguage(); !languageIsEnglish(lang) {
		if translated, ok := s.assist.Translate(ctx, body, lang); ok && translated != body {
			delivered = translated
			from, to = "english", lang
		}
	}

	entry, err := ticket.Append(domain.TranscriptEntry{
		AuthorRole:     domain.AuthorRoleStaff,
		AuthorName:     staffName,
		Anonymized:     anonymous,
		Body:           body,
		TranslatedFrom: from,
		TranslatedTo:   to,
	})
	if err != nil {
		return err
	}

	if err := s.threads.SendDirect(ctx, ticket.UserID(), delivered); err != nil {
		s.threads.ReportError(ctx, "deliver staff reply", err)
		return err
	}
	// Mirror into the thread so staff see their own reply in the log.
	if err := s.threads.PostToThread(ctx, platform.ThreadRef{ThreadID: ticket.ThreadID()}, platform.ThreadPost{
		AuthorName: staffName,
		Body:       body,
	}); err != nil {
		s.logger.Debug("thread mirror failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	s.publishRelayed(ctx, ticket.ID(), entry)
	return nil
}

// SendMessage opens a fresh ticket for the user and delivers a staff message
// into it. A user with an open ticket fails with ALREADY_OPEN.
func (s *TicketService) SendMessage(ctx context.Context, userID, userName, staffName, body string) (*registry.OpenTicket, error) {
	ticket, err := s.OpenTicket(ctx, userID, userName, "")
	if err != nil {
		return nil, err
	}
	if err := s.RelayStaffReply(ctx, ticket.ID(), staffName, body); err != nil {
		return ticket, err
	}
	return ticket, nil
}

// CloseTicket drives a ticket to its terminal state: transcript built once,
// AI summary attempted once, record persisted, user notified, thread
// archived. A persistence failure leaves the ticket in CLOSING so the call
// can be retried; completed sub-steps are skipped on retry.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID string, closer domain.AuthorRole, reason string) error {
	ticket, ok := s.registry.Get(ticketID)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := ticket.BeginClose(); err != nil {
		return err
	}

	record := ticket.PendingRecord()
	if record == nil {
		snap := ticket.Snapshot()
		record = &domain.TranscriptRecord{
			TicketID:    snap.ID,
			UserID:      snap.UserID,
			OpenedAt:    snap.OpenedAt,
			ClosedAt:    time.Now().UTC(),
			CloserRole:  closer,
			CloseReason: reason,
			Entries:     ticket.Entries(),
		}
		ticket.SetPendingRecord(record)
	}

	if !ticket.SummaryTried() {
		ticket.MarkSummaryTried()
		if summary, ok := s.assist.Summarize(ctx, renderTranscript(record.Entries)); ok {
			record.AISummary = summary
		}
	}

	if !ticket.Persisted() {
		if err := s.transcripts.Persist(ctx, record); err != nil {
			s.threads.ReportError(ctx, "persist transcript", err)
			return err
		}
		ticket.MarkPersisted()
	}

	closeText := s.cfg.CloseMessage
	if reason != "" {
		closeText = closeText + "\n" + reason
	}
	s.sendLocalized(ctx, ticket, closeText)

	if err := s.threads.ArchiveThread(ctx, platform.ThreadRef{ThreadID: ticket.ThreadID()}); err != nil {
		s.logger.Warn("thread archive failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	if err := s.threads.PostLog(ctx, fmt.Sprintf("Ticket %s closed (%d messages)", record.TicketID, len(record.Entries))); err != nil {
		s.logger.Debug("log post failed", zap.Error(err))
	}

	s.registry.Release(ticketID)
	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketClosed,
		TicketID:  ticketID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketClosedPayload{
			UserID:     record.UserID,
			CloserRole: closer,
			Reason:     reason,
			OpenCount:  s.registry.Count(),
		},
	})
	ticket.FinishClose(record.ClosedAt)
	return nil
}

// Transcripts returns a user's persisted records, most recently closed first.
func (s *TicketService) Transcripts(ctx context.Context, userID string) ([]domain.TranscriptRecord, error) {
	return s.transcripts.FindByUser(ctx, userID)
}

// SearchTranscripts performs a case-insensitive substring search over entry
// bodies, optionally scoped to one user.
func (s *TicketService) SearchTranscripts(ctx context.Context, userID, phrase string) ([]domain.EntryMatch, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, util.NewValidationError("search phrase is required", nil)
	}
	return s.transcripts.Search(ctx, userID, phrase)
}

func (s *TicketService) ticketName(ctx context.Context, userName string) string {
	if !s.cfg.AnonymousTickets && userName != "" {
		return userName
	}
	n, err := s.numbers.NextTicketNumber(ctx)
	if err != nil {
		s.logger.Warn("ticket counter unavailable", zap.Error(err))
		return "ticket " + uuid.NewString()[:8]
	}
	return fmt.Sprintf("ticket %04d", n)
}

// sendLocalized DMs a configured message, translated to the user's detected
// language. Failures are reported and swallowed; notification is best-effort.
func (s *TicketService) sendLocalized(ctx context.Context, ticket *registry.OpenTicket, text string) {
	if text == "" {
		return
	}
	if lang := ticket.UserLanguage(); !languageIsEnglish(lang) {
		if translated, ok := s.assist.Translate(ctx, text, lang); ok {
			text = translated
		}
	}
	if err := s.threads.SendDirect(ctx, ticket.UserID(), text); err != nil {
		s.logger.Debug("user notification failed", zap.String("ticket_id", ticket.ID()), zap.Error(err))
	}
}

func (s *TicketService) publishRelayed(ctx context.Context, ticketID string, entry domain.TranscriptEntry) {
	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketRelayed,
		TicketID:  ticketID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketRelayedPayload{
			AuthorRole:  entry.AuthorRole,
			Seq:         entry.Seq,
			BodyPreview: preview(entry.Body),
		},
	})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func renderTranscript(entries []domain.TranscriptEntry) string {
	var b strings.Builder
	for _, entry := range entries {
		name := entry.AuthorName
		if name == "" {
			name = string(entry.AuthorRole)
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(entry.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func attachmentRefs(in []platform.Attachment) []domain.AttachmentReference {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.AttachmentReference, len(in))
	for i, a := range in {
		out[i] = domain.AttachmentReference{
			FileName:  a.FileName,
			URL:       a.URL,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		}
	}
	return out
}

func attachmentURLs(in []platform.Attachment) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = a.URL
	}
	return out
}

func preview(body string) string {
	const max = 80
	if len(body) <= max {
		return body
	}
	// Cut on a rune boundary so multibyte text is never split mid-sequence.
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

func languageIsEnglish(language string) bool {
	normalized := strings.ToLower(strings.TrimSpace(language))
	switch normalized {
	case "", "english", "en", "en-us", "en-gb", "unknown":
		return true
	}
	return strings.HasPrefix(normalized, "en")
}
