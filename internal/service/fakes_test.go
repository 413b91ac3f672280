package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/config"
	"github.com/spec-kit/modmail-service/internal/domain"
	"github.com/spec-kit/modmail-service/internal/events"
	"github.com/spec-kit/modmail-service/internal/platform"
	"github.com/spec-kit/modmail-service/internal/registry"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// fakeThreads records platform calls in memory. ensureLabelHook, when set,
// runs during EnsureLabel so tests can interleave work mid-call.
type fakeThreads struct {
	mu              sync.Mutex
	nextThread      int
	createErr       error
	ensureLabelHook func(name string)

	posts    map[string][]platform.ThreadPost
	directs  map[string][]string
	archived map[string]bool
	labels   map[string]bool
	applied  map[string][]string
	renames  []string
	logs     []string
	reports  []string
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{
		posts:    make(map[string][]platform.ThreadPost),
		directs:  make(map[string][]string),
		archived: make(map[string]bool),
		labels:   make(map[string]bool),
		applied:  make(map[string][]string),
	}
}

func (f *fakeThreads) CreateThread(ctx context.Context, meta platform.ThreadMeta) (platform.ThreadRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return platform.ThreadRef{}, f.createErr
	}
	f.nextThread++
	return platform.ThreadRef{ThreadID: fmt.Sprintf("thread-%d", f.nextThread)}, nil
}

func (f *fakeThreads) PostToThread(ctx context.Context, ref platform.ThreadRef, post platform.ThreadPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[ref.ThreadID] = append(f.posts[ref.ThreadID], post)
	return nil
}

func (f *fakeThreads) ArchiveThread(ctx context.Context, ref platform.ThreadRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[ref.ThreadID] = true
	return nil
}

func (f *fakeThreads) SendDirect(ctx context.Context, userID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directs[userID] = append(f.directs[userID], body)
	return nil
}

func (f *fakeThreads) EnsureLabel(ctx context.Context, name string) error {
	f.mu.Lock()
	hook := f.ensureLabelHook
	f.labels[name] = true
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return nil
}

func (f *fakeThreads) ApplyLabel(ctx context.Context, ref platform.ThreadRef, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[ref.ThreadID] = append(f.applied[ref.ThreadID], name)
	return nil
}

func (f *fakeThreads) DeleteLabel(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.labels, name)
	return nil
}

func (f *fakeThreads) RenameContainer(ctx context.Context, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, summary)
	return nil
}

func (f *fakeThreads) PostLog(ctx context.Context, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, body)
	return nil
}

func (f *fakeThreads) ReportError(ctx context.Context, scope string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, scope)
}

func (f *fakeThreads) postCount(threadID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts[threadID])
}

func (f *fakeThreads) hasLabel(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labels[name]
}

// fakeAssist returns canned detection, translation, and summary results.
type fakeAssist struct {
	mu             sync.Mutex
	language       string
	translations   map[string]string
	summary        string
	summaryOK      bool
	summarizeCalls int
}

func (f *fakeAssist) Summarize(ctx context.Context, transcript string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summarizeCalls++
	return f.summary, f.summaryOK
}

func (f *fakeAssist) Translate(ctx context.Context, text, targetLang string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if out, ok := f.translations[targetLang+"|"+text]; ok {
		return out, true
	}
	return text, true
}

func (f *fakeAssist) DetectLanguage(ctx context.Context, text string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.language == "" {
		return "", false
	}
	return f.language, true
}

func (f *fakeAssist) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summarizeCalls
}

// fakeTranscripts is an in-memory transcript store with scriptable failures.
type fakeTranscripts struct {
	mu           sync.Mutex
	failures     int
	persistCalls int
	records      map[string]domain.TranscriptRecord
}

func newFakeTranscripts() *fakeTranscripts {
	return &fakeTranscripts{records: make(map[string]domain.TranscriptRecord)}
}

func (f *fakeTranscripts) Persist(ctx context.Context, record *domain.TranscriptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistCalls++
	if f.failures > 0 {
		f.failures--
		return util.NewStorageError(errors.New("store offline"))
	}
	if _, exists := f.records[record.TicketID]; exists {
		return nil
	}
	f.records[record.TicketID] = *record
	return nil
}

func (f *fakeTranscripts) FindByUser(ctx context.Context, userID string) ([]domain.TranscriptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TranscriptRecord
	for _, record := range f.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeTranscripts) Search(ctx context.Context, userID, phrase string) ([]domain.EntryMatch, error) {
	return nil, nil
}

func (f *fakeTranscripts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeNumbers hands out sequential ticket numbers.
type fakeNumbers struct {
	mu   sync.Mutex
	next int64
}

func (f *fakeNumbers) NextTicketNumber(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return f.next, nil
}

// fakeBlacklist is an in-memory blacklist store.
type fakeBlacklist struct {
	mu      sync.Mutex
	entries map[string]domain.BlacklistEntry
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: make(map[string]domain.BlacklistEntry)}
}

func (f *fakeBlacklist) Add(ctx context.Context, entry *domain.BlacklistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.UserID] = *entry
	return nil
}

func (f *fakeBlacklist) Remove(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[userID]; !ok {
		return util.NewNotFound("blacklist entry", nil)
	}
	delete(f.entries, userID)
	return nil
}

func (f *fakeBlacklist) Get(ctx context.Context, userID string) (*domain.BlacklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[userID]
	if !ok {
		return nil, util.NewNotFound("blacklist entry", nil)
	}
	return &entry, nil
}

func (f *fakeBlacklist) Contains(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[userID]
	return ok, nil
}

func (f *fakeBlacklist) List(ctx context.Context) ([]domain.BlacklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BlacklistEntry
	for _, entry := range f.entries {
		out = append(out, entry)
	}
	return out, nil
}

// fakeGroupTags is an in-memory write-through tag store.
type fakeGroupTags struct {
	mu      sync.Mutex
	rows    map[string]map[string]struct{}
	removed []string
}

func newFakeGroupTags() *fakeGroupTags {
	return &fakeGroupTags{rows: make(map[string]map[string]struct{})}
}

func (f *fakeGroupTags) AddMember(ctx context.Context, tagName, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[tagName] == nil {
		f.rows[tagName] = make(map[string]struct{})
	}
	f.rows[tagName][ticketID] = struct{}{}
	return nil
}

func (f *fakeGroupTags) RemoveMember(ctx context.Context, tagName, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows[tagName], ticketID)
	return nil
}

func (f *fakeGroupTags) RemoveTicket(ctx context.Context, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, set := range f.rows {
		delete(set, ticketID)
	}
	return nil
}

func (f *fakeGroupTags) RemoveTag(ctx context.Context, tagName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, tagName)
	f.removed = append(f.removed, tagName)
	return nil
}

func (f *fakeGroupTags) LoadAll(ctx context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string, len(f.rows))
	for tag, set := range f.rows {
		for id := range set {
			out[tag] = append(out[tag], id)
		}
	}
	return out, nil
}

type ticketFixture struct {
	registry    *registry.Registry
	threads     *fakeThreads
	transcripts *fakeTranscripts
	blacklist   *fakeBlacklist
	assist      *fakeAssist
	dispatcher  events.Dispatcher
	tickets     *TicketService
}

func newTicketFixture(cfg config.DiscordConfig) *ticketFixture {
	logger := zap.NewNop()
	f := &ticketFixture{
		registry:    registry.NewRegistry(),
		threads:     newFakeThreads(),
		transcripts: newFakeTranscripts(),
		blacklist:   newFakeBlacklist(),
		assist:      &fakeAssist{},
		dispatcher:  events.NewInMemoryDispatcher(logger),
	}
	f.tickets = NewTicketService(TicketDependencies{
		Registry:       f.registry,
		Threads:        f.threads,
		TranscriptRepo: f.transcripts,
		BlacklistRepo:  f.blacklist,
		Assist:         f.assist,
		Numbers:        &fakeNumbers{},
		Dispatcher:     f.dispatcher,
		Config:         cfg,
		Logger:         logger,
	})
	return f
}
