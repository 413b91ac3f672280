package discord

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/modmail-service/internal/config"
	"github.com/spec-kit/modmail-service/internal/platform"
)

// mockSession records calls and serves canned channel state.
type mockSession struct {
	mu sync.Mutex

	channels map[string]*discordgo.Channel
	messages map[string][]string
	edits    map[string][]*discordgo.ChannelEdit
	threads  int

	messageHandler func(*discordgo.Session, *discordgo.MessageCreate)
}

func newMockSession() *mockSession {
	return &mockSession{
		channels: make(map[string]*discordgo.Channel),
		messages: make(map[string][]string),
		edits:    make(map[string][]*discordgo.ChannelEdit),
	}
}

func (m *mockSession) Open() error  { return nil }
func (m *mockSession) Close() error { return nil }

func (m *mockSession) AddHandler(handler interface{}) func() {
	if h, ok := handler.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
		m.messageHandler = h
	}
	return func() {}
}

func (m *mockSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}
	ch := &discordgo.Channel{ID: channelID}
	m.channels[channelID] = ch
	return ch, nil
}

func (m *mockSession) ForumThreadStart(channelID, name string, archiveDuration int, content string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads++
	id := "thread-" + name
	thread := &discordgo.Channel{ID: id, Name: name}
	m.channels[id] = thread
	m.messages[id] = append(m.messages[id], content)
	return thread, nil
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[channelID] = append(m.messages[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (m *mockSession) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[channelID] = append(m.edits[channelID], data)
	ch, ok := m.channels[channelID]
	if !ok {
		ch = &discordgo.Channel{ID: channelID}
		m.channels[channelID] = ch
	}
	if data.Name != "" {
		ch.Name = data.Name
	}
	if data.AvailableTags != nil {
		ch.AvailableTags = *data.AvailableTags
		// the API assigns tag IDs
		for i := range ch.AvailableTags {
			if ch.AvailableTags[i].ID == "" {
				ch.AvailableTags[i].ID = "tag-" + ch.AvailableTags[i].Name
			}
		}
	}
	if data.AppliedTags != nil {
		ch.AppliedTags = *data.AppliedTags
	}
	return ch, nil
}

func (m *mockSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "dm-" + recipientID
	ch := &discordgo.Channel{ID: id}
	m.channels[id] = ch
	return ch, nil
}

func (m *mockSession) sent(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.messages[channelID]...)
}

func newTestAdapter(t *testing.T, sess *mockSession) *Adapter {
	t.Helper()
	adapter, err := New(AdapterOpts{
		Config: config.DiscordConfig{
			ForumChannelID: "forum-1",
			LogChannelID:   "log-1",
			ErrorChannelID: "err-1",
		},
		Session: sess,
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return adapter
}

func TestCreateThreadAndPost(t *testing.T) {
	sess := newMockSession()
	adapter := newTestAdapter(t, sess)
	ctx := context.Background()

	ref, err := adapter.CreateThread(ctx, platform.ThreadMeta{Name: "ticket 0001", UserID: "user-1", Intro: "New ticket"})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if ref.ThreadID == "" {
		t.Fatal("expected thread id")
	}

	if err := adapter.PostToThread(ctx, ref, platform.ThreadPost{AuthorName: "alice", Body: "hello", Attachments: []string{"http://file"}}); err != nil {
		t.Fatalf("post: %v", err)
	}
	msgs := sess.sent(ref.ThreadID)
	if len(msgs) != 2 {
		t.Fatalf("expected intro plus one post, got %v", msgs)
	}
	if msgs[1] != "**alice**: hello\nhttp://file" {
		t.Fatalf("unexpected post body %q", msgs[1])
	}
}

func TestSendDirect(t *testing.T) {
	sess := newMockSession()
	adapter := newTestAdapter(t, sess)

	if err := adapter.SendDirect(context.Background(), "user-1", "your ticket is open"); err != nil {
		t.Fatalf("send direct: %v", err)
	}
	msgs := sess.sent("dm-user-1")
	if len(msgs) != 1 || msgs[0] != "your ticket is open" {
		t.Fatalf("unexpected dm: %v", msgs)
	}
}

func TestLabelLifecycle(t *testing.T) {
	sess := newMockSession()
	adapter := newTestAdapter(t, sess)
	ctx := context.Background()

	if err := adapter.EnsureLabel(ctx, "wave-1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// ensuring an existing label is a no-op
	if err := adapter.EnsureLabel(ctx, "wave-1"); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	forum, _ := sess.Channel("forum-1")
	if len(forum.AvailableTags) != 1 || forum.AvailableTags[0].Name != "wave-1" {
		t.Fatalf("unexpected forum tags: %+v", forum.AvailableTags)
	}

	ref, err := adapter.CreateThread(ctx, platform.ThreadMeta{Name: "ticket 0001", UserID: "user-1"})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if err := adapter.ApplyLabel(ctx, ref, "wave-1"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	thread, _ := sess.Channel(ref.ThreadID)
	if len(thread.AppliedTags) != 1 || thread.AppliedTags[0] != "tag-wave-1" {
		t.Fatalf("unexpected applied tags: %v", thread.AppliedTags)
	}

	if err := adapter.DeleteLabel(ctx, "wave-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	forum, _ = sess.Channel("forum-1")
	if len(forum.AvailableTags) != 0 {
		t.Fatalf("label must be gone: %+v", forum.AvailableTags)
	}
	// deleting an unknown label is a no-op
	if err := adapter.DeleteLabel(ctx, "wave-1"); err != nil {
		t.Fatalf("delete again: %v", err)
	}
}

func TestArchiveThread(t *testing.T) {
	sess := newMockSession()
	adapter := newTestAdapter(t, sess)
	ctx := context.Background()

	ref, err := adapter.CreateThread(ctx, platform.ThreadMeta{Name: "ticket 0001", UserID: "user-1"})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if err := adapter.ArchiveThread(ctx, ref); err != nil {
		t.Fatalf("archive: %v", err)
	}

	sess.mu.Lock()
	edits := sess.edits[ref.ThreadID]
	sess.mu.Unlock()
	if len(edits) != 1 || edits[0].Archived == nil || !*edits[0].Archived || edits[0].Locked == nil || !*edits[0].Locked {
		t.Fatalf("expected archived+locked edit, got %+v", edits)
	}
}

func TestInboundFiltersGuildAndBotMessages(t *testing.T) {
	sess := newMockSession()
	adapter := newTestAdapter(t, sess)
	defer adapter.Close() //nolint:errcheck

	deliver := func(m *discordgo.MessageCreate) {
		sess.messageHandler(nil, m)
	}

	// guild messages and bot authors never reach the channel
	deliver(&discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID: "guild-1",
		Author:  &discordgo.User{ID: "user-1", Username: "alice"},
		Content: "in guild",
	}})
	deliver(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "bot-1", Username: "bot", Bot: true},
		Content: "from bot",
	}})
	deliver(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author:  &discordgo.User{ID: "user-1", Username: "alice"},
		Content: "real dm",
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "shot.png", URL: "http://file", ContentType: "image/png", Size: 123},
		},
	}})

	select {
	case msg := <-adapter.Inbound():
		if msg.UserID != "user-1" || msg.Body != "real dm" {
			t.Fatalf("unexpected inbound: %+v", msg)
		}
		if len(msg.Attachments) != 1 || msg.Attachments[0].FileName != "shot.png" {
			t.Fatalf("attachment missing: %+v", msg.Attachments)
		}
	default:
		t.Fatal("expected one inbound message")
	}

	select {
	case msg, ok := <-adapter.Inbound():
		if ok {
			t.Fatalf("unexpected extra message: %+v", msg)
		}
	default:
	}
}

func TestRenameContainer(t *testing.T) {
	sess := newMockSession()
	adapter := newTestAdapter(t, sess)

	if err := adapter.RenameContainer(context.Background(), "3 open tickets"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	forum, _ := sess.Channel("forum-1")
	if forum.Name != "3 open tickets" {
		t.Fatalf("forum name %q", forum.Name)
	}
}
