// Package discord implements the platform ThreadService on the Discord
// Gateway. Tickets are forum threads; group tags are forum tags.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/config"
	"github.com/spec-kit/modmail-service/internal/platform"
)

const (
	// maxRetries is the max number of attempts for rate-limited API calls.
	maxRetries = 3
	// archiveDurationMinutes keeps ticket threads alive for seven days.
	archiveDurationMinutes = 10080
	// inboundBuffer bounds the inbound DM channel.
	inboundBuffer = 100
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ForumThreadStart(channelID, name string, archiveDuration int, content string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.Channel(channelID, options...)
}
func (r *realSession) ForumThreadStart(channelID, name string, archiveDuration int, content string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.ForumThreadStart(channelID, name, archiveDuration, content, options...)
}
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.ChannelEditComplex(channelID, data, options...)
}
func (r *realSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.UserChannelCreate(recipientID, options...)
}

// Adapter implements platform.ThreadService and platform.InboundSource.
type Adapter struct {
	sess   session
	cfg    config.DiscordConfig
	logger *zap.Logger

	mu            sync.Mutex
	connected     bool
	closed        bool
	botUserID     string
	removeHandler func()

	inbound chan platform.InboundMessage
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	Config config.DiscordConfig
	Logger *zap.Logger
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.Config.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Config.ForumChannelID == "" {
		return nil, fmt.Errorf("discord: forum channel is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		sess:    opts.Session,
		cfg:     opts.Config,
		logger:  logger,
		inbound: make(chan platform.InboundMessage, inboundBuffer),
	}, nil
}

// Connect opens the Gateway session and starts relaying user DMs.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.cfg.BotToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		a.logger.Info("discord gateway connected", zap.String("bot_user_id", r.User.ID))
	})
	a.sess.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		a.logger.Warn("discord gateway disconnected; library will reconnect")
	})
	a.removeHandler = a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// Inbound returns the channel of user direct messages.
func (a *Adapter) Inbound() <-chan platform.InboundMessage {
	return a.inbound
}

// Close shuts the adapter down and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	if a.connected {
		a.connected = false
		return a.sess.Close()
	}
	return nil
}

// handleMessage forwards user DMs to the inbound channel. Guild messages and
// the bot's own messages are ignored.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.GuildID != "" || m.Author == nil || m.Author.Bot {
		return
	}
	a.mu.Lock()
	self := a.botUserID
	closed := a.closed
	a.mu.Unlock()
	if closed || m.Author.ID == self {
		return
	}

	msg := platform.InboundMessage{
		UserID:     m.Author.ID,
		UserName:   m.Author.Username,
		Body:       m.Content,
		ReceivedAt: time.Now().UTC(),
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, platform.Attachment{
			FileName:  att.Filename,
			URL:       att.URL,
			MimeType:  att.ContentType,
			SizeBytes: int64(att.Size),
		})
	}

	select {
	case a.inbound <- msg:
	default:
		a.logger.Warn("inbound channel full, dropping message", zap.String("user_id", m.Author.ID))
	}
}

// CreateThread opens a forum thread for a new ticket.
func (a *Adapter) CreateThread(ctx context.Context, meta platform.ThreadMeta) (platform.ThreadRef, error) {
	intro := meta.Intro
	if intro == "" {
		intro = fmt.Sprintf("New ticket for <@%s> (%s)", meta.UserID, meta.UserID)
	}
	var thread *discordgo.Channel
	err := a.retryOnRateLimit(ctx, func() error {
		var startErr error
		thread, startErr = a.sess.ForumThreadStart(a.cfg.ForumChannelID, meta.Name, archiveDurationMinutes, intro)
		return startErr
	})
	if err != nil {
		return platform.ThreadRef{}, fmt.Errorf("discord: create thread: %w", err)
	}
	return platform.ThreadRef{ThreadID: thread.ID}, nil
}

// PostToThread delivers a message into a ticket thread.
func (a *Adapter) PostToThread(ctx context.Context, ref platform.ThreadRef, post platform.ThreadPost) error {
	body := post.Body
	if post.AuthorName != "" {
		body = fmt.Sprintf("**%s**: %s", post.AuthorName, post.Body)
	}
	for _, url := range post.Attachments {
		body += "\n" + url
	}
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(ref.ThreadID, body)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: post to thread %s: %w", ref.ThreadID, err)
	}
	return nil
}

// ArchiveThread archives and locks a ticket thread.
func (a *Adapter) ArchiveThread(ctx context.Context, ref platform.ThreadRef) error {
	archived := true
	locked := true
	err := a.retryOnRateLimit(ctx, func() error {
		_, editErr := a.sess.ChannelEditComplex(ref.ThreadID, &discordgo.ChannelEdit{
			Archived: &archived,
			Locked:   &locked,
		})
		return editErr
	})
	if err != nil {
		return fmt.Errorf("discord: archive thread %s: %w", ref.ThreadID, err)
	}
	return nil
}

// SendDirect delivers a message to the user's DM channel.
func (a *Adapter) SendDirect(ctx context.Context, userID, body string) error {
	dm, err := a.sess.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("discord: open dm with %s: %w", userID, err)
	}
	err = a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(dm.ID, body)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: dm %s: %w", userID, err)
	}
	return nil
}

// EnsureLabel creates the forum tag when it does not exist.
func (a *Adapter) EnsureLabel(ctx context.Context, name string) error {
	forum, err := a.sess.Channel(a.cfg.ForumChannelID)
	if err != nil {
		return fmt.Errorf("discord: fetch forum: %w", err)
	}
	for _, tag := range forum.AvailableTags {
		if tag.Name == name {
			return nil
		}
	}
	tags := append(append([]discordgo.ForumTag{}, forum.AvailableTags...), discordgo.ForumTag{Name: name})
	err = a.retryOnRateLimit(ctx, func() error {
		_, editErr := a.sess.ChannelEditComplex(a.cfg.ForumChannelID, &discordgo.ChannelEdit{AvailableTags: &tags})
		return editErr
	})
	if err != nil {
		return fmt.Errorf("discord: create label %q: %w", name, err)
	}
	return nil
}

// ApplyLabel adds the named forum tag to a ticket thread.
func (a *Adapter) ApplyLabel(ctx context.Context, ref platform.ThreadRef, name string) error {
	forum, err := a.sess.Channel(a.cfg.ForumChannelID)
	if err != nil {
		return fmt.Errorf("discord: fetch forum: %w", err)
	}
	var tagID string
	for _, tag := range forum.AvailableTags {
		if tag.Name == name {
			tagID = tag.ID
			break
		}
	}
	if tagID == "" {
		return fmt.Errorf("discord: label %q does not exist", name)
	}

	thread, err := a.sess.Channel(ref.ThreadID)
	if err != nil {
		return fmt.Errorf("discord: fetch thread %s: %w", ref.ThreadID, err)
	}
	for _, applied := range thread.AppliedTags {
		if applied == tagID {
			return nil
		}
	}
	applied := append(append([]string{}, thread.AppliedTags...), tagID)
	err = a.retryOnRateLimit(ctx, func() error {
		_, editErr := a.sess.ChannelEditComplex(ref.ThreadID, &discordgo.ChannelEdit{AppliedTags: &applied})
		return editErr
	})
	if err != nil {
		return fmt.Errorf("discord: apply label %q: %w", name, err)
	}
	return nil
}

// DeleteLabel removes the forum tag. Unknown names are a no-op.
func (a *Adapter) DeleteLabel(ctx context.Context, name string) error {
	forum, err := a.sess.Channel(a.cfg.ForumChannelID)
	if err != nil {
		return fmt.Errorf("discord: fetch forum: %w", err)
	}
	kept := make([]discordgo.ForumTag, 0, len(forum.AvailableTags))
	found := false
	for _, tag := range forum.AvailableTags {
		if tag.Name == name {
			found = true
			continue
		}
		kept = append(kept, tag)
	}
	if !found {
		return nil
	}
	err = a.retryOnRateLimit(ctx, func() error {
		_, editErr := a.sess.ChannelEditComplex(a.cfg.ForumChannelID, &discordgo.ChannelEdit{AvailableTags: &kept})
		return editErr
	})
	if err != nil {
		return fmt.Errorf("discord: delete label %q: %w", name, err)
	}
	return nil
}

// RenameContainer renames the forum channel with the open-ticket summary.
func (a *Adapter) RenameContainer(ctx context.Context, summary string) error {
	err := a.retryOnRateLimit(ctx, func() error {
		_, editErr := a.sess.ChannelEditComplex(a.cfg.ForumChannelID, &discordgo.ChannelEdit{Name: summary})
		return editErr
	})
	if err != nil {
		return fmt.Errorf("discord: rename container: %w", err)
	}
	return nil
}

// PostLog writes to the staff log channel.
func (a *Adapter) PostLog(ctx context.Context, body string) error {
	if a.cfg.LogChannelID == "" {
		return nil
	}
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(a.cfg.LogChannelID, body)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: post log: %w", err)
	}
	return nil
}

// ReportError posts to the operator-visible error channel. Failures here are
// only logged; error reporting must never cascade.
func (a *Adapter) ReportError(ctx context.Context, scope string, reported error) {
	a.logger.Error("reported fault", zap.String("scope", scope), zap.Error(reported))
	if a.cfg.ErrorChannelID == "" {
		return
	}
	body := fmt.Sprintf(":warning: **%s**\n```\n%v\n```", scope, reported)
	if _, err := a.sess.ChannelMessageSend(a.cfg.ErrorChannelID, body); err != nil {
		a.logger.Warn("error channel unavailable", zap.Error(err))
	}
}

// retryOnRateLimit retries a call when Discord rate-limits it, honoring the
// advertised retry-after delay.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		rateErr, ok := err.(*discordgo.RateLimitError)
		if !ok {
			return err
		}
		select {
		case <-time.After(rateErr.RetryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
