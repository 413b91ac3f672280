// Package platform defines the messaging-platform surface the core calls
// through. Implementations live in subpackages; tests use in-memory fakes.
package platform

import (
	"context"
	"time"
)

// ThreadMeta describes the collaborative thread to create for a ticket.
type ThreadMeta struct {
	Name    string
	UserID  string
	Intro   string
	Created time.Time
}

// ThreadRef is the handle to a platform-side thread.
type ThreadRef struct {
	ThreadID string
}

// ThreadPost is one message delivered into a staff-visible thread.
type ThreadPost struct {
	AuthorName  string
	Body        string
	Attachments []string
}

// InboundMessage is a user's direct message received from the platform.
type InboundMessage struct {
	UserID      string
	UserName    string
	Body        string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// Attachment carries platform attachment metadata.
type Attachment struct {
	FileName  string
	URL       string
	MimeType  string
	SizeBytes int64
}

// ThreadService is the platform collaborator consumed by the core. All calls
// are potential suspension points; no internal lock is held across them.
type ThreadService interface {
	CreateThread(ctx context.Context, meta ThreadMeta) (ThreadRef, error)
	PostToThread(ctx context.Context, ref ThreadRef, post ThreadPost) error
	ArchiveThread(ctx context.Context, ref ThreadRef) error

	// SendDirect delivers a message to the user's private conversation.
	SendDirect(ctx context.Context, userID, body string) error

	// Labels back group tags; Ensure and Delete are idempotent.
	EnsureLabel(ctx context.Context, name string) error
	ApplyLabel(ctx context.Context, ref ThreadRef, name string) error
	DeleteLabel(ctx context.Context, name string) error

	// RenameContainer updates the ticket container with a count summary.
	RenameContainer(ctx context.Context, summary string) error

	// PostLog writes to the staff log channel; ReportError to the
	// operator-visible error channel. Both are best-effort.
	PostLog(ctx context.Context, body string) error
	ReportError(ctx context.Context, scope string, err error)
}

// InboundSource is implemented by adapters that deliver user messages.
type InboundSource interface {
	// Inbound returns the channel of user direct messages. The channel is
	// closed when the adapter shuts down.
	Inbound() <-chan InboundMessage
}
