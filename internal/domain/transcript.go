package domain

import "time"

// AuthorRole indicates who authored a transcript entry.
type AuthorRole string

const (
	AuthorRoleUser   AuthorRole = "USER"
	AuthorRoleStaff  AuthorRole = "STAFF"
	AuthorRoleSystem AuthorRole = "SYSTEM"
)

// AttachmentReference stores metadata for a message attachment.
type AttachmentReference struct {
	FileName  string
	URL       string
	MimeType  string
	SizeBytes int64
}

// TranscriptEntry is one logged message. Entries are immutable once appended;
// Seq is the append order within the ticket.
type TranscriptEntry struct {
	Seq            int
	AuthorRole     AuthorRole
	AuthorName     string
	Anonymized     bool
	Body           string
	Attachments    []AttachmentReference
	TranslatedFrom string
	TranslatedTo   string
	CreatedAt      time.Time
}

// TranscriptRecord is the durable unit persisted when a ticket closes. Records
// are append-only; corrections require a new record, never mutation in place.
type TranscriptRecord struct {
	TicketID    string
	UserID      string
	OpenedAt    time.Time
	ClosedAt    time.Time
	CloserRole  AuthorRole
	CloseReason string
	Entries     []TranscriptEntry
	AISummary   string
}

// EntryMatch pairs a persisted record with the entries matching a search.
type EntryMatch struct {
	Record  TranscriptRecord
	Matches []TranscriptEntry
}
