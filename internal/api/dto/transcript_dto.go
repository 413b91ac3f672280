package dto

import (
	"time"

	"github.com/spec-kit/modmail-service/internal/domain"
)

// TranscriptEntryResponse is one logged message.
type TranscriptEntryResponse struct {
	Seq            int               `json:"seq"`
	AuthorRole     domain.AuthorRole `json:"author_role"`
	AuthorName     string            `json:"author_name,omitempty"`
	Anonymized     bool              `json:"anonymized,omitempty"`
	Body           string            `json:"body"`
	AttachmentURLs []string          `json:"attachment_urls,omitempty"`
	TranslatedFrom string            `json:"translated_from,omitempty"`
	TranslatedTo   string            `json:"translated_to,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// TranscriptResponse is one persisted record.
type TranscriptResponse struct {
	TicketID    string                    `json:"ticket_id"`
	UserID      string                    `json:"user_id"`
	OpenedAt    time.Time                 `json:"opened_at"`
	ClosedAt    time.Time                 `json:"closed_at"`
	CloserRole  domain.AuthorRole         `json:"closer_role"`
	CloseReason string                    `json:"close_reason,omitempty"`
	AISummary   string                    `json:"ai_summary,omitempty"`
	Entries     []TranscriptEntryResponse `json:"entries"`
}

// SearchMatchResponse pairs a record with its matching entries.
type SearchMatchResponse struct {
	Record  TranscriptResponse        `json:"record"`
	Matches []TranscriptEntryResponse `json:"matches"`
}

// TranscriptFrom maps a domain record.
func TranscriptFrom(record domain.TranscriptRecord) TranscriptResponse {
	entries := make([]TranscriptEntryResponse, 0, len(record.Entries))
	for _, entry := range record.Entries {
		entries = append(entries, entryFrom(entry))
	}
	return TranscriptResponse{
		TicketID:    record.TicketID,
		UserID:      record.UserID,
		OpenedAt:    record.OpenedAt,
		ClosedAt:    record.ClosedAt,
		CloserRole:  record.CloserRole,
		CloseReason: record.CloseReason,
		AISummary:   record.AISummary,
		Entries:     entries,
	}
}

// SearchMatchFrom maps a domain entry match.
func SearchMatchFrom(match domain.EntryMatch) SearchMatchResponse {
	matches := make([]TranscriptEntryResponse, 0, len(match.Matches))
	for _, entry := range match.Matches {
		matches = append(matches, entryFrom(entry))
	}
	return SearchMatchResponse{Record: TranscriptFrom(match.Record), Matches: matches}
}

func entryFrom(entry domain.TranscriptEntry) TranscriptEntryResponse {
	urls := make([]string, 0, len(entry.Attachments))
	for _, a := range entry.Attachments {
		urls = append(urls, a.URL)
	}
	return TranscriptEntryResponse{
		Seq:            entry.Seq,
		AuthorRole:     entry.AuthorRole,
		AuthorName:     entry.AuthorName,
		Anonymized:     entry.Anonymized,
		Body:           entry.Body,
		AttachmentURLs: urls,
		TranslatedFrom: entry.TranslatedFrom,
		TranslatedTo:   entry.TranslatedTo,
		CreatedAt:      entry.CreatedAt,
	}
}
