package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// TranscriptRepository is the durable, queryable store of closed-ticket
// transcripts. Records are append-only; no update or delete is exposed.
type TranscriptRepository interface {
	Persist(ctx context.Context, record *domain.TranscriptRecord) error
	FindByUser(ctx context.Context, userID string) ([]domain.TranscriptRecord, error)
	Search(ctx context.Context, userID, phrase string) ([]domain.EntryMatch, error)
}

type transcriptRepository struct {
	pool *pgxpool.Pool
}

// NewTranscriptRepository instantiates the repository.
func NewTranscriptRepository(pool *pgxpool.Pool) TranscriptRepository {
	return &transcriptRepository{pool: pool}
}

// Persist writes the record and its entries in one transaction. The insert is
// idempotent on ticket ID so a retried close never duplicates a record.
func (r *transcriptRepository) Persist(ctx context.Context, record *domain.TranscriptRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return util.NewStorageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertRecord = `
        INSERT INTO transcripts (ticket_id, user_id, opened_at, closed_at, closer_role, close_reason, ai_summary)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (ticket_id) DO NOTHING`
	cmd, err := tx.Exec(ctx, insertRecord,
		record.TicketID,
		record.UserID,
		record.OpenedAt,
		record.ClosedAt,
		record.CloserRole,
		record.CloseReason,
		record.AISummary,
	)
	if err != nil {
		return util.NewStorageError(err)
	}
	if cmd.RowsAffected() == 0 {
		// Already persisted by an earlier close attempt.
		return tx.Commit(ctx)
	}

	const insertEntry = `
        INSERT INTO transcript_entries (ticket_id, seq, author_role, author_name, anonymized, body, attachments, translated_from, translated_to, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	for _, entry := range record.Entries {
		attachments, err := json.Marshal(entry.Attachments)
		if err != nil {
			return util.NewStorageError(err)
		}
		if _, err := tx.Exec(ctx, insertEntry,
			record.TicketID,
			entry.Seq,
			entry.AuthorRole,
			entry.AuthorName,
			entry.Anonymized,
			entry.Body,
			attachments,
			entry.TranslatedFrom,
			entry.TranslatedTo,
			entry.CreatedAt,
		); err != nil {
			return util.NewStorageError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

// FindByUser returns a user's records ordered by close time, newest first.
func (r *transcriptRepository) FindByUser(ctx context.Context, userID string) ([]domain.TranscriptRecord, error) {
	const query = `
        SELECT ticket_id, user_id, opened_at, closed_at, closer_role, close_reason, ai_summary
        FROM transcripts WHERE user_id=$1
        ORDER BY closed_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for i := range records {
		entries, err := r.entriesFor(ctx, records[i].TicketID)
		if err != nil {
			return nil, err
		}
		records[i].Entries = entries
	}
	return records, nil
}

// Search performs a case-insensitive substring match over entry bodies,
// optionally scoped to one user. The trigram index on body keeps this an
// index lookup rather than a scan of all records.
func (r *transcriptRepository) Search(ctx context.Context, userID, phrase string) ([]domain.EntryMatch, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, util.NewValidationError("search phrase is required", nil)
	}
	query, args := searchQuery(userID, phrase)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer rows.Close()

	var matches []domain.EntryMatch
	index := map[string]int{}
	for rows.Next() {
		var record domain.TranscriptRecord
		var entry domain.TranscriptEntry
		var attachments []byte
		if err := rows.Scan(
			&record.TicketID,
			&record.UserID,
			&record.OpenedAt,
			&record.ClosedAt,
			&record.CloserRole,
			&record.CloseReason,
			&record.AISummary,
			&entry.Seq,
			&entry.AuthorRole,
			&entry.AuthorName,
			&entry.Anonymized,
			&entry.Body,
			&attachments,
			&entry.TranslatedFrom,
			&entry.TranslatedTo,
			&entry.CreatedAt,
		); err != nil {
			return nil, util.NewStorageError(err)
		}
		if err := json.Unmarshal(attachments, &entry.Attachments); err != nil {
			return nil, util.NewStorageError(err)
		}
		pos, seen := index[record.TicketID]
		if !seen {
			pos = len(matches)
			index[record.TicketID] = pos
			matches = append(matches, domain.EntryMatch{Record: record})
		}
		matches[pos].Matches = append(matches[pos].Matches, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError(err)
	}
	return matches, nil
}

func (r *transcriptRepository) entriesFor(ctx context.Context, ticketID string) ([]domain.TranscriptEntry, error) {
	const query = `
        SELECT seq, author_role, author_name, anonymized, body, attachments, translated_from, translated_to, created_at
        FROM transcript_entries WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer rows.Close()

	var entries []domain.TranscriptEntry
	for rows.Next() {
		var entry domain.TranscriptEntry
		var attachments []byte
		if err := rows.Scan(
			&entry.Seq,
			&entry.AuthorRole,
			&entry.AuthorName,
			&entry.Anonymized,
			&entry.Body,
			&attachments,
			&entry.TranslatedFrom,
			&entry.TranslatedTo,
			&entry.CreatedAt,
		); err != nil {
			return nil, util.NewStorageError(err)
		}
		if err := json.Unmarshal(attachments, &entry.Attachments); err != nil {
			return nil, util.NewStorageError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError(err)
	}
	return entries, nil
}

func scanRecords(rows pgx.Rows) ([]domain.TranscriptRecord, error) {
	var records []domain.TranscriptRecord
	for rows.Next() {
		var record domain.TranscriptRecord
		if err := rows.Scan(
			&record.TicketID,
			&record.UserID,
			&record.OpenedAt,
			&record.ClosedAt,
			&record.CloserRole,
			&record.CloseReason,
			&record.AISummary,
		); err != nil {
			return nil, util.NewStorageError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError(err)
	}
	return records, nil
}

// searchQuery builds the entry-body match. ILIKE gives case-insensitive
// substring semantics; a non-empty userID adds the scoping predicate so other
// users' records never appear in the result.
func searchQuery(userID, phrase string) (string, []any) {
	query := `
        SELECT t.ticket_id, t.user_id, t.opened_at, t.closed_at, t.closer_role, t.close_reason, t.ai_summary,
               e.seq, e.author_role, e.author_name, e.anonymized, e.body, e.attachments, e.translated_from, e.translated_to, e.created_at
        FROM transcript_entries e
        JOIN transcripts t ON t.ticket_id = e.ticket_id
        WHERE e.body ILIKE $1`
	args := []any{"%" + escapeLike(phrase) + "%"}
	if userID != "" {
		query += ` AND t.user_id = $2`
		args = append(args, userID)
	}
	query += ` ORDER BY t.closed_at DESC, e.seq ASC`
	return query, args
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
