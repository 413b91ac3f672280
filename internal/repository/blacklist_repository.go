package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// BlacklistRepository stores users whose inbound messages are dropped.
type BlacklistRepository interface {
	Add(ctx context.Context, entry *domain.BlacklistEntry) error
	Remove(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*domain.BlacklistEntry, error)
	Contains(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context) ([]domain.BlacklistEntry, error)
}

type blacklistRepository struct {
	pool *pgxpool.Pool
}

// NewBlacklistRepository instantiates the repository.
func NewBlacklistRepository(pool *pgxpool.Pool) BlacklistRepository {
	return &blacklistRepository{pool: pool}
}

func (r *blacklistRepository) Add(ctx context.Context, entry *domain.BlacklistEntry) error {
	const query = `
        INSERT INTO blacklist (user_id, reason, added_by)
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id) DO UPDATE SET reason=EXCLUDED.reason, added_by=EXCLUDED.added_by
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query, entry.UserID, entry.Reason, entry.AddedBy).Scan(&entry.CreatedAt)
	if err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

func (r *blacklistRepository) Remove(ctx context.Context, userID string) error {
	const query = `DELETE FROM blacklist WHERE user_id=$1`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return util.NewStorageError(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("blacklist entry", map[string]any{"user_id": userID})
	}
	return nil
}

func (r *blacklistRepository) Get(ctx context.Context, userID string) (*domain.BlacklistEntry, error) {
	const query = `SELECT user_id, reason, added_by, created_at FROM blacklist WHERE user_id=$1`
	var entry domain.BlacklistEntry
	err := r.pool.QueryRow(ctx, query, userID).Scan(&entry.UserID, &entry.Reason, &entry.AddedBy, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("blacklist entry", map[string]any{"user_id": userID})
	}
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	return &entry, nil
}

func (r *blacklistRepository) Contains(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM blacklist WHERE user_id=$1)`
	var found bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&found); err != nil {
		return false, util.NewStorageError(err)
	}
	return found, nil
}

func (r *blacklistRepository) List(ctx context.Context) ([]domain.BlacklistEntry, error) {
	const query = `SELECT user_id, reason, added_by, created_at FROM blacklist ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer rows.Close()

	var entries []domain.BlacklistEntry
	for rows.Next() {
		var entry domain.BlacklistEntry
		if err := rows.Scan(&entry.UserID, &entry.Reason, &entry.AddedBy, &entry.CreatedAt); err != nil {
			return nil, util.NewStorageError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError(err)
	}
	return entries, nil
}
