package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	util "github.com/spec-kit/modmail-service/pkg/util"
)

// GroupTagRepository is the write-through durability layer behind the group
// tag coordinator. The in-memory coordinator state stays authoritative; rows
// here only rebuild membership after a restart.
type GroupTagRepository interface {
	AddMember(ctx context.Context, tagName, ticketID string) error
	RemoveMember(ctx context.Context, tagName, ticketID string) error
	RemoveTicket(ctx context.Context, ticketID string) error
	RemoveTag(ctx context.Context, tagName string) error
	LoadAll(ctx context.Context) (map[string][]string, error)
}

type groupTagRepository struct {
	pool *pgxpool.Pool
}

// NewGroupTagRepository instantiates the repository.
func NewGroupTagRepository(pool *pgxpool.Pool) GroupTagRepository {
	return &groupTagRepository{pool: pool}
}

func (r *groupTagRepository) AddMember(ctx context.Context, tagName, ticketID string) error {
	const query = `
        INSERT INTO group_tags (tag_name, ticket_id) VALUES ($1,$2)
        ON CONFLICT (tag_name, ticket_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, tagName, ticketID); err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

func (r *groupTagRepository) RemoveMember(ctx context.Context, tagName, ticketID string) error {
	const query = `DELETE FROM group_tags WHERE tag_name=$1 AND ticket_id=$2`
	if _, err := r.pool.Exec(ctx, query, tagName, ticketID); err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

func (r *groupTagRepository) RemoveTicket(ctx context.Context, ticketID string) error {
	const query = `DELETE FROM group_tags WHERE ticket_id=$1`
	if _, err := r.pool.Exec(ctx, query, ticketID); err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

func (r *groupTagRepository) RemoveTag(ctx context.Context, tagName string) error {
	const query = `DELETE FROM group_tags WHERE tag_name=$1`
	if _, err := r.pool.Exec(ctx, query, tagName); err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

func (r *groupTagRepository) LoadAll(ctx context.Context) (map[string][]string, error) {
	const query = `SELECT tag_name, ticket_id FROM group_tags ORDER BY tag_name, created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var tagName, ticketID string
		if err := rows.Scan(&tagName, &ticketID); err != nil {
			return nil, util.NewStorageError(err)
		}
		out[tagName] = append(out[tagName], ticketID)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError(err)
	}
	return out, nil
}
