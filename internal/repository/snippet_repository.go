package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// SnippetRepository stores named canned replies.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *domain.Snippet) error
	Update(ctx context.Context, name, content string) error
	Delete(ctx context.Context, name string) error
	GetByName(ctx context.Context, name string) (*domain.Snippet, error)
	List(ctx context.Context) ([]domain.Snippet, error)
}

type snippetRepository struct {
	pool *pgxpool.Pool
}

// NewSnippetRepository instantiates the repository.
func NewSnippetRepository(pool *pgxpool.Pool) SnippetRepository {
	return &snippetRepository{pool: pool}
}

func (r *snippetRepository) Create(ctx context.Context, snippet *domain.Snippet) error {
	const query = `
        INSERT INTO snippets (name, content, created_by)
        VALUES ($1,$2,$3)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, snippet.Name, snippet.Content, snippet.CreatedBy).
		Scan(&snippet.CreatedAt, &snippet.UpdatedAt)
	if err != nil {
		return util.NewStorageError(err)
	}
	return nil
}

func (r *snippetRepository) Update(ctx context.Context, name, content string) error {
	const query = `UPDATE snippets SET content=$1, updated_at=NOW() WHERE name=$2`
	cmd, err := r.pool.Exec(ctx, query, content, name)
	if err != nil {
		return util.NewStorageError(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("snippet", map[string]any{"name": name})
	}
	return nil
}

func (r *snippetRepository) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM snippets WHERE name=$1`
	cmd, err := r.pool.Exec(ctx, query, name)
	if err != nil {
		return util.NewStorageError(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("snippet", map[string]any{"name": name})
	}
	return nil
}

func (r *snippetRepository) GetByName(ctx context.Context, name string) (*domain.Snippet, error) {
	const query = `SELECT name, content, created_by, created_at, updated_at FROM snippets WHERE name=$1`
	var snippet domain.Snippet
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&snippet.Name,
		&snippet.Content,
		&snippet.CreatedBy,
		&snippet.CreatedAt,
		&snippet.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("snippet", map[string]any{"name": name})
	}
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	return &snippet, nil
}

func (r *snippetRepository) List(ctx context.Context) ([]domain.Snippet, error) {
	const query = `SELECT name, content, created_by, created_at, updated_at FROM snippets ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, util.NewStorageError(err)
	}
	defer rows.Close()

	var snippets []domain.Snippet
	for rows.Next() {
		var snippet domain.Snippet
		if err := rows.Scan(&snippet.Name, &snippet.Content, &snippet.CreatedBy, &snippet.CreatedAt, &snippet.UpdatedAt); err != nil {
			return nil, util.NewStorageError(err)
		}
		snippets = append(snippets, snippet)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError(err)
	}
	return snippets, nil
}
