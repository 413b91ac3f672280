package service

import (
	"context"
	"strings"

	"github.com/spec-kit/modmail-service/internal/domain"
	"github.com/spec-kit/modmail-service/internal/repository"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// SnippetService manages named canned replies.
type SnippetService struct {
	snippets repository.SnippetRepository
	tickets  *TicketService
}

// NewSnippetService constructs the service.
func NewSnippetService(snippets repository.SnippetRepository, tickets *TicketService) *SnippetService {
	return &SnippetService{snippets: snippets, tickets: tickets}
}

// Create stores a new snippet.
func (s *SnippetService) Create(ctx context.Context, name, content, createdBy string) (*domain.Snippet, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(content) == "" {
		return nil, util.NewValidationError("snippet name and content are required", nil)
	}
	snippet := &domain.Snippet{Name: name, Content: content, CreatedBy: createdBy}
	if err := s.snippets.Create(ctx, snippet); err != nil {
		return nil, err
	}
	return snippet, nil
}

// Update replaces a snippet's content.
func (s *SnippetService) Update(ctx context.Context, name, content string) error {
	if strings.TrimSpace(content) == "" {
		return util.NewValidationError("snippet content is required", nil)
	}
	return s.snippets.Update(ctx, name, content)
}

// Delete removes a snippet.
func (s *SnippetService) Delete(ctx context.Context, name string) error {
	return s.snippets.Delete(ctx, name)
}

// Get returns one snippet by name.
func (s *SnippetService) Get(ctx context.Context, name string) (*domain.Snippet, error) {
	return s.snippets.GetByName(ctx, name)
}

// List returns every snippet, ordered by name.
func (s *SnippetService) List(ctx context.Context) ([]domain.Snippet, error) {
	return s.snippets.List(ctx)
}

// Deliver sends a snippet's content into a ticket as a staff reply.
func (s *SnippetService) Deliver(ctx context.Context, ticketID, snippetName, staffName string) error {
	snippet, err := s.snippets.GetByName(ctx, snippetName)
	if err != nil {
		return err
	}
	return s.tickets.RelayStaffReply(ctx, ticketID, staffName, snippet.Content)
}
