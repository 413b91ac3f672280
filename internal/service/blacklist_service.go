package service

import (
	"context"
	"strings"

	"github.com/spec-kit/modmail-service/internal/domain"
	"github.com/spec-kit/modmail-service/internal/repository"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// BlacklistService manages the set of users whose messages are ignored.
type BlacklistService struct {
	blacklist repository.BlacklistRepository
}

// NewBlacklistService constructs the service.
func NewBlacklistService(blacklist repository.BlacklistRepository) *BlacklistService {
	return &BlacklistService{blacklist: blacklist}
}

// Add blacklists a user. Re-adding updates the reason.
func (s *BlacklistService) Add(ctx context.Context, userID, reason, addedBy string) (*domain.BlacklistEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, util.NewValidationError("user id is required", nil)
	}
	entry := &domain.BlacklistEntry{UserID: userID, Reason: reason, AddedBy: addedBy}
	if err := s.blacklist.Add(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Remove lifts a user's blacklisting.
func (s *BlacklistService) Remove(ctx context.Context, userID string) error {
	return s.blacklist.Remove(ctx, userID)
}

// List returns every blacklisted user.
func (s *BlacklistService) List(ctx context.Context) ([]domain.BlacklistEntry, error) {
	return s.blacklist.List(ctx)
}
