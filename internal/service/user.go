package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/repository"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

// UserService implements account lookups and learning progress.
type UserService struct {
	users    repository.UserRepository
	progress repository.ProgressRepository
	trees    repository.KnowledgeTreeRepository
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	progress repository.ProgressRepository,
	trees repository.KnowledgeTreeRepository,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		progress: progress,
		trees:    trees,
		logger:   logger,
	}
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetProgress returns the progress of userID. Callers may only read their
// own progress.
func (s *UserService) GetProgress(ctx context.Context, callerID, userID string) (*domain.Progress, error) {
	if callerID != userID {
		return nil, apperrors.Forbidden("cannot access another user's progress")
	}
	return s.progress.Get(ctx, userID)
}

// UpdateProgress records a subsection result for userID.
func (s *UserService) UpdateProgress(ctx context.Context, callerID, userID string, upd domain.ProgressUpdate) (*domain.Progress, error) {
	if callerID != userID {
		return nil, apperrors.Forbidden("cannot update another user's progress")
	}
	if upd.SubsectionID == "" {
		return nil, apperrors.InvalidInput("subsection_id is required")
	}
	if upd.Score != nil && (math.IsNaN(*upd.Score) || math.IsInf(*upd.Score, 0)) {
		return nil, apperrors.InvalidInput("score must be a finite number")
	}

	if _, err := s.trees.GetSubsection(ctx, upd.SubsectionID); err != nil {
		return nil, err
	}

	p, err := s.progress.Update(ctx, userID, func(p *domain.Progress) {
		p.Apply(upd)
	})
	if err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}

	s.logger.InfoContext(ctx, "progress updated",
		slog.String("user_id", userID),
		slog.String("subsection_id", upd.SubsectionID),
		slog.Bool("completed", upd.Completed),
	)
	return p, nil
}
