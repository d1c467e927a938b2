package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/event"
	"github.com/kumanday/OmniLearn/internal/repository"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
	"github.com/kumanday/OmniLearn/pkg/sanitize"
)

// LessonService implements lesson generation and retrieval. The cache is
// optional; a nil cache sends every read to PostgreSQL.
type LessonService struct {
	lessons   repository.LessonRepository
	trees     repository.KnowledgeTreeRepository
	cache     repository.LessonCache
	generator *Generator
	sanitizer *sanitize.HTML
	producer  *event.Producer
	logger    *slog.Logger
}

// NewLessonService creates a new lesson service.
func NewLessonService(
	lessons repository.LessonRepository,
	trees repository.KnowledgeTreeRepository,
	cache repository.LessonCache,
	generator *Generator,
	sanitizer *sanitize.HTML,
	producer *event.Producer,
	logger *slog.Logger,
) *LessonService {
	return &LessonService{
		lessons:   lessons,
		trees:     trees,
		cache:     cache,
		generator: generator,
		sanitizer: sanitizer,
		producer:  producer,
		logger:    logger,
	}
}

// Generate writes (or rewrites) the lesson of a subsection.
func (s *LessonService) Generate(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	sc, err := s.trees.GetSubsection(ctx, subsectionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.generator.Lesson(ctx, sc)
	if err != nil {
		return nil, err
	}
	content := s.sanitizer.Sanitize(raw)
	if strings.TrimSpace(content) == "" {
		return nil, generationError(fmt.Errorf("%w: lesson is empty after sanitizing", domain.ErrMalformedGeneration))
	}

	now := time.Now().UTC()
	lesson := &domain.Lesson{
		ID:             uuid.New().String(),
		SubsectionID:   sc.ID,
		SectionID:      sc.SectionID,
		SectionTitle:   sc.SectionTitle,
		Content:        content,
		MultimediaURLs: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.lessons.Upsert(ctx, lesson); err != nil {
		return nil, fmt.Errorf("store lesson: %w", err)
	}
	s.cacheLesson(ctx, lesson)

	if err := s.producer.PublishLessonGenerated(ctx, lesson); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish lesson.generated event",
			slog.String("lesson_id", lesson.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "lesson generated",
		slog.String("lesson_id", lesson.ID),
		slog.String("subsection_id", lesson.SubsectionID),
	)

	lesson.Links = domain.LessonLinks(lesson)
	return lesson, nil
}

// Get returns a lesson by ID.
func (s *LessonService) Get(ctx context.Context, id string) (*domain.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lesson.Links = domain.LessonLinks(lesson)
	return lesson, nil
}

// GetBySubsection returns the lesson of a subsection, generating it on first
// access.
func (s *LessonService) GetBySubsection(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	if lesson := s.cachedLesson(ctx, subsectionID); lesson != nil {
		lesson.Links = domain.LessonLinks(lesson)
		return lesson, nil
	}

	lesson, err := s.lessons.GetBySubsection(ctx, subsectionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.Generate(ctx, subsectionID)
		}
		return nil, err
	}

	s.cacheLesson(ctx, lesson)
	lesson.Links = domain.LessonLinks(lesson)
	return lesson, nil
}

// cachedLesson treats a cache failure as a miss.
func (s *LessonService) cachedLesson(ctx context.Context, subsectionID string) *domain.Lesson {
	if s.cache == nil {
		return nil
	}
	lesson, err := s.cache.Get(ctx, subsectionID)
	if err != nil {
		s.logger.WarnContext(ctx, "lesson cache read failed",
			slog.String("subsection_id", subsectionID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return lesson
}

// cacheLesson stores lesson under its subsection. When the write fails the
// entry is evicted instead, so a regenerated lesson never leaves the previous
// version readable from the cache.
func (s *LessonService) cacheLesson(ctx context.Context, lesson *domain.Lesson) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, lesson)
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "lesson cache write failed",
		slog.String("subsection_id", lesson.SubsectionID),
		slog.String("error", err.Error()),
	)
	if err := s.cache.Delete(ctx, lesson.SubsectionID); err != nil {
		s.logger.WarnContext(ctx, "lesson cache eviction failed",
			slog.String("subsection_id", lesson.SubsectionID),
			slog.String("error", err.Error()),
		)
	}
}
