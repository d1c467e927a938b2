package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/event"
	"github.com/kumanday/OmniLearn/internal/repository"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

// QuestionService implements practice question generation and grading.
type QuestionService struct {
	questions repository.QuestionRepository
	trees     repository.KnowledgeTreeRepository
	generator *Generator
	producer  *event.Producer
	logger    *slog.Logger
}

// NewQuestionService creates a new question service.
func NewQuestionService(
	questions repository.QuestionRepository,
	trees repository.KnowledgeTreeRepository,
	generator *Generator,
	producer *event.Producer,
	logger *slog.Logger,
) *QuestionService {
	return &QuestionService{
		questions: questions,
		trees:     trees,
		generator: generator,
		producer:  producer,
		logger:    logger,
	}
}

// EvaluateInput holds a submitted answer.
type EvaluateInput struct {
	QuestionID string
	Answer     string
	UserID     string
}

func normalizeDifficulty(d string) (string, error) {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return domain.DifficultyMedium, nil
	}
	if !domain.IsValidDifficulty(d) {
		return "", apperrors.InvalidInput(fmt.Sprintf("difficulty must be one of %v", domain.ValidDifficulties()))
	}
	return d, nil
}

// Generate creates practice questions for a section. Difficulty defaults to
// medium.
func (s *QuestionService) Generate(ctx context.Context, sectionID, difficulty string) ([]domain.Question, error) {
	difficulty, err := normalizeDifficulty(difficulty)
	if err != nil {
		return nil, err
	}

	section, err := s.trees.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	generated, err := s.generator.Questions(ctx, section, difficulty)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := make([]*domain.Question, 0, len(generated))
	for _, g := range generated {
		batch = append(batch, &domain.Question{
			ID:            uuid.New().String(),
			SectionID:     section.ID,
			Text:          g.Text,
			Difficulty:    g.Difficulty,
			CorrectAnswer: g.CorrectAnswer,
			CreatedAt:     now,
		})
	}
	if err := s.questions.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("store questions: %w", err)
	}

	s.logger.InfoContext(ctx, "questions generated",
		slog.String("section_id", section.ID),
		slog.String("difficulty", difficulty),
		slog.Int("count", len(batch)),
	)

	out := make([]domain.Question, len(batch))
	for i, q := range batch {
		out[i] = *q
	}
	return out, nil
}

// ListBySection returns the stored questions of a section, optionally
// filtered by difficulty.
func (s *QuestionService) ListBySection(ctx context.Context, sectionID, difficulty string) ([]domain.Question, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty != "" && !domain.IsValidDifficulty(difficulty) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("difficulty must be one of %v", domain.ValidDifficulties()))
	}
	if _, err := s.trees.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListBySection(ctx, sectionID, difficulty)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	return questions, nil
}

// Evaluate grades an answer. The correct answer is only revealed when the
// submitted one is wrong.
func (s *QuestionService) Evaluate(ctx context.Context, input EvaluateInput) (*domain.AnswerFeedback, error) {
	answer := strings.TrimSpace(input.Answer)
	if answer == "" {
		return nil, apperrors.InvalidInput("answer is required")
	}

	q, err := s.questions.GetByID(ctx, input.QuestionID)
	if err != nil {
		return nil, err
	}

	ev, err := s.generator.Evaluate(ctx, q, answer)
	if err != nil {
		return nil, err
	}
	fb := domain.NewAnswerFeedback(q, *ev)

	if err := s.producer.PublishAnswerEvaluated(ctx, q, input.UserID, fb); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish question.answer_evaluated event",
			slog.String("question_id", q.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "answer evaluated",
		slog.String("question_id", q.ID),
		slog.String("user_id", input.UserID),
		slog.Bool("correct", fb.IsCorrect),
	)
	return fb, nil
}
