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
	"github.com/kumanday/OmniLearn/pkg/pagination"
	"github.com/kumanday/OmniLearn/pkg/slug"
)

const maxTopicLength = 200

// KnowledgeTreeService implements knowledge tree generation and browsing.
type KnowledgeTreeService struct {
	trees     repository.KnowledgeTreeRepository
	generator *Generator
	producer  *event.Producer
	logger    *slog.Logger
}

// NewKnowledgeTreeService creates a new knowledge tree service.
func NewKnowledgeTreeService(
	trees repository.KnowledgeTreeRepository,
	generator *Generator,
	producer *event.Producer,
	logger *slog.Logger,
) *KnowledgeTreeService {
	return &KnowledgeTreeService{
		trees:     trees,
		generator: generator,
		producer:  producer,
		logger:    logger,
	}
}

// Generate asks the model for an outline of topic and stores it as a new
// tree owned by userID.
func (s *KnowledgeTreeService) Generate(ctx context.Context, topic, userID string) (*domain.KnowledgeTree, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.InvalidInput("topic is required")
	}
	if len(topic) > maxTopicLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("topic must be at most %d characters", maxTopicLength))
	}

	outline, err := s.generator.KnowledgeTree(ctx, topic)
	if err != nil {
		return nil, err
	}

	tree := buildTree(topic, userID, outline)
	if err := s.trees.Create(ctx, tree); err != nil {
		return nil, fmt.Errorf("store knowledge tree: %w", err)
	}

	if err := s.producer.PublishKnowledgeTreeGenerated(ctx, tree); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish knowledge_tree.generated event",
			slog.String("tree_id", tree.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "knowledge tree generated",
		slog.String("tree_id", tree.ID),
		slog.String("user_id", userID),
		slog.Int("sections", len(tree.Sections)),
	)

	domain.AttachTreeLinks(tree)
	return tree, nil
}

func buildTree(topic, userID string, outline *domain.Outline) *domain.KnowledgeTree {
	tree := &domain.KnowledgeTree{
		ID:        uuid.New().String(),
		Topic:     topic,
		Slug:      slug.Generate(topic),
		CreatedBy: userID,
		CreatedAt: time.Now().UTC(),
		Sections:  make([]*domain.Section, 0, len(outline.Sections)),
	}

	for i, sec := range outline.Sections {
		section := &domain.Section{
			ID:          uuid.New().String(),
			TreeID:      tree.ID,
			Title:       strings.TrimSpace(sec.Title),
			Description: strings.TrimSpace(sec.Description),
			Position:    i,
			Subsections: make([]*domain.Subsection, 0, len(sec.Subsections)),
		}
		for j, osub := range sec.Subsections {
			section.Subsections = append(section.Subsections, &domain.Subsection{
				ID:          uuid.New().String(),
				SectionID:   section.ID,
				Title:       strings.TrimSpace(osub.Title),
				Description: strings.TrimSpace(osub.Description),
				Position:    j,
			})
		}
		tree.Sections = append(tree.Sections, section)
	}
	return tree
}

// Get returns a tree with its full outline and navigation links.
func (s *KnowledgeTreeService) Get(ctx context.Context, id string) (*domain.KnowledgeTree, error) {
	tree, err := s.trees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	domain.AttachTreeLinks(tree)
	return tree, nil
}

// List returns one page of the trees userID generated, newest first.
func (s *KnowledgeTreeService) List(ctx context.Context, userID string, params pagination.Params) (pagination.Result[domain.TreeSummary], error) {
	trees, total, err := s.trees.ListByCreator(ctx, userID, params)
	if err != nil {
		return pagination.Result[domain.TreeSummary]{}, fmt.Errorf("list knowledge trees: %w", err)
	}
	for i := range trees {
		trees[i].Links = domain.SummaryLinks(&trees[i])
	}
	return pagination.NewResult(trees, total, params), nil
}
