package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kumanday/OmniLearn/internal/domain"
	pkgkafka "github.com/kumanday/OmniLearn/pkg/kafka"
	"github.com/kumanday/OmniLearn/pkg/logger"
)

// Kafka topics for OmniLearn domain events.
var (
	TopicUserRegistered         = pkgkafka.Topic("user.registered")
	TopicKnowledgeTreeGenerated = pkgkafka.Topic("knowledge_tree.generated")
	TopicLessonGenerated        = pkgkafka.Topic("lesson.generated")
	TopicAnswerEvaluated        = pkgkafka.Topic("question.answer_evaluated")
)

// Aggregate types.
const (
	AggregateTypeUser          = "user"
	AggregateTypeKnowledgeTree = "knowledge_tree"
	AggregateTypeLesson        = "lesson"
	AggregateTypeQuestion      = "question"
)

// Source identifies events written by this service.
const Source = "omnilearn-api"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Method string `json:"method"`
}

// KnowledgeTreeGeneratedData is the payload for a knowledge_tree.generated
// event.
type KnowledgeTreeGeneratedData struct {
	ID              string `json:"id"`
	Topic           string `json:"topic"`
	CreatedBy       string `json:"created_by,omitempty"`
	SectionCount    int    `json:"section_count"`
	SubsectionCount int    `json:"subsection_count"`
}

// LessonGeneratedData is the payload for a lesson.generated event.
type LessonGeneratedData struct {
	ID           string `json:"id"`
	SubsectionID string `json:"subsection_id"`
	SectionID    string `json:"section_id"`
	ContentBytes int    `json:"content_bytes"`
}

// AnswerEvaluatedData is the payload for a question.answer_evaluated event.
type AnswerEvaluatedData struct {
	QuestionID string `json:"question_id"`
	SectionID  string `json:"section_id"`
	UserID     string `json:"user_id"`
	IsCorrect  bool   `json:"is_correct"`
}

// Registration methods carried in UserRegisteredData.
const (
	MethodPassword = "password"
	MethodGoogle   = "google"
)

// Publisher writes an event envelope to a topic. *pkgkafka.Producer
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes OmniLearn domain events. A Producer built with a nil
// Publisher discards every event, which is how the service runs when Kafka
// is disabled.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// Enabled reports whether events leave the process.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if !p.Enabled() {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, Source, pkgkafka.Aggregate{Type: aggregateType, ID: aggregateID}, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if uid := logger.UserIDFromContext(ctx); uid != "" {
		evt.SetMetadata("actor_id", uid)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published domain event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User, method string) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, UserRegisteredData{
		ID:     user.ID,
		Email:  user.Email,
		Method: method,
	})
}

// PublishKnowledgeTreeGenerated publishes a knowledge_tree.generated event.
func (p *Producer) PublishKnowledgeTreeGenerated(ctx context.Context, tree *domain.KnowledgeTree) error {
	subsections := 0
	for _, s := range tree.Sections {
		subsections += len(s.Subsections)
	}
	return p.publish(ctx, TopicKnowledgeTreeGenerated, tree.ID, AggregateTypeKnowledgeTree, KnowledgeTreeGeneratedData{
		ID:              tree.ID,
		Topic:           tree.Topic,
		CreatedBy:       tree.CreatedBy,
		SectionCount:    len(tree.Sections),
		SubsectionCount: subsections,
	})
}

// PublishLessonGenerated publishes a lesson.generated event.
func (p *Producer) PublishLessonGenerated(ctx context.Context, lesson *domain.Lesson) error {
	return p.publish(ctx, TopicLessonGenerated, lesson.ID, AggregateTypeLesson, LessonGeneratedData{
		ID:           lesson.ID,
		SubsectionID: lesson.SubsectionID,
		SectionID:    lesson.SectionID,
		ContentBytes: len(lesson.Content),
	})
}

// PublishAnswerEvaluated publishes a question.answer_evaluated event.
func (p *Producer) PublishAnswerEvaluated(ctx context.Context, q *domain.Question, userID string, fb *domain.AnswerFeedback) error {
	return p.publish(ctx, TopicAnswerEvaluated, q.ID, AggregateTypeQuestion, AnswerEvaluatedData{
		QuestionID: q.ID,
		SectionID:  q.SectionID,
		UserID:     userID,
		IsCorrect:  fb.IsCorrect,
	})
}
