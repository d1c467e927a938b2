package repository

import (
	"context"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/pkg/pagination"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// CreateWithProgress inserts the user and its empty progress record in
	// one transaction. A duplicate email or Google ID is ErrAlreadyExists.
	CreateWithProgress(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByEmailOrGoogleID returns the user matching either key. When two
	// users match, the one linked to googleID wins.
	FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error
}

// ProgressRepository defines the interface for learning progress.
type ProgressRepository interface {
	// Get returns the progress of userID.
	Get(ctx context.Context, userID string) (*domain.Progress, error)

	// Update loads the progress of userID under a row lock, applies fn and
	// stores the result. A missing record starts out empty.
	Update(ctx context.Context, userID string, fn func(*domain.Progress)) (*domain.Progress, error)
}

// KnowledgeTreeRepository defines the interface for knowledge tree storage.
type KnowledgeTreeRepository interface {
	// Create inserts the tree with all sections and subsections atomically.
	Create(ctx context.Context, tree *domain.KnowledgeTree) error

	// GetByID returns a tree with its full outline.
	GetByID(ctx context.Context, id string) (*domain.KnowledgeTree, error)

	// ListByCreator returns one page of the trees created by userID, newest
	// first, and the total count.
	ListByCreator(ctx context.Context, userID string, params pagination.Params) ([]domain.TreeSummary, int, error)

	// GetSection returns a section without its subsections.
	GetSection(ctx context.Context, id string) (*domain.Section, error)

	// GetSubsection returns a subsection with its parent section's title.
	GetSubsection(ctx context.Context, id string) (*domain.SubsectionContext, error)
}

// LessonRepository defines the interface for lesson storage.
type LessonRepository interface {
	// Upsert stores the lesson of a subsection, replacing any existing one.
	// The stored ID and creation time are written back to lesson.
	Upsert(ctx context.Context, lesson *domain.Lesson) error

	// GetByID retrieves a lesson by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Lesson, error)

	// GetBySubsection retrieves the lesson generated for a subsection.
	GetBySubsection(ctx context.Context, subsectionID string) (*domain.Lesson, error)
}

// QuestionRepository defines the interface for practice question storage.
type QuestionRepository interface {
	// CreateBatch inserts all questions in one transaction.
	CreateBatch(ctx context.Context, questions []*domain.Question) error

	// GetByID retrieves a question by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Question, error)

	// ListBySection returns the questions of a section, optionally filtered
	// by difficulty ("" for all).
	ListBySection(ctx context.Context, sectionID, difficulty string) ([]domain.Question, error)
}

// LessonCache caches lessons by subsection ID. A miss is (nil, nil).
type LessonCache interface {
	Get(ctx context.Context, subsectionID string) (*domain.Lesson, error)
	Set(ctx context.Context, lesson *domain.Lesson) error
	Delete(ctx context.Context, subsectionID string) error
}
