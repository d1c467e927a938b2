package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/event"
	pkgkafka "github.com/kumanday/OmniLearn/pkg/kafka"
	"github.com/kumanday/OmniLearn/pkg/pagination"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) CreateWithProgress(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*domain.User, error) {
	args := m.Called(ctx, email, googleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// --- Mock Progress Repository ---

type mockProgressRepository struct {
	mock.Mock
}

func (m *mockProgressRepository) Get(ctx context.Context, userID string) (*domain.Progress, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Progress), args.Error(1)
}

// Update applies fn to the progress returned by the expectation, the way
// the PostgreSQL implementation applies it to the locked row.
func (m *mockProgressRepository) Update(ctx context.Context, userID string, fn func(*domain.Progress)) (*domain.Progress, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	p := args.Get(0).(*domain.Progress)
	fn(p)
	return p, args.Error(1)
}

// --- Mock Knowledge Tree Repository ---

type mockTreeRepository struct {
	mock.Mock
}

func (m *mockTreeRepository) Create(ctx context.Context, tree *domain.KnowledgeTree) error {
	args := m.Called(ctx, tree)
	return args.Error(0)
}

func (m *mockTreeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeTree, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeTree), args.Error(1)
}

func (m *mockTreeRepository) ListByCreator(ctx context.Context, userID string, params pagination.Params) ([]domain.TreeSummary, int, error) {
	args := m.Called(ctx, userID, params)
	return args.Get(0).([]domain.TreeSummary), args.Int(1), args.Error(2)
}

func (m *mockTreeRepository) GetSection(ctx context.Context, id string) (*domain.Section, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Section), args.Error(1)
}

func (m *mockTreeRepository) GetSubsection(ctx context.Context, id string) (*domain.SubsectionContext, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubsectionContext), args.Error(1)
}

// --- Mock Lesson Repository ---

type mockLessonRepository struct {
	mock.Mock
}

func (m *mockLessonRepository) Upsert(ctx context.Context, lesson *domain.Lesson) error {
	args := m.Called(ctx, lesson)
	return args.Error(0)
}

func (m *mockLessonRepository) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lesson), args.Error(1)
}

func (m *mockLessonRepository) GetBySubsection(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	args := m.Called(ctx, subsectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lesson), args.Error(1)
}

// --- Mock Question Repository ---

type mockQuestionRepository struct {
	mock.Mock
}

func (m *mockQuestionRepository) CreateBatch(ctx context.Context, questions []*domain.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *mockQuestionRepository) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

func (m *mockQuestionRepository) ListBySection(ctx context.Context, sectionID, difficulty string) ([]domain.Question, error) {
	args := m.Called(ctx, sectionID, difficulty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Question), args.Error(1)
}

// --- Mock Lesson Cache ---

type mockLessonCache struct {
	mock.Mock
}

func (m *mockLessonCache) Get(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	args := m.Called(ctx, subsectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lesson), args.Error(1)
}

func (m *mockLessonCache) Set(ctx context.Context, lesson *domain.Lesson) error {
	args := m.Called(ctx, lesson)
	return args.Error(0)
}

func (m *mockLessonCache) Delete(ctx context.Context, subsectionID string) error {
	args := m.Called(ctx, subsectionID)
	return args.Error(0)
}

// --- Mock Identity Verifier ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*domain.ExternalIdentity, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExternalIdentity), args.Error(1)
}

// --- Recording event publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

// --- Test Helpers ---

const testSecret = "test-secret-key-for-testing-0123456789"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(testSecret, 15*time.Minute)
}

func newTestHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(4)
}
