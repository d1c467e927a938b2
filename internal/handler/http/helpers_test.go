package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/event"
	llmmock "github.com/kumanday/OmniLearn/internal/llm/mock"
	"github.com/kumanday/OmniLearn/internal/oauth"
	"github.com/kumanday/OmniLearn/internal/service"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
	"github.com/kumanday/OmniLearn/pkg/health"
	"github.com/kumanday/OmniLearn/pkg/httputil"
	"github.com/kumanday/OmniLearn/pkg/middleware"
	"github.com/kumanday/OmniLearn/pkg/pagination"
	"github.com/kumanday/OmniLearn/pkg/sanitize"
)

// ============================================================================
// In-memory user store
// ============================================================================

type memUsers struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	progress map[string]*domain.Progress
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*domain.User{}, progress: map[string]*domain.Progress{}}
}

func (m *memUsers) CreateWithProgress(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	m.progress[u.ID] = domain.NewProgress(u.ID)
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUsers) FindByEmailOrGoogleID(_ context.Context, email, googleID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || (googleID != "" && u.GoogleID == googleID) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

type memProgress struct{ *memUsers }

func (m memProgress) Get(_ context.Context, userID string) (*domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[userID]
	if !ok {
		return nil, apperrors.NotFound("progress", userID)
	}
	return p, nil
}

func (m memProgress) Update(_ context.Context, userID string, fn func(*domain.Progress)) (*domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[userID]
	if !ok {
		p = domain.NewProgress(userID)
		m.progress[userID] = p
	}
	fn(p)
	p.UpdatedAt = time.Now().UTC()
	return p, nil
}

// ============================================================================
// Mock content repositories
// ============================================================================

type mockTreeRepo struct{ mock.Mock }

func (m *mockTreeRepo) Create(ctx context.Context, tree *domain.KnowledgeTree) error {
	return m.Called(ctx, tree).Error(0)
}

func (m *mockTreeRepo) GetByID(ctx context.Context, id string) (*domain.KnowledgeTree, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeTree), args.Error(1)
}

func (m *mockTreeRepo) ListByCreator(ctx context.Context, userID string, params pagination.Params) ([]domain.TreeSummary, int, error) {
	args := m.Called(ctx, userID, params)
	return args.Get(0).([]domain.TreeSummary), args.Int(1), args.Error(2)
}

func (m *mockTreeRepo) GetSection(ctx context.Context, id string) (*domain.Section, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Section), args.Error(1)
}

func (m *mockTreeRepo) GetSubsection(ctx context.Context, id string) (*domain.SubsectionContext, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubsectionContext), args.Error(1)
}

type mockLessonRepo struct{ mock.Mock }

func (m *mockLessonRepo) Upsert(ctx context.Context, lesson *domain.Lesson) error {
	return m.Called(ctx, lesson).Error(0)
}

func (m *mockLessonRepo) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lesson), args.Error(1)
}

func (m *mockLessonRepo) GetBySubsection(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	args := m.Called(ctx, subsectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lesson), args.Error(1)
}

type mockQuestionRepo struct{ mock.Mock }

func (m *mockQuestionRepo) CreateBatch(ctx context.Context, questions []*domain.Question) error {
	return m.Called(ctx, questions).Error(0)
}

func (m *mockQuestionRepo) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

func (m *mockQuestionRepo) ListBySection(ctx context.Context, sectionID, difficulty string) ([]domain.Question, error) {
	args := m.Called(ctx, sectionID, difficulty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Question), args.Error(1)
}

type stubVerifier struct {
	identity *domain.ExternalIdentity
	err      error
}

func (v stubVerifier) Verify(context.Context, string) (*domain.ExternalIdentity, error) {
	return v.identity, v.err
}

// ============================================================================
// Test server
// ============================================================================

const (
	testSecret     = "handler-test-secret-0123456789abcdef"
	testCookieName = "ol_jwt"
)

type testAPI struct {
	handler   http.Handler
	users     *memUsers
	trees     *mockTreeRepo
	lessons   *mockLessonRepo
	questions *mockQuestionRepo
	llm       *llmmock.Provider
}

type apiOption func(*RouterConfig, *stubVerifier)

func withLimiter(l *middleware.RateLimiter) apiOption {
	return func(cfg *RouterConfig, _ *stubVerifier) { cfg.Limiter = l }
}

func withGoogleIdentity(id *domain.ExternalIdentity) apiOption {
	return func(_ *RouterConfig, v *stubVerifier) {
		v.identity = id
		v.err = nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	logger := testLogger()

	api := &testAPI{
		users:     newMemUsers(),
		trees:     new(mockTreeRepo),
		lessons:   new(mockLessonRepo),
		questions: new(mockQuestionRepo),
		llm:       llmmock.NewProvider(),
	}

	cfg := RouterConfig{Cookie: auth.CookieConfig{Name: testCookieName}, CORSOrigins: []string{"http://localhost:3000"}}
	verifier := stubVerifier{err: oauth.ErrNotConfigured}
	for _, opt := range opts {
		opt(&cfg, &verifier)
	}

	producer := event.NewProducer(nil, logger)
	generator := service.NewGenerator(api.llm, logger)
	svcs := Services{
		Auth: service.NewAuthService(api.users, auth.NewTokenManager(testSecret, time.Hour),
			auth.NewPasswordHasher(4), verifier, producer, testCookieName, logger),
		Users:     service.NewUserService(api.users, memProgress{api.users}, api.trees, logger),
		Trees:     service.NewKnowledgeTreeService(api.trees, generator, producer, logger),
		Lessons:   service.NewLessonService(api.lessons, api.trees, nil, generator, sanitize.NewHTML(), producer, logger),
		Questions: service.NewQuestionService(api.questions, api.trees, generator, producer, logger),
	}

	api.handler = NewRouter(svcs, health.NewHandler(), cfg, logger)
	return api
}

func (a *testAPI) do(method, path, body string, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, mod := range mods {
		mod(req)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// register creates an account through the API and returns its session.
func (a *testAPI) register(t *testing.T, email string) AuthResponse {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/register",
		`{"email":"`+email+`","name":"Ada","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error, rec.Body.String())
	return resp.Error
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	return nil
}
