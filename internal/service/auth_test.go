package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/oauth"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

// memUserRepository is an in-memory UserRepository enforcing the same unique
// keys as the users table.
type memUserRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	creates int
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{byID: map[string]*domain.User{}}
}

func (r *memUserRepository) CreateWithProgress(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		if u.GoogleID != "" && existing.GoogleID == u.GoogleID {
			return apperrors.AlreadyExists("user", "google_id", u.GoogleID)
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.creates++
	return nil
}

func (r *memUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.NotFound("user", id)
}

func (r *memUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepository) FindByEmailOrGoogleID(_ context.Context, email, googleID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var byEmail *domain.User
	for _, u := range r.byID {
		if googleID != "" && u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
		if u.Email == email {
			byEmail = u
		}
	}
	if byEmail == nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *byEmail
	return &cp, nil
}

func (r *memUserRepository) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func newTestAuthService(users *memUserRepository, verifier IdentityVerifier) (*AuthService, *recordingPublisher) {
	producer, pub := newTestProducer()
	return NewAuthService(users, newTestTokenManager(), newTestHasher(), verifier, producer, "ol_jwt", newTestLogger()), pub
}

func requestWithBearer(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func assertAppCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.Status)
}

// ---------------------------------------------------------------------------
// Register / PasswordLogin / ResolveCurrentUser
// ---------------------------------------------------------------------------

func TestAuthService_RegisterLoginResolve_EndToEnd(t *testing.T) {
	users := newMemUserRepository()
	svc, pub := newTestAuthService(users, nil)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Email: "alice@example.com", Name: "Alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, res.TokenType)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, []string{"omnilearn.user.registered"}, pub.Topics())

	user, err := svc.ResolveCurrentUser(requestWithBearer(res.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)

	_, err = svc.PasswordLogin(ctx, "alice@example.com", "wrong")
	assertAppCode(t, err, CodeInvalidCredentials, http.StatusUnauthorized)

	login, err := svc.PasswordLogin(ctx, "Alice@Example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, login.User.ID)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "bob@example.com", Name: "Bob", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "bob@example.com", Name: "Bobby", Password: "password2"})
	assertAppCode(t, err, CodeDuplicateAccount, http.StatusConflict)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.Equal(t, 1, users.creates)
}

func TestAuthService_Register_StorageConflictIsDuplicate(t *testing.T) {
	repo := new(mockUserRepository)
	producer, _ := newTestProducer()
	svc := NewAuthService(repo, newTestTokenManager(), newTestHasher(), nil, producer, "ol_jwt", newTestLogger())

	repo.On("GetByEmail", mock.Anything, "carol@example.com").Return(nil, apperrors.ErrNotFound)
	repo.On("CreateWithProgress", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "carol@example.com"))

	_, err := svc.Register(context.Background(), RegisterInput{Email: "carol@example.com", Name: "Carol", Password: "password1"})

	assertAppCode(t, err, CodeDuplicateAccount, http.StatusConflict)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newTestAuthService(newMemUserRepository(), nil)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{name: "missing email", input: RegisterInput{Name: "A", Password: "password1"}},
		{name: "blank name", input: RegisterInput{Email: "a@example.com", Name: "  ", Password: "password1"}},
		{name: "short password", input: RegisterInput{Email: "a@example.com", Name: "A", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestAuthService_Register_StoresSaltedHash(t *testing.T) {
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, nil)
	ctx := context.Background()

	a, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "same-password"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Name: "B", Password: "same-password"})
	require.NoError(t, err)

	ua, _ := users.GetByID(ctx, a.User.ID)
	ub, _ := users.GetByID(ctx, b.User.ID)
	assert.NotEqual(t, ua.PasswordHash, ub.PasswordHash)
	assert.NotEqual(t, "same-password", ua.PasswordHash)
}

func TestAuthService_PasswordLogin_FailuresAreIndistinguishable(t *testing.T) {
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "dave@example.com", Name: "Dave", Password: "password1"})
	require.NoError(t, err)
	require.NoError(t, users.CreateWithProgress(ctx, &domain.User{ID: "g-only", Email: "gina@example.com", GoogleID: "sub-g"}))

	cases := map[string][2]string{
		"unknown email":  {"nobody@example.com", "password1"},
		"wrong password": {"dave@example.com", "password2"},
		"google only":    {"gina@example.com", "anything1"},
		"empty password": {"dave@example.com", ""},
	}
	var messages []string
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PasswordLogin(ctx, c[0], c[1])
			assertAppCode(t, err, CodeInvalidCredentials, http.StatusUnauthorized)
			messages = append(messages, err.Error())
		})
	}
	for _, m := range messages {
		assert.Equal(t, messages[0], m)
	}
}

func TestAuthService_ResolveCurrentUser_Failures(t *testing.T) {
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, nil)
	tokens := newTestTokenManager()

	ghost, err := tokens.Issue("deleted-user")
	require.NoError(t, err)
	expired := auth.NewTokenManager(testSecret, time.Nanosecond)
	old, err := expired.Issue("u-1")
	require.NoError(t, err)
	time.Sleep(2 * time.Second)
	forged, err := auth.NewTokenManager("another-secret-another-secret-123", time.Hour).Issue("u-1")
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "no credential", req: httptest.NewRequest(http.MethodGet, "/", nil)},
		{name: "garbage token", req: requestWithBearer("not-a-jwt")},
		{name: "expired token", req: requestWithBearer(old)},
		{name: "foreign signature", req: requestWithBearer(forged)},
		{name: "unknown subject", req: requestWithBearer(ghost)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ResolveCurrentUser(tt.req)
			assertAppCode(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
			assert.Contains(t, err.Error(), "not authenticated")
		})
	}
}

func TestAuthService_ResolveCurrentUser_HeaderBeatsCookie(t *testing.T) {
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, nil)
	ctx := context.Background()

	a, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "password1"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Name: "B", Password: "password1"})
	require.NoError(t, err)

	r := requestWithBearer(a.AccessToken)
	r.AddCookie(&http.Cookie{Name: "ol_jwt", Value: b.AccessToken})

	user, err := svc.ResolveCurrentUser(r)
	require.NoError(t, err)
	assert.Equal(t, a.User.ID, user.ID)

	cookieOnly := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieOnly.AddCookie(&http.Cookie{Name: "ol_jwt", Value: b.AccessToken})
	user, err = svc.ResolveCurrentUser(cookieOnly)
	require.NoError(t, err)
	assert.Equal(t, b.User.ID, user.ID)
}

// ---------------------------------------------------------------------------
// ExternalIdentityExchange / GoogleLogin
// ---------------------------------------------------------------------------

func TestAuthService_ExternalIdentityExchange_CreatesThenUpdates(t *testing.T) {
	users := newMemUserRepository()
	svc, pub := newTestAuthService(users, nil)
	ctx := context.Background()

	first, err := svc.ExternalIdentityExchange(ctx, domain.ExternalIdentity{
		Subject: "sub-1", Email: "erin@example.com", Name: "Erin", PictureURL: "https://img/1.png",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, users.creates)
	assert.Equal(t, []string{"omnilearn.user.registered"}, pub.Topics())

	second, err := svc.ExternalIdentityExchange(ctx, domain.ExternalIdentity{
		Subject: "sub-1", Email: "erin@example.com", Name: "Erin Smith",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, users.creates)
	assert.Equal(t, first.User.ID, second.User.ID)
	stored, _ := users.GetByID(ctx, first.User.ID)
	assert.Equal(t, "Erin Smith", stored.Name)
	assert.Equal(t, "https://img/1.png", stored.PictureURL)
	assert.Empty(t, stored.PasswordHash)
}

func TestAuthService_ExternalIdentityExchange_LinksPasswordAccount(t *testing.T) {
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Email: "frank@example.com", Name: "Frank", Password: "password1"})
	require.NoError(t, err)
	before, _ := users.GetByID(ctx, reg.User.ID)

	res, err := svc.ExternalIdentityExchange(ctx, domain.ExternalIdentity{
		Subject: "sub-f", Email: "FRANK@example.com", Name: "Franklin G", PictureURL: "https://img/f.png",
	})
	require.NoError(t, err)

	assert.Equal(t, reg.User.ID, res.User.ID)
	after, _ := users.GetByID(ctx, reg.User.ID)
	assert.Equal(t, "sub-f", after.GoogleID)
	assert.Equal(t, "Frank", after.Name)
	assert.Equal(t, "https://img/f.png", after.PictureURL)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	_, err = svc.PasswordLogin(ctx, "frank@example.com", "password1")
	assert.NoError(t, err)
}

func TestAuthService_ExternalIdentityExchange_ConcurrentCreateMerges(t *testing.T) {
	repo := new(mockUserRepository)
	producer, pub := newTestProducer()
	svc := NewAuthService(repo, newTestTokenManager(), newTestHasher(), nil, producer, "ol_jwt", newTestLogger())

	existing := &domain.User{ID: "u-race", Email: "gail@example.com", Name: "Gail"}
	repo.On("FindByEmailOrGoogleID", mock.Anything, "gail@example.com", "sub-g").
		Return(nil, apperrors.ErrNotFound).Once()
	repo.On("CreateWithProgress", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "gail@example.com"))
	repo.On("FindByEmailOrGoogleID", mock.Anything, "gail@example.com", "sub-g").
		Return(existing, nil).Once()
	repo.On("Update", mock.Anything, existing).Return(nil)

	res, err := svc.ExternalIdentityExchange(context.Background(), domain.ExternalIdentity{
		Subject: "sub-g", Email: "gail@example.com", Name: "Gail",
	})

	require.NoError(t, err)
	assert.Equal(t, "u-race", res.User.ID)
	assert.Equal(t, "sub-g", existing.GoogleID)
	assert.Empty(t, pub.Topics())
	repo.AssertExpectations(t)
}

func TestAuthService_ExternalIdentityExchange_NoChangeSkipsUpdate(t *testing.T) {
	repo := new(mockUserRepository)
	producer, _ := newTestProducer()
	svc := NewAuthService(repo, newTestTokenManager(), newTestHasher(), nil, producer, "ol_jwt", newTestLogger())

	linked := &domain.User{ID: "u-1", Email: "h@example.com", Name: "H", GoogleID: "sub-h"}
	repo.On("FindByEmailOrGoogleID", mock.Anything, "h@example.com", "sub-h").Return(linked, nil)

	_, err := svc.ExternalIdentityExchange(context.Background(), domain.ExternalIdentity{Subject: "sub-h", Email: "h@example.com"})

	require.NoError(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// recordingHasher records the stored hash of every Verify call.
type recordingHasher struct {
	*auth.PasswordHasher
	mu       sync.Mutex
	verified []string
}

func (h *recordingHasher) Verify(hash, plain string) bool {
	h.mu.Lock()
	h.verified = append(h.verified, hash)
	h.mu.Unlock()
	return h.PasswordHasher.Verify(hash, plain)
}

func TestAuthService_PasswordLogin_EveryRejectionRunsBcrypt(t *testing.T) {
	users := newMemUserRepository()
	ctx := context.Background()
	require.NoError(t, users.CreateWithProgress(ctx, &domain.User{ID: "g-only", Email: "gina@example.com", GoogleID: "sub-g"}))

	tests := []struct {
		name     string
		email    string
		wantHash string
	}{
		{name: "unknown email", email: "nobody@example.com", wantHash: ""},
		{name: "google only account", email: "gina@example.com", wantHash: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasher := &recordingHasher{PasswordHasher: newTestHasher()}
			producer, _ := newTestProducer()
			svc := NewAuthService(users, newTestTokenManager(), hasher, nil, producer, "ol_jwt", newTestLogger())

			_, err := svc.PasswordLogin(ctx, tt.email, "password1")

			assertAppCode(t, err, CodeInvalidCredentials, http.StatusUnauthorized)
			assert.Equal(t, []string{tt.wantHash}, hasher.verified)
		})
	}
}

func TestAuthService_GoogleLogin_VerifierErrors(t *testing.T) {
	tests := []struct {
		name       string
		verifyErr  error
		wantStatus int
	}{
		{name: "not configured", verifyErr: oauth.ErrNotConfigured, wantStatus: http.StatusServiceUnavailable},
		{name: "rejected token", verifyErr: oauth.ErrInvalidIDToken, wantStatus: http.StatusUnauthorized},
		{name: "tokeninfo down", verifyErr: errors.New("google tokeninfo: unexpected status 503"), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(mockVerifier)
			verifier.On("Verify", mock.Anything, "id-token").Return(nil, tt.verifyErr)
			svc, _ := newTestAuthService(newMemUserRepository(), verifier)

			_, err := svc.GoogleLogin(context.Background(), "id-token")

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantStatus, appErr.Status)
		})
	}
}

func TestAuthService_GoogleLogin_Success(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("Verify", mock.Anything, "id-token").Return(&domain.ExternalIdentity{
		Subject: "sub-i", Email: "ivy@example.com",
	}, nil)
	users := newMemUserRepository()
	svc, _ := newTestAuthService(users, verifier)

	res, err := svc.GoogleLogin(context.Background(), "id-token")

	require.NoError(t, err)
	assert.Equal(t, "ivy", res.User.Name)
	claims, err := newTestTokenManager().ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)
}
