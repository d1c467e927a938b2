package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/event"
	"github.com/kumanday/OmniLearn/internal/oauth"
	"github.com/kumanday/OmniLearn/internal/repository"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

// TokenTypeBearer is the token_type of every issued session.
const TokenTypeBearer = "bearer"

// bcrypt only reads the first 72 bytes of a password.
const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

// IdentityVerifier turns a third-party ID token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.ExternalIdentity, error)
}

// PasswordHasher hashes new passwords and checks login attempts.
// *auth.PasswordHasher implements it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// AuthService implements session issuance and caller resolution.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	hasher     PasswordHasher
	verifier   IdentityVerifier
	producer   *event.Producer
	cookieName string
	logger     *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	hasher PasswordHasher,
	verifier IdentityVerifier,
	producer *event.Producer,
	cookieName string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		hasher:     hasher,
		verifier:   verifier,
		producer:   producer,
		cookieName: cookieName,
		logger:     logger,
	}
}

// RegisterInput holds the parameters for a password registration.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// AuthResult is the outcome of every successful sign-in flow.
type AuthResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	User        *domain.User
}

// TokenTTL is the lifetime of issued sessions, used for the cookie Max-Age.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// ResolveCurrentUser returns the user behind the session credential of r.
// A missing credential, an invalid token and an unknown subject all yield
// the same unauthenticated error.
func (s *AuthService) ResolveCurrentUser(r *http.Request) (*domain.User, error) {
	token, ok := auth.ExtractCredential(r, s.cookieName)
	if !ok {
		return nil, errUnauthenticated()
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, errUnauthenticated()
	}

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errUnauthenticated()
		}
		return nil, fmt.Errorf("resolve session user: %w", err)
	}
	return user, nil
}

// PasswordLogin checks email and password and issues a session. Unknown
// email, a Google-only account and a wrong password are indistinguishable.
func (s *AuthService) PasswordLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errInvalidCredentials()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Same bcrypt work as a wrong password.
			s.hasher.Verify("", password)
			return nil, errInvalidCredentials()
		}
		return nil, fmt.Errorf("lookup user for login: %w", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, errInvalidCredentials()
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Register creates a password account with its empty progress record and
// issues a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := s.CreateAccount(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAccount creates a password account without issuing a session.
func (s *AuthService) CreateAccount(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if len(input.Password) < minPasswordLength || len(input.Password) > maxPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}

	// Concurrent duplicates still end on the unique index below.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errDuplicateAccount()
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateWithProgress(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, errDuplicateAccount()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishRegistered(ctx, user, event.MethodPassword)
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

// GoogleLogin verifies a Google ID token and signs its owner in.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrNotConfigured):
			return nil, errGoogleUnavailable()
		case errors.Is(err, oauth.ErrInvalidIDToken):
			return nil, apperrors.Unauthorized("invalid google credential")
		default:
			return nil, apperrors.Upstream(CodeUpstream, "google sign-in is unavailable", err)
		}
	}
	return s.ExternalIdentityExchange(ctx, *identity)
}

// ExternalIdentityExchange signs in the owner of a verified external
// identity. The account is found by email or Google subject in one lookup;
// a found account is backfilled, otherwise a password-less account is
// created.
func (s *AuthService) ExternalIdentityExchange(ctx context.Context, identity domain.ExternalIdentity) (*AuthResult, error) {
	identity.Email = normalizeEmail(identity.Email)
	if identity.Email == "" || identity.Subject == "" {
		return nil, apperrors.Unauthorized("invalid google credential")
	}

	user, err := s.users.FindByEmailOrGoogleID(ctx, identity.Email, identity.Subject)
	switch {
	case err == nil:
		if err := s.mergeIdentity(ctx, user, identity); err != nil {
			return nil, err
		}
	case errors.Is(err, apperrors.ErrNotFound):
		user, err = s.createFromIdentity(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("lookup user for google login: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed in with google", slog.String("user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) mergeIdentity(ctx context.Context, user *domain.User, identity domain.ExternalIdentity) error {
	if !user.MergeExternalIdentity(identity) {
		return nil
	}
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("link google identity: %w", err)
	}
	return nil
}

func (s *AuthService) createFromIdentity(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		ID:         uuid.New().String(),
		Email:      identity.Email,
		Name:       identity.DisplayName(),
		GoogleID:   identity.Subject,
		PictureURL: identity.PictureURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.users.CreateWithProgress(ctx, user)
	if err == nil {
		s.publishRegistered(ctx, user, event.MethodGoogle)
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		return nil, fmt.Errorf("create google user: %w", err)
	}

	// A concurrent sign-in created the account first; merge into it.
	existing, err := s.users.FindByEmailOrGoogleID(ctx, identity.Email, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("reload user after conflict: %w", err)
	}
	if err := s.mergeIdentity(ctx, existing, identity); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   s.tokens.TTL(),
		User:        user,
	}, nil
}

func (s *AuthService) publishRegistered(ctx context.Context, user *domain.User, method string) {
	if err := s.producer.PublishUserRegistered(ctx, user, method); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
