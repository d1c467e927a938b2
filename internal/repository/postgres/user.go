package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/pkg/database"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

const userSelect = `
	SELECT id, email, name, password_hash, COALESCE(google_id, ''), picture_url, created_at, updated_at
	FROM users`

const (
	insertUserSQL = `
		INSERT INTO users (id, email, name, password_hash, google_id, picture_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertEmptyProgressSQL = `
		INSERT INTO user_progress (user_id, completed_subsections, scores, updated_at)
		VALUES ($1, '{}', '{}'::jsonb, $2)`

	updateUserSQL = `
		UPDATE users
		SET email = $1, name = $2, password_hash = $3, google_id = $4, picture_url = $5, updated_at = $6
		WHERE id = $7`

	// A row linked to the Google subject sorts ahead of an email-only match.
	findByEmailOrGoogleIDSQL = userSelect + `
		WHERE email = $1 OR google_id = $2
		ORDER BY (google_id = $2) DESC NULLS LAST
		LIMIT 1`

	googleIDConstraint = "users_google_id_key"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithProgress inserts the user and an empty progress row in a single
// transaction so that no account exists without progress.
func (r *UserRepository) CreateWithProgress(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUserSQL)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertUserSQL,
			u.ID,
			u.Email,
			u.Name,
			u.PasswordHash,
			nullIfEmpty(u.GoogleID),
			u.PictureURL,
			u.CreatedAt,
			u.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertEmptyProgressSQL, u.ID, u.CreatedAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return r.conflict(err, u)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.scanUser(ctx, "GetUserByID", userSelect+` WHERE id = $1`, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("user", id)
	}
	return u, err
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByEmail", userSelect+` WHERE email = $1`, email)
}

// FindByEmailOrGoogleID looks an account up by either sign-in key in one
// query.
func (r *UserRepository) FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*domain.User, error) {
	return r.scanUser(ctx, "FindUserByEmailOrGoogleID", findByEmailOrGoogleIDSQL, email, nullIfEmpty(googleID))
}

// Update modifies an existing user in the database.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateUser", updateUserSQL)
	defer func() { end(err) }()

	u.UpdatedAt = time.Now().UTC()

	ct, err := r.db.Exec(ctx, updateUserSQL,
		u.Email,
		u.Name,
		u.PasswordHash,
		nullIfEmpty(u.GoogleID),
		u.PictureURL,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return r.conflict(err, u)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

func (r *UserRepository) conflict(err error, u *domain.User) error {
	if violatedConstraint(err) == googleIDConstraint {
		return apperrors.AlreadyExists("user", "google_id", u.GoogleID)
	}
	return apperrors.AlreadyExists("user", "email", u.Email)
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.GoogleID,
		&u.PictureURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
