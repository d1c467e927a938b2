package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/pkg/database"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

const (
	getProgressSQL = `
		SELECT user_id, completed_subsections, scores, updated_at
		FROM user_progress
		WHERE user_id = $1`

	lockProgressSQL = getProgressSQL + ` FOR UPDATE`

	upsertProgressSQL = `
		INSERT INTO user_progress (user_id, completed_subsections, scores, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET completed_subsections = EXCLUDED.completed_subsections,
		    scores = EXCLUDED.scores,
		    updated_at = EXCLUDED.updated_at`
)

// ProgressRepository implements repository.ProgressRepository using
// PostgreSQL. Scores are stored as a JSONB object keyed by subsection ID.
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new PostgreSQL-backed progress repository.
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the progress of userID.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (_ *domain.Progress, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProgress", getProgressSQL)
	defer func() { end(err) }()

	p, err := scanProgress(r.db.QueryRow(ctx, getProgressSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("progress", userID)
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// Update applies fn to the locked progress row. Concurrent updates for the
// same user serialize on the row lock, so no completion or score is lost.
func (r *ProgressRepository) Update(ctx context.Context, userID string, fn func(*domain.Progress)) (_ *domain.Progress, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProgress", upsertProgressSQL)
	defer func() { end(err) }()

	var result *domain.Progress
	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := scanProgress(tx.QueryRow(ctx, lockProgressSQL, userID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			p = domain.NewProgress(userID)
		case err != nil:
			return fmt.Errorf("lock progress: %w", err)
		}

		fn(p)
		p.UpdatedAt = time.Now().UTC()

		scores, err := json.Marshal(p.Scores)
		if err != nil {
			return fmt.Errorf("encode scores: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertProgressSQL, p.UserID, p.CompletedSubsections, scores, p.UpdatedAt); err != nil {
			return fmt.Errorf("store progress: %w", err)
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanProgress(row pgx.Row) (*domain.Progress, error) {
	var (
		p      domain.Progress
		scores []byte
	)
	if err := row.Scan(&p.UserID, &p.CompletedSubsections, &scores, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.CompletedSubsections == nil {
		p.CompletedSubsections = []string{}
	}
	p.Scores = map[string]float64{}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &p.Scores); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
	}
	return &p, nil
}
