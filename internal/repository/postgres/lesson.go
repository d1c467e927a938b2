package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/pkg/database"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
)

const (
	upsertLessonSQL = `
		INSERT INTO lessons (id, subsection_id, content, multimedia_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subsection_id) DO UPDATE
		SET content = EXCLUDED.content,
		    multimedia_urls = EXCLUDED.multimedia_urls,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	lessonSelect = `
		SELECT l.id, l.subsection_id, s.id, s.title, l.content, l.multimedia_urls, l.created_at, l.updated_at
		FROM lessons l
		JOIN subsections ss ON ss.id = l.subsection_id
		JOIN sections s ON s.id = ss.section_id`
)

// LessonRepository implements repository.LessonRepository using PostgreSQL.
type LessonRepository struct {
	db database.DBTX
}

// NewLessonRepository creates a new PostgreSQL-backed lesson repository.
func NewLessonRepository(db database.DBTX) *LessonRepository {
	return &LessonRepository{db: db}
}

// Upsert keeps exactly one lesson per subsection. On regeneration the
// original ID and creation time survive and are scanned back into l.
func (r *LessonRepository) Upsert(ctx context.Context, l *domain.Lesson) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpsertLesson", upsertLessonSQL)
	defer func() { end(err) }()

	urls := l.MultimediaURLs
	if urls == nil {
		urls = []string{}
	}

	err = r.db.QueryRow(ctx, upsertLessonSQL,
		l.ID,
		l.SubsectionID,
		l.Content,
		urls,
		l.CreatedAt,
		l.UpdatedAt,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert lesson: %w", err)
	}
	return nil
}

// GetByID retrieves a lesson by its ID.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	l, err := r.scanLesson(ctx, "GetLesson", lessonSelect+` WHERE l.id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("lesson", id)
	}
	return l, err
}

// GetBySubsection retrieves the lesson of a subsection.
func (r *LessonRepository) GetBySubsection(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	l, err := r.scanLesson(ctx, "GetLessonBySubsection", lessonSelect+` WHERE l.subsection_id = $1`, subsectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("lesson for subsection", subsectionID)
	}
	return l, err
}

func (r *LessonRepository) scanLesson(ctx context.Context, op, query string, arg string) (_ *domain.Lesson, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var l domain.Lesson
	err = r.db.QueryRow(ctx, query, arg).Scan(
		&l.ID,
		&l.SubsectionID,
		&l.SectionID,
		&l.SectionTitle,
		&l.Content,
		&l.MultimediaURLs,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lesson: %w", err)
	}
	if l.MultimediaURLs == nil {
		l.MultimediaURLs = []string{}
	}
	return &l, nil
}
