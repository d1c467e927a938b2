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
	insertQuestionSQL = `
		INSERT INTO questions (id, section_id, text, difficulty, correct_answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getQuestionSQL = `
		SELECT id, section_id, text, difficulty, correct_answer, created_at
		FROM questions
		WHERE id = $1`

	listQuestionsSQL = `
		SELECT id, section_id, text, difficulty, correct_answer, created_at
		FROM questions
		WHERE section_id = $1 AND ($2::text = '' OR difficulty = $2)
		ORDER BY created_at, id`
)

// QuestionRepository implements repository.QuestionRepository using
// PostgreSQL.
type QuestionRepository struct {
	db database.DBTX
}

// NewQuestionRepository creates a new PostgreSQL-backed question repository.
func NewQuestionRepository(db database.DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// CreateBatch inserts a generated question set atomically.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []*domain.Question) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateQuestions", insertQuestionSQL)
	defer func() { end(err) }()

	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, q := range questions {
			if _, err := tx.Exec(ctx, insertQuestionSQL,
				q.ID,
				q.SectionID,
				q.Text,
				q.Difficulty,
				q.CorrectAnswer,
				q.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a question by its ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (_ *domain.Question, err error) {
	ctx, end := database.TraceQuery(ctx, "GetQuestion", getQuestionSQL)
	defer func() { end(err) }()

	q, err := scanQuestion(r.db.QueryRow(ctx, getQuestionSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("question", id)
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// ListBySection returns the questions of a section in creation order.
func (r *QuestionRepository) ListBySection(ctx context.Context, sectionID, difficulty string) (_ []domain.Question, err error) {
	ctx, end := database.TraceQuery(ctx, "ListQuestions", listQuestionsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listQuestionsSQL, sectionID, difficulty)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	if err := row.Scan(&q.ID, &q.SectionID, &q.Text, &q.Difficulty, &q.CorrectAnswer, &q.CreatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}
