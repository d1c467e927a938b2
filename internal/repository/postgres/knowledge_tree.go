package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/pkg/database"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
	"github.com/kumanday/OmniLearn/pkg/pagination"
)

const (
	insertTreeSQL = `
		INSERT INTO knowledge_trees (id, topic, slug, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertSectionSQL = `
		INSERT INTO sections (id, tree_id, title, description, position)
		VALUES ($1, $2, $3, $4, $5)`

	insertSubsectionSQL = `
		INSERT INTO subsections (id, section_id, title, description, position)
		VALUES ($1, $2, $3, $4, $5)`

	getTreeSQL = `
		SELECT id, topic, slug, COALESCE(created_by::text, ''), created_at
		FROM knowledge_trees
		WHERE id = $1`

	listSectionsSQL = `
		SELECT id, tree_id, title, description, position
		FROM sections
		WHERE tree_id = $1
		ORDER BY position`

	listSubsectionsSQL = `
		SELECT ss.id, ss.section_id, ss.title, ss.description, ss.position
		FROM subsections ss
		JOIN sections s ON s.id = ss.section_id
		WHERE s.tree_id = $1
		ORDER BY s.position, ss.position`

	countTreesSQL = `SELECT COUNT(*) FROM knowledge_trees WHERE created_by = $1`

	listTreesSQL = `
		SELECT t.id, t.topic, t.slug, t.created_at,
		       (SELECT COUNT(*) FROM sections s WHERE s.tree_id = t.id)
		FROM knowledge_trees t
		WHERE t.created_by = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2 OFFSET $3`

	getSectionSQL = `
		SELECT id, tree_id, title, description, position
		FROM sections
		WHERE id = $1`

	getSubsectionSQL = `
		SELECT ss.id, ss.section_id, ss.title, ss.description, ss.position, s.title, s.description
		FROM subsections ss
		JOIN sections s ON s.id = ss.section_id
		WHERE ss.id = $1`
)

// KnowledgeTreeRepository implements repository.KnowledgeTreeRepository
// using PostgreSQL.
type KnowledgeTreeRepository struct {
	db database.DBTX
}

// NewKnowledgeTreeRepository creates a new PostgreSQL-backed tree repository.
func NewKnowledgeTreeRepository(db database.DBTX) *KnowledgeTreeRepository {
	return &KnowledgeTreeRepository{db: db}
}

// Create inserts the tree, its sections and their subsections in one
// transaction. IDs and positions must already be assigned.
func (r *KnowledgeTreeRepository) Create(ctx context.Context, t *domain.KnowledgeTree) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateKnowledgeTree", insertTreeSQL)
	defer func() { end(err) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertTreeSQL, t.ID, t.Topic, t.Slug, nullIfEmpty(t.CreatedBy), t.CreatedAt); err != nil {
			return fmt.Errorf("insert tree: %w", err)
		}
		for _, s := range t.Sections {
			if _, err := tx.Exec(ctx, insertSectionSQL, s.ID, t.ID, s.Title, s.Description, s.Position); err != nil {
				return fmt.Errorf("insert section %q: %w", s.Title, err)
			}
			for _, sub := range s.Subsections {
				if _, err := tx.Exec(ctx, insertSubsectionSQL, sub.ID, s.ID, sub.Title, sub.Description, sub.Position); err != nil {
					return fmt.Errorf("insert subsection %q: %w", sub.Title, err)
				}
			}
		}
		return nil
	})
	return err
}

// GetByID loads a tree with sections and subsections ordered by position.
func (r *KnowledgeTreeRepository) GetByID(ctx context.Context, id string) (_ *domain.KnowledgeTree, err error) {
	ctx, end := database.TraceQuery(ctx, "GetKnowledgeTree", getTreeSQL)
	defer func() { end(err) }()

	var t domain.KnowledgeTree
	err = r.db.QueryRow(ctx, getTreeSQL, id).Scan(&t.ID, &t.Topic, &t.Slug, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("knowledge tree", id)
		}
		return nil, fmt.Errorf("get tree: %w", err)
	}

	sections, err := r.querySections(ctx, id)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Section, len(sections))
	for _, s := range sections {
		byID[s.ID] = s
	}

	rows, err := r.db.Query(ctx, listSubsectionsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("list subsections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sub := &domain.Subsection{}
		if err := rows.Scan(&sub.ID, &sub.SectionID, &sub.Title, &sub.Description, &sub.Position); err != nil {
			return nil, fmt.Errorf("scan subsection: %w", err)
		}
		if s, ok := byID[sub.SectionID]; ok {
			s.Subsections = append(s.Subsections, sub)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subsections: %w", err)
	}

	t.Sections = sections
	return &t, nil
}

func (r *KnowledgeTreeRepository) querySections(ctx context.Context, treeID string) ([]*domain.Section, error) {
	rows, err := r.db.Query(ctx, listSectionsSQL, treeID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	sections := []*domain.Section{}
	for rows.Next() {
		s := &domain.Section{Subsections: []*domain.Subsection{}}
		if err := rows.Scan(&s.ID, &s.TreeID, &s.Title, &s.Description, &s.Position); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return sections, nil
}

// ListByCreator returns a page of tree summaries created by userID.
func (r *KnowledgeTreeRepository) ListByCreator(ctx context.Context, userID string, params pagination.Params) (_ []domain.TreeSummary, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListKnowledgeTrees", listTreesSQL)
	defer func() { end(err) }()

	var total int
	if err := r.db.QueryRow(ctx, countTreesSQL, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count trees: %w", err)
	}

	rows, err := r.db.Query(ctx, listTreesSQL, userID, params.Limit(), params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list trees: %w", err)
	}
	defer rows.Close()

	trees := []domain.TreeSummary{}
	for rows.Next() {
		var s domain.TreeSummary
		if err := rows.Scan(&s.ID, &s.Topic, &s.Slug, &s.CreatedAt, &s.SectionCount); err != nil {
			return nil, 0, fmt.Errorf("scan tree: %w", err)
		}
		trees = append(trees, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate trees: %w", err)
	}
	return trees, total, nil
}

// GetSection returns a single section without subsections.
func (r *KnowledgeTreeRepository) GetSection(ctx context.Context, id string) (_ *domain.Section, err error) {
	ctx, end := database.TraceQuery(ctx, "GetSection", getSectionSQL)
	defer func() { end(err) }()

	var s domain.Section
	err = r.db.QueryRow(ctx, getSectionSQL, id).Scan(&s.ID, &s.TreeID, &s.Title, &s.Description, &s.Position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("section", id)
		}
		return nil, fmt.Errorf("get section: %w", err)
	}
	return &s, nil
}

// GetSubsection returns a subsection together with its section's title and
// description, which lesson prompts need.
func (r *KnowledgeTreeRepository) GetSubsection(ctx context.Context, id string) (_ *domain.SubsectionContext, err error) {
	ctx, end := database.TraceQuery(ctx, "GetSubsection", getSubsectionSQL)
	defer func() { end(err) }()

	var sc domain.SubsectionContext
	err = r.db.QueryRow(ctx, getSubsectionSQL, id).Scan(
		&sc.ID,
		&sc.SectionID,
		&sc.Title,
		&sc.Description,
		&sc.Position,
		&sc.SectionTitle,
		&sc.SectionDescription,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("subsection", id)
		}
		return nil, fmt.Errorf("get subsection: %w", err)
	}
	return &sc, nil
}
