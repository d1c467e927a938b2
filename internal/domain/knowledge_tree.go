package domain

import "time"

// KnowledgeTree is a generated outline of a topic: ordered sections, each
// with ordered subsections.
type KnowledgeTree struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	Slug      string     `json:"slug"`
	CreatedBy string     `json:"created_by,omitempty"`
	Sections  []*Section `json:"sections"`
	Links     []Link     `json:"links,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Section is a top-level chapter of a knowledge tree.
type Section struct {
	ID          string        `json:"id"`
	TreeID      string        `json:"tree_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Position    int           `json:"position"`
	Subsections []*Subsection `json:"subsections"`
	Links       []Link        `json:"links,omitempty"`
}

// Subsection is the unit a lesson is generated for.
type Subsection struct {
	ID          string `json:"id"`
	SectionID   string `json:"section_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Links       []Link `json:"links,omitempty"`
}

// SubsectionContext is a subsection together with its parent section, as
// needed to prompt for and render a lesson.
type SubsectionContext struct {
	Subsection
	SectionTitle       string
	SectionDescription string
}

// TreeSummary is a knowledge tree without its outline, used in listings.
type TreeSummary struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Slug         string    `json:"slug"`
	SectionCount int       `json:"section_count"`
	CreatedAt    time.Time `json:"created_at"`
	Links        []Link    `json:"links,omitempty"`
}

// Outline is the shape a knowledge tree is generated in.
type Outline struct {
	Sections []OutlineSection `json:"sections"`
}

// OutlineSection is one generated section.
type OutlineSection struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Subsections []OutlineSubsection `json:"subsections"`
}

// OutlineSubsection is one generated subsection.
type OutlineSubsection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate checks that the outline can be stored as a tree.
func (o *Outline) Validate() error {
	if len(o.Sections) == 0 {
		return malformed("outline has no sections")
	}
	for i, s := range o.Sections {
		if s.Title == "" {
			return malformed("section %d has no title", i)
		}
		if len(s.Subsections) == 0 {
			return malformed("section %q has no subsections", s.Title)
		}
		for j, sub := range s.Subsections {
			if sub.Title == "" {
				return malformed("subsection %d of %q has no title", j, s.Title)
			}
		}
	}
	return nil
}
