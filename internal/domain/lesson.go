package domain

import "time"

// Lesson is the generated prose for one subsection. There is at most one
// lesson per subsection; regenerating replaces its content.
type Lesson struct {
	ID             string    `json:"id"`
	SubsectionID   string    `json:"subsection_id"`
	SectionID      string    `json:"section_id"`
	SectionTitle   string    `json:"section_title"`
	Content        string    `json:"content"`
	MultimediaURLs []string  `json:"multimedia_urls"`
	Links          []Link    `json:"links,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
