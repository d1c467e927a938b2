package domain

import "net/http"

// APIPrefix is the path prefix of the public API.
const APIPrefix = "/api/v1"

// Link is a hypermedia link to a related resource.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// LessonLinks returns the navigation links attached to a lesson.
func LessonLinks(l *Lesson) []Link {
	return []Link{
		{Href: APIPrefix + "/lessons/" + l.ID, Rel: "self", Method: http.MethodGet},
		{Href: APIPrefix + "/questions/section/" + l.SectionID, Rel: "practice-questions", Method: http.MethodGet},
		{Href: APIPrefix + "/questions/", Rel: "create-questions", Method: http.MethodPost},
	}
}

// AttachTreeLinks sets the navigation links of a tree and, when the outline is
// loaded, of each section and subsection.
func AttachTreeLinks(t *KnowledgeTree) {
	t.Links = []Link{
		{Href: APIPrefix + "/knowledge-tree/" + t.ID, Rel: "self", Method: http.MethodGet},
	}
	for _, s := range t.Sections {
		s.Links = []Link{
			{Href: APIPrefix + "/questions/section/" + s.ID, Rel: "practice-questions", Method: http.MethodGet},
		}
		for _, sub := range s.Subsections {
			sub.Links = []Link{
				{Href: APIPrefix + "/lessons/subsection/" + sub.ID, Rel: "lesson", Method: http.MethodGet},
			}
		}
	}
}

// SummaryLinks returns the links of a tree listing entry.
func SummaryLinks(s *TreeSummary) []Link {
	return []Link{
		{Href: APIPrefix + "/knowledge-tree/" + s.ID, Rel: "self", Method: http.MethodGet},
	}
}
