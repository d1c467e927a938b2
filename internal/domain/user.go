package domain

import (
	"strings"
	"time"
)

// User is an OmniLearn account. An account signs in with a password, a
// Google identity, or both.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-"`
	PictureURL   string    `json:"picture_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ExternalIdentity is a verified identity asserted by Google sign-in.
type ExternalIdentity struct {
	Subject    string
	Email      string
	Name       string
	PictureURL string
}

// DisplayName returns the asserted name, falling back to the email's local
// part.
func (id ExternalIdentity) DisplayName() string {
	if strings.TrimSpace(id.Name) != "" {
		return id.Name
	}
	local, _, _ := strings.Cut(id.Email, "@")
	return local
}

// MergeExternalIdentity backfills u from a Google sign-in and reports whether
// anything changed.
//
// GoogleID is only filled when empty. Name and picture are profile fields the
// user owns once they set a password: a password account keeps its own
// values and only gains the ones it lacks, while a Google-only account
// follows its Google profile. PasswordHash is never touched.
func (u *User) MergeExternalIdentity(id ExternalIdentity) bool {
	changed := false

	if u.GoogleID == "" && id.Subject != "" {
		u.GoogleID = id.Subject
		changed = true
	}

	followProfile := !u.HasPassword()
	if id.Name != "" && id.Name != u.Name && (followProfile || u.Name == "") {
		u.Name = id.Name
		changed = true
	}
	if id.PictureURL != "" && id.PictureURL != u.PictureURL && (followProfile || u.PictureURL == "") {
		u.PictureURL = id.PictureURL
		changed = true
	}

	return changed
}

// Progress tracks which subsections a user has completed and their scores,
// keyed by subsection ID.
type Progress struct {
	UserID               string             `json:"user_id"`
	CompletedSubsections []string           `json:"completed_subsections"`
	Scores               map[string]float64 `json:"scores"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewProgress returns the empty progress record created with every account.
func NewProgress(userID string) *Progress {
	return &Progress{
		UserID:               userID,
		CompletedSubsections: []string{},
		Scores:               map[string]float64{},
	}
}

// ProgressUpdate records one subsection result.
type ProgressUpdate struct {
	SubsectionID string
	Completed    bool
	Score        *float64
}

// Apply merges upd into p. Marking a subsection complete twice is a no-op;
// a score replaces any earlier score for that subsection. Completed=false
// never removes an existing completion.
func (p *Progress) Apply(upd ProgressUpdate) {
	if p.CompletedSubsections == nil {
		p.CompletedSubsections = []string{}
	}
	if p.Scores == nil {
		p.Scores = map[string]float64{}
	}

	if upd.Completed && !p.IsCompleted(upd.SubsectionID) {
		p.CompletedSubsections = append(p.CompletedSubsections, upd.SubsectionID)
	}
	if upd.Score != nil {
		p.Scores[upd.SubsectionID] = *upd.Score
	}
}

// IsCompleted reports whether subsectionID is in the completion set.
func (p *Progress) IsCompleted(subsectionID string) bool {
	for _, id := range p.CompletedSubsections {
		if id == subsectionID {
			return true
		}
	}
	return false
}
