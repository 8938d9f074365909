package profile

import (
	"context"
	"errors"
	"time"
)

// Record is the stored profile for one owner. A nil ResumeLink means the
// user has not provided one, which is distinct from an empty string.
type Record struct {
	Owner       string    `json:"owner"`
	DisplayName string    `json:"display_name"`
	ResumeLink  *string   `json:"resume_link,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Facts is the slice of a profile the prompt builder consumes.
type Facts struct {
	DisplayName string
	ResumeLink  *string
}

func (r Record) Facts() Facts {
	return Facts{DisplayName: r.DisplayName, ResumeLink: r.ResumeLink}
}

var ErrNotFound = errors.New("profile not found")

// Store persists profile records keyed by owner.
type Store interface {
	Get(ctx context.Context, owner string) (Record, error)
	Upsert(ctx context.Context, rec Record) (Record, error)
	Close() error
}
