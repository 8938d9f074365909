package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	// RoleSystem is reserved for seeded instruction turns. The exchange flow
	// never produces it, but stored system turns must round-trip intact.
	RoleSystem Role = "system"
)

// Turn is a single message in a transcript. Immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is the full ordered chat history for one owner. A transcript
// with zero turns is a valid state (new user, or post-reset).
type Transcript struct {
	Owner     string    `json:"owner"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound reports an operation against an owner whose transcript does not
// exist (e.g. it was reset concurrently).
var ErrNotFound = errors.New("transcript not found")

// StoreError wraps a storage fault so callers can tell "reply generated but
// not recorded" apart from upstream failures.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("transcript store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store persists one append-only transcript per owner.
type Store interface {
	// LoadOrCreate returns the owner's transcript, creating an empty one if
	// none exists. At most one record per owner, also under concurrent calls.
	LoadOrCreate(ctx context.Context, owner string) (Transcript, error)
	// Load returns the owner's transcript without creating one. Returns a
	// StoreError wrapping ErrNotFound when no transcript exists.
	Load(ctx context.Context, owner string) (Transcript, error)
	// Append atomically adds the given turns, in order, to the end of the
	// owner's transcript and returns the updated transcript. The turns from
	// one call are never interleaved with another call's. Fails with a
	// StoreError wrapping ErrNotFound if the record no longer exists.
	Append(ctx context.Context, owner string, turns []Turn) (Transcript, error)
	// Delete removes the transcript entirely. Deleting a transcript that
	// does not exist is not an error.
	Delete(ctx context.Context, owner string) error
	Close() error
}
