// Package journal keeps an audit record of every funding run and every
// transaction it submitted, so that ambiguous submissions can be
// reconciled by hand.
package journal

import (
	"context"
	"time"

	xerrors "transfer-ever/internal/errors"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = xerrors.New(xerrors.CodeNotFound, "funding run not found")

// Outcome describes what is known about a submitted transaction.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeRejected     Outcome = "rejected"
	OutcomeUnknown      Outcome = "unknown"
	OutcomeNotSubmitted Outcome = "not_submitted"
)

// Submission is one transaction the saga built and handed to the ledger.
type Submission struct {
	Step        string    `json:"step"`
	Operation   string    `json:"operation"`
	Hash        string    `json:"hash,omitempty"`
	Ledger      int32     `json:"ledger,omitempty"`
	Outcome     Outcome   `json:"outcome"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Run is the persisted snapshot of a saga. It never holds secret keys.
type Run struct {
	ID               string       `json:"id"`
	CommandID        string       `json:"command_id,omitempty"`
	Network          string       `json:"network,omitempty"`
	Requester        string       `json:"requester,omitempty"`
	AssetCode        string       `json:"asset_code"`
	Amount           string       `json:"amount"`
	State            string       `json:"state"`
	ErrorCode        string       `json:"error_code,omitempty"`
	LastError        string       `json:"last_error,omitempty"`
	Activated        bool         `json:"activated"`
	TrustlineCreated bool         `json:"trustline_created"`
	Submissions      []Submission `json:"submissions,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Clone returns a deep copy.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Submissions != nil {
		cp.Submissions = append([]Submission(nil), r.Submissions...)
	}
	return &cp
}

// Store persists runs.
type Store interface {
	// Save inserts or replaces the run identified by run.ID.
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// ListLatest returns up to limit runs, newest first.
	ListLatest(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// NormalizeLimit clamps a caller supplied page size.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
