package upload

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateAwaitingFiles       State = "AwaitingFiles"
	StateValidating          State = "Validating"
	StateNormalizing         State = "Normalizing"
	StateResolvingIdentities State = "ResolvingIdentities"
	StateWritingGraph        State = "WritingGraph"
	StateDone                State = "Done"
	StateFailed              State = "Failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateAwaitingFiles:       {StateValidating, StateFailed},
	StateValidating:          {StateNormalizing, StateFailed},
	StateNormalizing:         {StateResolvingIdentities, StateFailed},
	StateResolvingIdentities: {StateWritingGraph, StateFailed},
	StateWritingGraph:        {StateDone, StateFailed},
}

// CanTransition reports whether the run may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type Counts struct {
	PositionsWritten    int `json:"positions_written"`
	EducationWritten    int `json:"education_written"`
	SkillsWritten       int `json:"skills_written"`
	ConnectionsWritten  int `json:"connections_written"`
	ShadowsCreated      int `json:"shadows_created"`
	ShadowsEnriched     int `json:"shadows_enriched"`
	CompaniesCreated    int `json:"companies_created"`
	InstitutionsCreated int `json:"institutions_created"`
	RowsDropped         int `json:"rows_dropped"`
	WriteFailures       int `json:"write_failures"`
}

// Warning is a non-fatal problem recorded during a run.
type Warning struct {
	Kind   string `json:"kind"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

// Run is the externally visible status of one ingestion run.
type Run struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Source    string    `json:"source"`
	State     State     `json:"state"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Missing   []string  `json:"missing,omitempty"`
	Counts    Counts    `json:"counts"`
	Warnings  []Warning `json:"warnings,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RunStore interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
}
