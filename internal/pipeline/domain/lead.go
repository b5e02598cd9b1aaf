package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransitionCause identifies who initiated a stage transition. Automation
// causes suppress the activity record to avoid duplicate noise from chained
// automations.
type TransitionCause string

const (
	CauseUser       TransitionCause = "user"
	CauseAutomation TransitionCause = "automation"
)

// CadenceRef is the denormalized snapshot of a lead's active cadence, kept on
// the lead for display without a join.
type CadenceRef struct {
	CadenceID   uuid.UUID `json:"cadenceId"`
	CadenceName string    `json:"cadenceName"`
	StartedAt   time.Time `json:"startedAt"`
}

// CadenceHistoryEntry records a retired cadence. Entries are append-only and
// never mutated after creation; reactivation removes the entry entirely.
type CadenceHistoryEntry struct {
	CadenceID   uuid.UUID `json:"cadenceId"`
	CadenceName string    `json:"cadenceName"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Lead is a sales opportunity tracked through the pipeline. Leads are mutated
// exclusively through the transition engine, the cadence engine, and the
// lost-lead workflow.
//
// Invariants: CurrentStageID always resolves to an existing stage,
// ReactivationDate is set only while the lead sits in a lost-type stage, and
// at most one cadence is active at a time.
type Lead struct {
	ID               uuid.UUID
	Name             string
	CurrentStageID   uuid.UUID
	Probability      int
	LostReason       *string
	ReactivationDate *time.Time
	ActiveCadence    *CadenceRef
	CadenceHistory   []CadenceHistoryEntry // oldest first
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LastRetiredCadence returns the most recent history entry, if any.
func (l *Lead) LastRetiredCadence() (CadenceHistoryEntry, bool) {
	if len(l.CadenceHistory) == 0 {
		return CadenceHistoryEntry{}, false
	}
	return l.CadenceHistory[len(l.CadenceHistory)-1], true
}

// PopRetiredCadence removes and returns the most recent history entry.
// Reactivation is a pop, not a copy.
func (l *Lead) PopRetiredCadence() (CadenceHistoryEntry, bool) {
	entry, ok := l.LastRetiredCadence()
	if !ok {
		return CadenceHistoryEntry{}, false
	}
	l.CadenceHistory = l.CadenceHistory[:len(l.CadenceHistory)-1]
	return entry, true
}
