package domain

import (
	"github.com/google/uuid"
)

// CadenceStep is one time-offset outreach step within a cadence.
type CadenceStep struct {
	DayOffset    int
	TaskType     TaskType
	Instructions string
}

// Cadence (playbook) is a predefined sequence of outreach steps attachable to
// a lead. StageIDs are the stages the cadence is considered active within;
// moving the lead outside them retires the cadence. Configuration data,
// created and edited outside this engine.
type Cadence struct {
	ID       uuid.UUID
	Name     string
	StageIDs []uuid.UUID
	Steps    []CadenceStep
}

// ContainsStage reports whether the cadence is active within the given stage.
func (c Cadence) ContainsStage(stageID uuid.UUID) bool {
	for _, id := range c.StageIDs {
		if id == stageID {
			return true
		}
	}
	return false
}
