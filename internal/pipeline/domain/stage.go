// Package domain provides core business rules for the pipeline bounded context.
package domain

import (
	"sort"

	"github.com/google/uuid"
)

// StageType classifies a pipeline stage. Open and qualification stages form
// one ordered probability group; won and lost are terminal.
type StageType string

const (
	StageTypeOpen          StageType = "open"
	StageTypeQualification StageType = "qualification"
	StageTypeFollowUp      StageType = "follow_up"
	StageTypeScheduling    StageType = "scheduling"
	StageTypeWon           StageType = "won"
	StageTypeLost          StageType = "lost"
)

var knownStageTypes = map[StageType]struct{}{
	StageTypeOpen:          {},
	StageTypeQualification: {},
	StageTypeFollowUp:      {},
	StageTypeScheduling:    {},
	StageTypeWon:           {},
	StageTypeLost:          {},
}

// Known reports whether t is a recognized stage type.
func (t StageType) Known() bool {
	_, ok := knownStageTypes[t]
	return ok
}

// BandGroup returns the probability band group a stage type belongs to.
// Open and qualification stages share one group; terminal and unknown
// types have no group.
func (t StageType) BandGroup() string {
	switch t {
	case StageTypeOpen, StageTypeQualification:
		return "open"
	case StageTypeFollowUp:
		return "follow_up"
	case StageTypeScheduling:
		return "scheduling"
	default:
		return ""
	}
}

// Stage is an immutable pipeline stage catalog entry. Stages are created and
// edited by pipeline configuration, outside this engine.
type Stage struct {
	ID       uuid.UUID
	Title    string
	Type     StageType
	Position int
}

// Catalog is the ordered set of pipeline stages.
type Catalog struct {
	stages []Stage
}

// NewCatalog builds a catalog ordered by stage position.
func NewCatalog(stages []Stage) Catalog {
	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return Catalog{stages: ordered}
}

// Stages returns the stages in catalog order.
func (c Catalog) Stages() []Stage {
	return c.stages
}

// StageByID resolves a stage by id.
func (c Catalog) StageByID(id uuid.UUID) (Stage, bool) {
	for _, s := range c.stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// Next returns the stage immediately following the given stage in catalog
// order, irrespective of type. The last stage has no successor.
func (c Catalog) Next(id uuid.UUID) (Stage, bool) {
	for i, s := range c.stages {
		if s.ID == id {
			if i+1 < len(c.stages) {
				return c.stages[i+1], true
			}
			return Stage{}, false
		}
	}
	return Stage{}, false
}

// BandGroupStages returns the stages sharing the given stage's band group,
// in catalog order. Stages without a band group yield an empty slice.
func (c Catalog) BandGroupStages(stage Stage) []Stage {
	group := stage.Type.BandGroup()
	if group == "" {
		return nil
	}

	var members []Stage
	for _, s := range c.stages {
		if s.Type.BandGroup() == group {
			members = append(members, s)
		}
	}
	return members
}
