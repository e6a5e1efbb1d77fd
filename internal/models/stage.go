package models

import (
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
)

// Stage names one step in the fixed approval chain.
type Stage string

const (
	StageMentor                Stage = "MENTOR"
	StageClassAdvisor          Stage = "CLASS_ADVISOR"
	StageInnovationCoordinator Stage = "INNOVATION_COORDINATOR"
	StageHOD                   Stage = "HOD"
	StagePrincipal             Stage = "PRINCIPAL"

	// StageTerminal marks a submission that has cleared every stage. It is
	// never a member of a sequence.
	StageTerminal Stage = "TERMINAL"
)

// StageSequence is an immutable ordered approval chain. The zero value is
// empty; build instances through the package-level sequences or
// NewStageSequence. Safe for concurrent reuse.
type StageSequence struct {
	stages []Stage
}

// NewStageSequence builds a sequence from the given ordering.
func NewStageSequence(stages ...Stage) StageSequence {
	owned := make([]Stage, len(stages))
	copy(owned, stages)
	return StageSequence{stages: owned}
}

// DepartmentStageSequence is the chain for department-level events.
var DepartmentStageSequence = NewStageSequence(
	StageMentor,
	StageClassAdvisor,
	StageInnovationCoordinator,
	StageHOD,
)

// InstitutionStageSequence extends the chain with the principal for
// institution-level events.
var InstitutionStageSequence = NewStageSequence(
	StageMentor,
	StageClassAdvisor,
	StageInnovationCoordinator,
	StageHOD,
	StagePrincipal,
)

// Stages returns a copy of the ordering.
func (s StageSequence) Stages() []Stage {
	out := make([]Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Len returns the number of stages in the chain.
func (s StageSequence) Len() int {
	return len(s.stages)
}

// First returns the entry stage of the chain.
func (s StageSequence) First() Stage {
	if len(s.stages) == 0 {
		return StageTerminal
	}
	return s.stages[0]
}

// Contains reports whether stage is a member of the chain.
func (s StageSequence) Contains(stage Stage) bool {
	for _, candidate := range s.stages {
		if candidate == stage {
			return true
		}
	}
	return false
}

// IndexOf returns the position of stage within the chain.
func (s StageSequence) IndexOf(stage Stage) (int, error) {
	for i, candidate := range s.stages {
		if candidate == stage {
			return i, nil
		}
	}
	return -1, appErrors.Clone(appErrors.ErrUnknownStage, "unknown approval stage: "+string(stage))
}

// Next returns the stage immediately after the given one, or StageTerminal
// when the given stage is the last member.
func (s StageSequence) Next(stage Stage) (Stage, error) {
	idx, err := s.IndexOf(stage)
	if err != nil {
		return StageTerminal, err
	}
	if idx == len(s.stages)-1 {
		return StageTerminal, nil
	}
	return s.stages[idx+1], nil
}

// Before returns the stages strictly preceding the given one, in order.
func (s StageSequence) Before(stage Stage) ([]Stage, error) {
	idx, err := s.IndexOf(stage)
	if err != nil {
		return nil, err
	}
	out := make([]Stage, idx)
	copy(out, s.stages[:idx])
	return out, nil
}

// IsLast reports whether stage is the final member of the chain.
func (s StageSequence) IsLast(stage Stage) (bool, error) {
	idx, err := s.IndexOf(stage)
	if err != nil {
		return false, err
	}
	return idx == len(s.stages)-1, nil
}
