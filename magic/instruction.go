// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"fmt"

	"github.com/luxfi/ids"
)

// Instruction is a request handled by the magic program.
type Instruction interface {
	instruction()
}

// ScheduleCommitInstruction asks the program to commit the named delegated
// accounts back to the base chain, optionally undelegating them.
type ScheduleCommitInstruction struct {
	Payer      ids.ID   `serialize:"true"`
	Keys       []ids.ID `serialize:"true"`
	Undelegate bool     `serialize:"true"`
}

func (*ScheduleCommitInstruction) instruction() {}

// ScheduledCommitSentInstruction acknowledges that the base chain confirmed
// the commit with the given id.
type ScheduledCommitSentInstruction struct {
	CommitID uint64 `serialize:"true"`
}

func (*ScheduledCommitSentInstruction) instruction() {}

func MarshalInstruction(instr Instruction) ([]byte, error) {
	return Codec.Marshal(codecVersion, &instr)
}

func UnmarshalInstruction(raw []byte) (Instruction, error) {
	var instr Instruction
	if _, err := Codec.Unmarshal(raw, &instr); err != nil {
		return nil, fmt.Errorf("unmarshalling instruction: %w", err)
	}
	return instr, nil
}

// Execute dispatches a marshalled instruction. The returned id is the
// scheduled commit's id for schedule instructions and zero otherwise.
func (p *Program) Execute(raw []byte) (uint64, error) {
	instr, err := UnmarshalInstruction(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrMalformedContext, err)
	}
	return p.ExecuteInstruction(instr)
}

// ExecuteInstruction dispatches an already decoded instruction.
func (p *Program) ExecuteInstruction(instr Instruction) (uint64, error) {
	switch i := instr.(type) {
	case *ScheduleCommitInstruction:
		if i.Undelegate {
			return p.ScheduleCommitAndUndelegate(i.Payer, i.Keys)
		}
		return p.ScheduleCommit(i.Payer, i.Keys)
	case *ScheduledCommitSentInstruction:
		return 0, p.ScheduledCommitSent(i.CommitID)
	default:
		return 0, fmt.Errorf("unexpected instruction type %T", instr)
	}
}
