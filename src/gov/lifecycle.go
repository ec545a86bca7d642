package gov

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned for any edge other than pending -> voted.
	ErrInvalidTransition = errors.New("gov: invalid status transition")
	// ErrNotPending is returned when a pending-only field is written after voting.
	ErrNotPending = errors.New("gov: proposal is not pending")
)

// Transition validates a lifecycle edge. The only legal edge is pending -> voted.
func Transition(from, to Status) error {
	if from == StatusPending && to == StatusVoted {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsTerminal reports whether the proposal can no longer change state.
func (p *Proposal) IsTerminal() bool {
	return p.Status == StatusVoted
}

// CanRecordAnalysis reports whether score/analysis may still be written.
func (p *Proposal) CanRecordAnalysis() error {
	if p.Status != StatusPending {
		return ErrNotPending
	}
	return nil
}

// CheckInvariants verifies that status, vote result and tx hash agree:
// a tx hash exists iff the proposal is voted, and a result exists iff the hash does.
func (p *Proposal) CheckInvariants() error {
	switch p.Status {
	case StatusPending:
		if p.VoteTxHash != nil || p.VoteResult != nil {
			return fmt.Errorf("gov: proposal %d pending with vote data", p.ID)
		}
	case StatusVoted:
		if p.VoteTxHash == nil || *p.VoteTxHash == "" {
			return fmt.Errorf("gov: proposal %d voted without tx hash", p.ID)
		}
		if p.VoteResult == nil || !p.VoteResult.Valid() {
			return fmt.Errorf("gov: proposal %d voted without result", p.ID)
		}
	default:
		return fmt.Errorf("gov: proposal %d has unknown status %q", p.ID, p.Status)
	}
	if p.Score < 0 || p.Score > 100 {
		return fmt.Errorf("gov: proposal %d score %d out of range", p.ID, p.Score)
	}
	return nil
}

// ApplyVote moves the proposal along the pending -> voted edge in memory.
func (p *Proposal) ApplyVote(result Vote, txHash string) error {
	if err := Transition(p.Status, StatusVoted); err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("gov: invalid vote %q", result)
	}
	if txHash == "" {
		return errors.New("gov: empty tx hash")
	}
	r, h := result, txHash
	p.Status = StatusVoted
	p.VoteResult = &r
	p.VoteTxHash = &h
	return nil
}
