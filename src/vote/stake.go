package vote

import (
	"errors"
	"math/big"
	"strings"
)

var (
	// ErrAlreadyVoted means the proposal left pending before this attempt.
	ErrAlreadyVoted = errors.New("vote: proposal already voted")
	// ErrInsufficientBalance means the agent account has nothing to stake.
	ErrInsufficientBalance = errors.New("vote: insufficient balance")
	// ErrInvalidIntent means the intent is missing or not aye/nay.
	ErrInvalidIntent = errors.New("vote: invalid vote intent")
	// ErrNotRecorded means the vote is on chain but the store commit failed.
	ErrNotRecorded = errors.New("vote: submitted but not recorded")
)

// Stake returns floor(balance/2). A non-positive balance, or one whose half
// rounds to zero, cannot back a vote.
func Stake(balance *big.Int) (*big.Int, error) {
	if balance == nil || balance.Sign() <= 0 {
		return nil, ErrInsufficientBalance
	}
	stake := new(big.Int).Rsh(balance, 1)
	if stake.Sign() == 0 {
		return nil, ErrInsufficientBalance
	}
	return stake, nil
}

// FormatAmount renders planck as a decimal token amount, e.g. "12.5 DOT".
func FormatAmount(planck *big.Int, decimals uint8, symbol string) string {
	if planck == nil {
		planck = new(big.Int)
	}
	s := planck.String()
	if decimals > 0 {
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		if len(s) <= int(decimals) {
			s = strings.Repeat("0", int(decimals)-len(s)+1) + s
		}
		whole, frac := s[:len(s)-int(decimals)], strings.TrimRight(s[len(s)-int(decimals):], "0")
		s = whole
		if frac != "" {
			s += "." + frac
		}
		if neg {
			s = "-" + s
		}
	}
	if symbol != "" {
		s += " " + symbol
	}
	return s
}
