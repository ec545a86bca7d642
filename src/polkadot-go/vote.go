package polkadot

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// Conviction is the lock multiplier of a ConvictionVoting vote.
type Conviction uint8

const (
	ConvictionNone Conviction = iota
	Locked1x
	Locked2x
	Locked3x
	Locked4x
	Locked5x
	Locked6x
)

func (c Conviction) String() string {
	if c == ConvictionNone {
		return "None"
	}
	return fmt.Sprintf("Locked%dx", uint8(c))
}

// ParseConviction accepts "none", "locked1x".."locked6x" or a digit 0..6.
func ParseConviction(s string) (Conviction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return ConvictionNone, nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "locked"), "x")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(Locked6x) {
		return 0, fmt.Errorf("invalid conviction %q", s)
	}
	return Conviction(n), nil
}

// standardVote encodes AccountVote::Standard { vote, balance }.
type standardVote struct {
	aye        bool
	conviction Conviction
	balance    types.U128
}

func newStandardVote(aye bool, conviction Conviction, balance *big.Int) standardVote {
	return standardVote{aye: aye, conviction: conviction, balance: types.NewU128(*balance)}
}

// voteByte packs direction and conviction: the high bit is aye.
func (v standardVote) voteByte() byte {
	b := byte(v.conviction) & 0x7f
	if v.aye {
		b |= 0x80
	}
	return b
}

func (v standardVote) Encode(encoder scale.Encoder) error {
	if err := encoder.PushByte(0); err != nil {
		return err
	}
	if err := encoder.PushByte(v.voteByte()); err != nil {
		return err
	}
	return encoder.Encode(v.balance)
}
