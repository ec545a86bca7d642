package polkadot

import (
	"math/big"
	"time"
)

// ReferendumInfo is the subset of Referenda.ReferendumInfoFor the agent reads.
type ReferendumInfo struct {
	Index     uint32
	Status    string
	Track     uint16
	Submitted uint32
	Tally     *Tally
}

// Tally represents vote counts of an ongoing referendum
type Tally struct {
	Ayes    *big.Int
	Nays    *big.Int
	Support *big.Int
}

// Ongoing reports whether the referendum still accepts votes.
func (r *ReferendumInfo) Ongoing() bool {
	return r != nil && r.Status == StatusOngoing
}

// VoteRequest describes a single conviction vote to submit.
type VoteRequest struct {
	Referendum uint32
	Aye        bool
	Conviction Conviction
	Balance    *big.Int
}

// VoteReceipt is returned once a vote extrinsic is included in a block.
type VoteReceipt struct {
	TxHash    string
	BlockHash string
	Nonce     uint32
}

// Health summarizes the node connection.
type Health struct {
	Connected bool   `json:"connected"`
	Peers     uint64 `json:"peers"`
	IsSyncing bool   `json:"isSyncing"`
	Latency   string `json:"latency"`
}

// Config configures a Gateway.
type Config struct {
	URL              string
	Seed             string
	SS58Prefix       uint16
	CallTimeout      time.Duration
	InclusionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.InclusionTimeout <= 0 {
		c.InclusionTimeout = 3 * time.Minute
	}
	if c.SS58Prefix == 0 && c.URL == "" {
		c.SS58Prefix = 42
	}
	return c
}
