// Package votetest provides an in-memory chain for executor tests.
package votetest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
)

const AgentAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

// Chain records submitted votes instead of sending them.
type Chain struct {
	mu         sync.Mutex
	balance    *big.Int
	balanceErr error
	submitErr  error
	delay      time.Duration
	submitted  []polkadot.VoteRequest
}

// NewChain returns a chain whose agent account holds balance planck.
func NewChain(balance int64) *Chain {
	return &Chain{balance: big.NewInt(balance)}
}

func (c *Chain) SetBalance(b *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = b
}

func (c *Chain) FailBalance(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceErr = err
}

func (c *Chain) FailSubmit(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitErr = err
}

// SetDelay makes SubmitVote wait before "including" the vote.
func (c *Chain) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

func (c *Chain) Address() string { return AgentAddress }

func (c *Chain) FreeBalance(_ context.Context, address string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if address != AgentAddress {
		return nil, fmt.Errorf("unexpected address %s", address)
	}
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return new(big.Int).Set(c.balance), nil
}

func (c *Chain) SubmitVote(ctx context.Context, req polkadot.VoteRequest) (polkadot.VoteReceipt, error) {
	c.mu.Lock()
	delay, err := c.delay, c.submitErr
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return polkadot.VoteReceipt{}, ctx.Err()
		}
	}
	if err != nil {
		return polkadot.VoteReceipt{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted = append(c.submitted, req)
	return polkadot.VoteReceipt{
		TxHash:    fmt.Sprintf("0x%064x", len(c.submitted)),
		BlockHash: "0xb10c",
		Nonce:     uint32(len(c.submitted) - 1),
	}, nil
}

// Submitted returns a copy of every vote that reached the chain.
func (c *Chain) Submitted() []polkadot.VoteRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]polkadot.VoteRequest(nil), c.submitted...)
}
