package vote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/stake-plus/govagent/src/gov"
	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
	"go.uber.org/zap"
)

// Chain is the part of the chain gateway the executor needs.
type Chain interface {
	Address() string
	FreeBalance(ctx context.Context, address string) (*big.Int, error)
	SubmitVote(ctx context.Context, req polkadot.VoteRequest) (polkadot.VoteReceipt, error)
}

// Store is the part of the proposal store the executor needs.
type Store interface {
	GetProposal(ctx context.Context, id uint64) (*gov.Proposal, error)
	MarkVoted(ctx context.Context, id uint64, vote gov.Vote, txHash string) (bool, error)
}

// Config holds the voting policy.
type Config struct {
	Conviction polkadot.Conviction
	Decimals   uint8
	Symbol     string
	Timeout    time.Duration
	// CommitAttempts bounds how often a submitted vote's commit is tried
	// before the executor keeps it as unrecorded.
	CommitAttempts int
	CommitDelay    time.Duration
}

// Result describes one vote attempt.
type Result struct {
	Success      bool
	AlreadyVoted bool
	// Unrecorded means the vote is on chain but the store has not accepted it.
	Unrecorded bool
	Vote         gov.Vote
	TxHash       string
	Stake        *big.Int
	Err          error
	// Announcement is the chat text reporting the outcome.
	Announcement string
}

// Executor turns a vote intent into exactly one on-chain vote.
type Executor struct {
	chain Chain
	store Store
	cfg   Config
	log   *zap.Logger

	mu         sync.Mutex
	unrecorded map[uint64]submitted
}

// submitted is a vote the chain accepted but the store never committed.
type submitted struct {
	intent gov.VoteIntent
	stake  *big.Int
	txHash string
}

func NewExecutor(chain Chain, store Store, cfg Config, log *zap.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Minute
	}
	if cfg.CommitAttempts <= 0 {
		cfg.CommitAttempts = 4
	}
	if cfg.CommitDelay <= 0 {
		cfg.CommitDelay = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		chain:      chain,
		store:      store,
		cfg:        cfg,
		log:        log.Named("vote"),
		unrecorded: make(map[uint64]submitted),
	}
}

// Execute runs guard, stake, submit and commit for one proposal. Callers must
// hold the proposal's lock; the conditional commit still refuses a second
// writer if they do not.
func (e *Executor) Execute(ctx context.Context, p *gov.Proposal, intent *gov.VoteIntent) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	current, err := e.store.GetProposal(ctx, p.ID)
	if err != nil {
		return e.fail(p, "", fmt.Errorf("vote: load proposal: %w", err))
	}
	if current.Status == gov.StatusVoted {
		e.forget(current.ID)
		return e.alreadyVoted(current)
	}
	if sub, ok := e.pendingCommit(current.ID); ok {
		return e.record(ctx, current, sub)
	}
	if intent == nil || !intent.Vote.Valid() {
		return e.fail(current, "", ErrInvalidIntent)
	}

	log := e.log.With(zap.Uint64("proposal", current.ID), zap.Uint32("referendum", current.ChainID), zap.String("vote", string(intent.Vote)))

	balance, err := e.chain.FreeBalance(ctx, e.chain.Address())
	if err != nil {
		return e.fail(current, intent.Vote, fmt.Errorf("vote: read balance: %w", err))
	}
	stake, err := Stake(balance)
	if err != nil {
		log.Warn("no balance to stake", zap.String("balance", balance.String()))
		return e.fail(current, intent.Vote, err)
	}

	receipt, err := e.chain.SubmitVote(ctx, polkadot.VoteRequest{
		Referendum: current.ChainID,
		Aye:        intent.Vote == gov.VoteAye,
		Conviction: e.cfg.Conviction,
		Balance:    stake,
	})
	if err != nil {
		log.Error("vote submission failed", zap.Error(err))
		return e.fail(current, intent.Vote, fmt.Errorf("vote: submit: %w", err))
	}

	return e.record(ctx, current, submitted{intent: *intent, stake: stake, txHash: receipt.TxHash})
}

// record commits a vote the chain already accepted. The chain is never
// called again for the proposal while the commit is outstanding.
func (e *Executor) record(ctx context.Context, p *gov.Proposal, sub submitted) Result {
	log := e.log.With(zap.Uint64("proposal", p.ID), zap.Uint32("referendum", p.ChainID), zap.String("tx", sub.txHash))

	won, err := e.commit(ctx, p.ID, sub)
	if err != nil {
		e.mu.Lock()
		e.unrecorded[p.ID] = sub
		e.mu.Unlock()
		log.Error("vote included but not recorded", zap.Error(err))
		return Result{
			Unrecorded:   true,
			Vote:         sub.intent.Vote,
			TxHash:       sub.txHash,
			Stake:        sub.stake,
			Err:          fmt.Errorf("%w: %s: %w", ErrNotRecorded, sub.txHash, err),
			Announcement: unrecordedText(p, sub),
		}
	}
	e.forget(p.ID)
	if !won {
		log.Error("proposal committed by another writer after submission")
		res := e.alreadyVoted(p)
		res.TxHash = sub.txHash
		return res
	}

	log.Info("vote recorded", zap.String("stake", sub.stake.String()))
	return Result{
		Success:      true,
		Vote:         sub.intent.Vote,
		TxHash:       sub.txHash,
		Stake:        sub.stake,
		Announcement: e.successText(p, &sub.intent, sub.stake, sub.txHash),
	}
}

// commit retries MarkVoted with backoff, ignoring cancellation of ctx.
func (e *Executor) commit(ctx context.Context, id uint64, sub submitted) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
	defer cancel()

	delay := e.cfg.CommitDelay
	var err error
	for i := 0; i < e.cfg.CommitAttempts; i++ {
		if i > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return false, errors.Join(err, ctx.Err())
			case <-t.C:
			}
			delay *= 2
		}
		var won bool
		won, err = e.store.MarkVoted(ctx, id, sub.intent.Vote, sub.txHash)
		if err == nil {
			return won, nil
		}
	}
	return false, err
}

func (e *Executor) pendingCommit(id uint64) (submitted, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.unrecorded[id]
	return sub, ok
}

func (e *Executor) forget(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.unrecorded, id)
}

func (e *Executor) alreadyVoted(p *gov.Proposal) Result {
	res := Result{AlreadyVoted: true, Err: ErrAlreadyVoted, Announcement: AlreadyVotedText(p)}
	if p.VoteResult != nil {
		res.Vote = *p.VoteResult
	}
	return res
}

func (e *Executor) fail(p *gov.Proposal, v gov.Vote, err error) Result {
	return Result{Vote: v, Err: err, Announcement: failureText(p, err)}
}

func (e *Executor) successText(p *gov.Proposal, intent *gov.VoteIntent, stake *big.Int, txHash string) string {
	text := fmt.Sprintf("Vote cast on referendum #%d: %s with %s (conviction %s).",
		p.ChainID, upper(intent.Vote), FormatAmount(stake, e.cfg.Decimals, e.cfg.Symbol), e.cfg.Conviction)
	if intent.Reasoning != "" {
		text += "\nReasoning: " + intent.Reasoning
	}
	return text + "\nTransaction: " + txHash
}

// AlreadyVotedText is the note posted when a vote intent arrives after the
// proposal was voted.
func AlreadyVotedText(p *gov.Proposal) string {
	if p.VoteResult != nil && p.VoteTxHash != nil {
		return fmt.Sprintf("I already voted %s on referendum #%d (transaction %s). The vote is final.",
			upper(*p.VoteResult), p.ChainID, *p.VoteTxHash)
	}
	return fmt.Sprintf("I already voted on referendum #%d. The vote is final.", p.ChainID)
}

func unrecordedText(p *gov.Proposal, sub submitted) string {
	return fmt.Sprintf("My %s vote on referendum #%d was submitted (transaction %s) but is not yet recorded. I will not vote again on this proposal.",
		upper(sub.intent.Vote), p.ChainID, sub.txHash)
}

func failureText(p *gov.Proposal, err error) string {
	reason := "an unexpected error occurred"
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		reason = "insufficient balance"
	case errors.Is(err, ErrInvalidIntent):
		reason = "the decision did not name aye or nay"
	case errors.Is(err, polkadot.ErrExtrinsicRejected):
		reason = "the transaction was rejected by the network"
	case errors.Is(err, polkadot.ErrNoSigner):
		reason = "no voting key is configured"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "the chain did not respond in time"
	case err != nil:
		reason = err.Error()
	}
	return fmt.Sprintf("I could not cast my vote on referendum #%d: %s. The proposal remains open.", p.ChainID, reason)
}

func upper(v gov.Vote) string {
	switch v {
	case gov.VoteAye:
		return "AYE"
	case gov.VoteNay:
		return "NAY"
	}
	return string(v)
}
