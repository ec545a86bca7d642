package deliberation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stake-plus/govagent/src/chat"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/oracle"
	"github.com/stake-plus/govagent/src/vote"
	"go.uber.org/zap"
)

// ErrClosed is returned when a turn is scheduled after Close.
var ErrClosed = errors.New("deliberation: engine closed")

const votingDisabledText = "I have reached a decision, but on-chain voting is disabled for this deployment, so no vote was cast."

type Store interface {
	GetProposal(ctx context.Context, id uint64) (*gov.Proposal, error)
	ListChatMessages(ctx context.Context, proposalID uint64) ([]gov.ChatMessage, error)
}

type Publisher interface {
	Publish(ctx context.Context, d chat.Draft) (gov.ChatMessage, error)
}

type Oracle interface {
	Deliberate(ctx context.Context, p *gov.Proposal, history []gov.ChatMessage) oracle.Decision
}

type Executor interface {
	Execute(ctx context.Context, p *gov.Proposal, intent *gov.VoteIntent) vote.Result
}

// Notifier mirrors successful votes to an outside channel.
type Notifier interface {
	VoteCast(ctx context.Context, p *gov.Proposal, res vote.Result) error
}

// Config bounds one turn.
type Config struct {
	TurnTimeout time.Duration
	LockTimeout time.Duration
}

// Engine reacts to user chat messages. Each message gets one turn, run on
// its own goroutine with a context detached from the request that carried
// the message.
type Engine struct {
	store     Store
	pub       Publisher
	oracle    Oracle
	exec      Executor
	locker    gov.Locker
	notifiers []Notifier
	cfg       Config
	log       *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New builds an Engine. exec may be nil when voting is disabled; locker
// defaults to an in-process KeyedMutex.
func New(store Store, pub Publisher, o Oracle, exec Executor, locker gov.Locker, cfg Config, log *zap.Logger) *Engine {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 6 * time.Minute
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Minute
	}
	if locker == nil {
		locker = gov.NewKeyedMutex()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, pub: pub, oracle: o, exec: exec, locker: locker, cfg: cfg, log: log.Named("deliberation")}
}

// AddNotifier registers an announcement sink. Call before serving.
func (e *Engine) AddNotifier(n Notifier) {
	e.notifiers = append(e.notifiers, n)
}

// HandleUserMessage schedules a turn for msg and returns immediately.
func (e *Engine) HandleUserMessage(msg gov.ChatMessage) {
	if err := e.Schedule(msg); err != nil {
		e.log.Warn("turn not scheduled", zap.Uint64("message", msg.ID), zap.Error(err))
	}
}

// Schedule starts a turn unless the engine is closed.
func (e *Engine) Schedule(msg gov.ChatMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.turn(msg)
	}()
	return nil
}

// Wait blocks until every scheduled turn has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Close refuses new turns and waits for running ones or ctx.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) turn(msg gov.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.TurnTimeout)
	defer cancel()
	log := e.log.With(zap.Uint64("proposal", msg.ProposalID), zap.Uint64("message", msg.ID))

	p, err := e.store.GetProposal(ctx, msg.ProposalID)
	if err != nil {
		log.Error("load proposal", zap.Error(err))
		return
	}
	history, err := e.store.ListChatMessages(ctx, p.ID)
	if err != nil || len(history) == 0 {
		log.Warn("load history", zap.Error(err))
		history = []gov.ChatMessage{msg}
	}

	decision := e.oracle.Deliberate(ctx, p, history)
	e.say(ctx, p.ID, decision.ResponseText, log)
	if decision.Intent == nil {
		return
	}
	log.Info("vote intent", zap.String("vote", string(decision.Intent.Vote)))

	if current, err := e.store.GetProposal(ctx, p.ID); err == nil && current.Status == gov.StatusVoted {
		e.say(ctx, p.ID, vote.AlreadyVotedText(current), log)
		return
	}
	if e.exec == nil {
		e.say(ctx, p.ID, votingDisabledText, log)
		return
	}

	res, err := e.execute(ctx, p, decision.Intent)
	if err != nil {
		log.Error("vote lock", zap.Error(err))
		e.say(ctx, p.ID, "I could not cast my vote right now because another vote attempt is still running. The proposal remains open.", log)
		return
	}
	e.say(ctx, p.ID, res.Announcement, log)

	if res.Success {
		for _, n := range e.notifiers {
			if err := n.VoteCast(ctx, p, res); err != nil {
				log.Warn("notify vote", zap.Error(err))
			}
		}
	}
}

func (e *Engine) execute(ctx context.Context, p *gov.Proposal, intent *gov.VoteIntent) (vote.Result, error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.cfg.LockTimeout)
	defer cancel()
	unlock, err := e.locker.Lock(lockCtx, p.ID)
	if err != nil {
		return vote.Result{}, err
	}
	defer unlock()
	return e.exec.Execute(ctx, p, intent), nil
}

func (e *Engine) say(ctx context.Context, proposalID uint64, text string, log *zap.Logger) {
	if text == "" {
		return
	}
	if _, err := e.pub.Publish(ctx, chat.Draft{ProposalID: proposalID, Sender: gov.SenderAgent, Content: text}); err != nil {
		log.Error("publish agent message", zap.Error(err))
	}
}
