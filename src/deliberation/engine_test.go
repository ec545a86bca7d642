package deliberation_test

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stake-plus/govagent/src/chat"
	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/data/datatest"
	"github.com/stake-plus/govagent/src/deliberation"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/oracle"
	"github.com/stake-plus/govagent/src/vote"
	"github.com/stake-plus/govagent/src/vote/votetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedOracle struct {
	mu       sync.Mutex
	decision oracle.Decision
	calls    int
	seen     [][]gov.ChatMessage
}

func (o *scriptedOracle) Deliberate(_ context.Context, _ *gov.Proposal, history []gov.ChatMessage) oracle.Decision {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.seen = append(o.seen, history)
	return o.decision
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []vote.Result
}

func (n *recordingNotifier) VoteCast(_ context.Context, _ *gov.Proposal, res vote.Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
	return nil
}

type fixture struct {
	store    *data.Store
	hub      *chat.Hub
	chain    *votetest.Chain
	oracle   *scriptedOracle
	engine   *deliberation.Engine
	notifier *recordingNotifier
	proposal *gov.Proposal
}

func newFixture(t *testing.T, balance int64, decision oracle.Decision, voting bool) *fixture {
	t.Helper()
	f := &fixture{
		store:    datatest.Open(t),
		chain:    votetest.NewChain(balance),
		oracle:   &scriptedOracle{decision: decision},
		notifier: &recordingNotifier{},
	}
	f.proposal = datatest.SeedProposal(t, f.store, 101)
	f.hub = chat.NewHub(f.store, nil)

	var exec deliberation.Executor
	if voting {
		exec = vote.NewExecutor(f.chain, f.store, vote.Config{}, nil)
	}
	f.engine = deliberation.New(f.store, f.hub, f.oracle, exec, nil, deliberation.Config{}, nil)
	f.engine.AddNotifier(f.notifier)
	f.hub.OnUserMessage(f.engine.HandleUserMessage)
	t.Cleanup(func() { _ = f.engine.Close(context.Background()) })
	return f
}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	_, err := f.hub.Publish(context.Background(), chat.Draft{ProposalID: f.proposal.ID, Sender: gov.SenderUser, Content: text})
	require.NoError(t, err)
}

func (f *fixture) messages(t *testing.T) []gov.ChatMessage {
	t.Helper()
	msgs, err := f.store.ListChatMessages(context.Background(), f.proposal.ID)
	require.NoError(t, err)
	return msgs
}

func (f *fixture) reload(t *testing.T) *gov.Proposal {
	t.Helper()
	p, err := f.store.GetProposal(context.Background(), f.proposal.ID)
	require.NoError(t, err)
	return p
}

func voteDecision() oracle.Decision {
	return oracle.Decision{
		ResponseText: "You have convinced me.",
		Intent:       &gov.VoteIntent{Vote: gov.VoteAye, Reasoning: "clear community benefit"},
	}
}

func TestTextOnlyTurn(t *testing.T) {
	f := newFixture(t, 1000, oracle.Decision{ResponseText: "What is the timeline?"}, true)

	f.say(t, "Please look at this")
	f.engine.Wait()

	msgs := f.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, gov.SenderUser, msgs[0].Sender)
	assert.Equal(t, gov.SenderAgent, msgs[1].Sender)
	assert.Equal(t, "What is the timeline?", msgs[1].Content)
	assert.Empty(t, f.chain.Submitted())
	assert.Equal(t, gov.StatusPending, f.reload(t).Status)

	require.Len(t, f.oracle.seen, 1)
	require.Len(t, f.oracle.seen[0], 1)
	assert.Equal(t, "Please look at this", f.oracle.seen[0][0].Content)
}

func TestVoteSucceeds(t *testing.T) {
	f := newFixture(t, 1000, voteDecision(), true)

	f.say(t, "I support this, please vote now")
	f.engine.Wait()

	p := f.reload(t)
	assert.Equal(t, gov.StatusVoted, p.Status)
	require.NotNil(t, p.VoteResult)
	assert.Equal(t, gov.VoteAye, *p.VoteResult)
	require.NotNil(t, p.VoteTxHash)
	require.NoError(t, p.CheckInvariants())

	sub := f.chain.Submitted()
	require.Len(t, sub, 1)
	assert.Equal(t, big.NewInt(500), sub[0].Balance)
	assert.Equal(t, uint32(101), sub[0].Referendum)

	msgs := f.messages(t)
	require.Len(t, msgs, 3)
	assert.Equal(t, "You have convinced me.", msgs[1].Content)
	assert.Equal(t, gov.SenderAgent, msgs[2].Sender)
	assert.Contains(t, msgs[2].Content, *p.VoteTxHash)
	assert.Contains(t, msgs[2].Content, "clear community benefit")

	require.Len(t, f.notifier.results, 1)
	assert.True(t, f.notifier.results[0].Success)
}

func TestVoteInsufficientBalance(t *testing.T) {
	f := newFixture(t, 0, voteDecision(), true)

	f.say(t, "I support this, please vote now")
	f.engine.Wait()

	p := f.reload(t)
	assert.Equal(t, gov.StatusPending, p.Status)
	assert.Nil(t, p.VoteTxHash)
	assert.Empty(t, f.chain.Submitted())

	msgs := f.messages(t)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "insufficient balance")
	assert.Empty(t, f.notifier.results)
}

func TestBackToBackIntentsVoteOnce(t *testing.T) {
	f := newFixture(t, 1000, voteDecision(), true)
	f.chain.SetDelay(50 * time.Millisecond)

	f.say(t, "Vote aye now")
	f.say(t, "Seriously, vote aye")
	f.engine.Wait()

	assert.Len(t, f.chain.Submitted(), 1)
	p := f.reload(t)
	assert.Equal(t, gov.StatusVoted, p.Status)

	var success, already int
	for _, m := range f.messages(t) {
		if m.Sender != gov.SenderAgent {
			continue
		}
		switch {
		case strings.HasPrefix(m.Content, "Vote cast"):
			success++
		case strings.Contains(m.Content, "already voted"):
			already++
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, already)
	assert.Equal(t, 2, f.oracle.calls)
}

func TestIntentAfterVoteReportsAlreadyVoted(t *testing.T) {
	f := newFixture(t, 1000, voteDecision(), true)
	_, err := f.store.MarkVoted(context.Background(), f.proposal.ID, gov.VoteNay, "0xabc")
	require.NoError(t, err)

	f.say(t, "Change your vote")
	f.engine.Wait()

	msgs := f.messages(t)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "already voted NAY")
	assert.Empty(t, f.chain.Submitted())
}

func TestVotingDisabled(t *testing.T) {
	f := newFixture(t, 1000, voteDecision(), false)

	f.say(t, "vote")
	f.engine.Wait()

	msgs := f.messages(t)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "voting is disabled")
	assert.Equal(t, gov.StatusPending, f.reload(t).Status)
}

func TestScheduleAfterClose(t *testing.T) {
	f := newFixture(t, 1000, oracle.Decision{ResponseText: "hi"}, true)
	require.NoError(t, f.engine.Close(context.Background()))

	err := f.engine.Schedule(gov.ChatMessage{ProposalID: f.proposal.ID})
	assert.ErrorIs(t, err, deliberation.ErrClosed)
}
