package data_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/data/datatest"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProposalDefaults(t *testing.T) {
	s := datatest.Open(t)
	ctx := context.Background()

	hash := "0xdead"
	aye := gov.VoteAye
	p := &gov.Proposal{
		ChainID: 42, Title: "t", Description: "d", Proposer: "p",
		Score: 99, Status: gov.StatusVoted, VoteTxHash: &hash, VoteResult: &aye,
	}
	require.NoError(t, s.CreateProposal(ctx, p))
	require.NotZero(t, p.ID)

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, gov.StatusPending, got.Status)
	assert.Equal(t, 0, got.Score)
	assert.Nil(t, got.VoteTxHash)
	assert.Nil(t, got.VoteResult)
	require.NoError(t, got.CheckInvariants())
}

func TestCreateProposalDuplicateChainID(t *testing.T) {
	s := datatest.Open(t)
	datatest.SeedProposal(t, s, 7)

	err := s.CreateProposal(context.Background(), &gov.Proposal{ChainID: 7, Title: "x", Description: "y", Proposer: "z"})
	assert.ErrorIs(t, err, data.ErrDuplicate)
}

func TestGetProposalNotFound(t *testing.T) {
	s := datatest.Open(t)
	_, err := s.GetProposal(context.Background(), 999)
	assert.ErrorIs(t, err, data.ErrNotFound)
	_, err = s.GetProposalByChainID(context.Background(), 999)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestRecordAnalysisOnce(t *testing.T) {
	s := datatest.Open(t)
	ctx := context.Background()
	p := datatest.SeedProposal(t, s, 1)

	require.NoError(t, s.RecordAnalysis(ctx, p.ID, 72, `{"score":72}`))
	assert.ErrorIs(t, s.RecordAnalysis(ctx, p.ID, 10, `{"score":10}`), gov.ErrNotPending)
	assert.Error(t, s.RecordAnalysis(ctx, p.ID, 101, `{}`))

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 72, got.Score)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, `{"score":72}`, *got.Analysis)
}

func TestRecordAnalysisRejectedAfterVote(t *testing.T) {
	s := datatest.Open(t)
	ctx := context.Background()
	p := datatest.SeedProposal(t, s, 2)

	ok, err := s.MarkVoted(ctx, p.ID, gov.VoteNay, "0x01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, s.RecordAnalysis(ctx, p.ID, 40, `{}`), gov.ErrNotPending)
}

func TestMarkVotedAtMostOnce(t *testing.T) {
	s := datatest.Open(t)
	ctx := context.Background()
	p := datatest.SeedProposal(t, s, 3)

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.MarkVoted(ctx, p.ID, gov.VoteAye, "0xhash"+string(rune('a'+i)))
			if err != nil {
				t.Error(err)
			}
			results <- ok
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, gov.StatusVoted, got.Status)
	require.NoError(t, got.CheckInvariants())
	first := *got.VoteTxHash

	ok, err := s.MarkVoted(ctx, p.ID, gov.VoteNay, "0xother")
	require.NoError(t, err)
	assert.False(t, ok)
	got, err = s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *got.VoteTxHash)
	assert.Equal(t, gov.VoteAye, *got.VoteResult)
}

func TestMarkVotedValidatesInput(t *testing.T) {
	s := datatest.Open(t)
	p := datatest.SeedProposal(t, s, 4)
	_, err := s.MarkVoted(context.Background(), p.ID, gov.Vote("maybe"), "0x1")
	assert.Error(t, err)
	_, err = s.MarkVoted(context.Background(), p.ID, gov.VoteAye, "")
	assert.Error(t, err)
}

func TestChatMessagesOrderedAndNonDecreasing(t *testing.T) {
	s := datatest.Open(t)
	ctx := context.Background()
	p := datatest.SeedProposal(t, s, 5)
	other := datatest.SeedProposal(t, s, 6)

	for i := 0; i < 5; i++ {
		m := &gov.ChatMessage{ProposalID: p.ID, Sender: gov.SenderUser, Content: "msg"}
		require.NoError(t, s.CreateChatMessage(ctx, m))
		require.NotZero(t, m.ID)
		require.False(t, m.Timestamp.IsZero())
	}
	require.NoError(t, s.CreateChatMessage(ctx, &gov.ChatMessage{ProposalID: other.ID, Sender: gov.SenderAgent, Content: "elsewhere"}))

	msgs, err := s.ListChatMessages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
}

func TestListProposalsNewestFirst(t *testing.T) {
	s := datatest.Open(t)
	datatest.SeedProposal(t, s, 10)
	datatest.SeedProposal(t, s, 11)

	list, err := s.ListProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint32(11), list[0].ChainID)
}

func TestSettingsLoadAndPut(t *testing.T) {
	s := datatest.Open(t)
	ctx := context.Background()
	settings := data.NewSettings()

	require.NoError(t, settings.Put(ctx, s.DB(), "conviction", "3"))
	require.NoError(t, s.DB().Create(&gov.Setting{Name: "disabled", Value: "x", Active: 0}).Error)

	fresh := data.NewSettings()
	require.NoError(t, fresh.Load(ctx, s.DB()))
	assert.Equal(t, "3", fresh.Get("conviction"))
	assert.Equal(t, "", fresh.Get("disabled"))

	require.NoError(t, settings.Put(ctx, s.DB(), "conviction", "4"))
	require.NoError(t, fresh.Load(ctx, s.DB()))
	assert.Equal(t, "4", fresh.Get("conviction"))
}

func TestMemoryNonces(t *testing.T) {
	n := data.NewMemoryNonces()
	ctx := context.Background()

	require.NoError(t, n.SetNonce(ctx, "addr", "abc"))
	v, err := n.GetAndDelNonce(ctx, "addr")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = n.GetAndDelNonce(ctx, "addr")
	assert.ErrorIs(t, err, data.ErrNonceMissing)
}

func TestPingAndDSN(t *testing.T) {
	s := datatest.Open(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Ping(ctx))

	t.Setenv("DATABASE_URL", "")
	t.Setenv("MYSQL_DSN", "")
	_, err := data.GetDSN()
	assert.Error(t, err)

	t.Setenv("MYSQL_DSN", "u:p@tcp(h:3306)/db")
	dsn, err := data.GetDSN()
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(h:3306)/db", dsn)

	t.Setenv("DATABASE_URL", "sqlite:/tmp/x.db")
	dsn, err = data.GetDSN()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:/tmp/x.db", dsn)
}
