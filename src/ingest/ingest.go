package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/gov"
	"github.com/stake-plus/govagent/src/oracle"
	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
	"github.com/stake-plus/govagent/src/polkassembly"
	"go.uber.org/zap"
)

var (
	ErrAlreadyIngested = errors.New("ingest: proposal already exists")
	ErrNotOnChain      = errors.New("ingest: referendum not found on chain")
)

type Source interface {
	FetchReferendum(ctx context.Context, index uint32) (*polkassembly.Post, error)
}

type Chain interface {
	ReferendumInfo(ctx context.Context, index uint32) (*polkadot.ReferendumInfo, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, p *gov.Proposal) oracle.Analysis
}

type Store interface {
	GetProposal(ctx context.Context, id uint64) (*gov.Proposal, error)
	GetProposalByChainID(ctx context.Context, chainID uint32) (*gov.Proposal, error)
	CreateProposal(ctx context.Context, p *gov.Proposal) error
	RecordAnalysis(ctx context.Context, id uint64, score int, analysis string) error
}

// Service creates proposals from referenda and runs the first analysis.
type Service struct {
	store    Store
	source   Source
	chain    Chain
	analyzer Analyzer
	policy   *bluemonday.Policy
	log      *zap.Logger
}

// New builds a Service. chain may be nil to skip the on-chain check.
func New(store Store, source Source, chain Chain, analyzer Analyzer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		source:   source,
		chain:    chain,
		analyzer: analyzer,
		policy:   bluemonday.UGCPolicy(),
		log:      log.Named("ingest"),
	}
}

// Ingest fetches referendum chainID, stores it as pending and records its
// analysis.
func (s *Service) Ingest(ctx context.Context, chainID uint32) (*gov.Proposal, error) {
	log := s.log.With(zap.Uint32("referendum", chainID))

	if _, err := s.store.GetProposalByChainID(ctx, chainID); err == nil {
		return nil, fmt.Errorf("%w: referendum %d", ErrAlreadyIngested, chainID)
	} else if !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}

	if s.chain != nil {
		info, err := s.chain.ReferendumInfo(ctx, chainID)
		switch {
		case errors.Is(err, polkadot.ErrReferendumNotFound):
			return nil, fmt.Errorf("%w: %d", ErrNotOnChain, chainID)
		case err != nil:
			log.Warn("chain check skipped", zap.Error(err))
		case !info.Ongoing():
			log.Warn("referendum no longer ongoing", zap.String("status", info.Status))
		}
	}

	post, err := s.source.FetchReferendum(ctx, chainID)
	if err != nil {
		return nil, err
	}

	p := &gov.Proposal{
		ChainID:     chainID,
		Title:       strings.TrimSpace(post.Title),
		Description: strings.TrimSpace(s.policy.Sanitize(post.Content)),
		Proposer:    strings.TrimSpace(post.Proposer),
	}
	if p.Title == "" {
		p.Title = fmt.Sprintf("Referendum #%d", chainID)
	}
	p.Title = gov.Truncate(p.Title, 255)
	if err := s.store.CreateProposal(ctx, p); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, fmt.Errorf("%w: referendum %d", ErrAlreadyIngested, chainID)
		}
		return nil, err
	}
	log.Info("proposal created", zap.Uint64("proposal", p.ID))

	analysis := s.analyzer.Analyze(ctx, p)
	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("ingest: encode analysis: %w", err)
	}
	if err := s.store.RecordAnalysis(ctx, p.ID, analysis.Score, string(raw)); err != nil {
		log.Warn("analysis not recorded", zap.Error(err))
	}
	return s.store.GetProposal(ctx, p.ID)
}
