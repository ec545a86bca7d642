package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stake-plus/govagent/src/gov"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a proposal does not exist.
	ErrNotFound = errors.New("data: not found")
	// ErrDuplicate is returned when a proposal with the same chain id exists.
	ErrDuplicate = errors.New("data: duplicate proposal")
)

var allModels = []interface{}{
	&gov.Proposal{}, &gov.ChatMessage{}, &gov.Setting{},
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("data: migrate: %w", err)
	}
	return nil
}

// Store persists proposals and chat messages.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	// msgMu keeps per-proposal timestamps non-decreasing across concurrent writers.
	msgMu sync.Mutex
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateProposal inserts a new pending proposal with score 0 and no vote data.
func (s *Store) CreateProposal(ctx context.Context, p *gov.Proposal) error {
	p.ID = 0
	p.Score = 0
	p.Status = gov.StatusPending
	p.VoteResult = nil
	p.VoteTxHash = nil
	p.Analysis = nil

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&gov.Proposal{}).Where("chain_id = ?", p.ChainID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(p).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || isUniqueViolation(err) {
			return fmt.Errorf("%w: chain id %d", ErrDuplicate, p.ChainID)
		}
		return fmt.Errorf("data: create proposal: %w", err)
	}
	return nil
}

// GetProposal loads a proposal by internal id.
func (s *Store) GetProposal(ctx context.Context, id uint64) (*gov.Proposal, error) {
	var p gov.Proposal
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("data: get proposal %d: %w", id, err)
	}
	return &p, nil
}

// GetProposalByChainID loads a proposal by its on-chain referendum index.
func (s *Store) GetProposalByChainID(ctx context.Context, chainID uint32) (*gov.Proposal, error) {
	var p gov.Proposal
	err := s.db.WithContext(ctx).First(&p, "chain_id = ?", chainID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("data: get proposal by chain id %d: %w", chainID, err)
	}
	return &p, nil
}

// ListProposals returns all proposals, newest first.
func (s *Store) ListProposals(ctx context.Context) ([]gov.Proposal, error) {
	var out []gov.Proposal
	if err := s.db.WithContext(ctx).Order("id desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("data: list proposals: %w", err)
	}
	return out, nil
}

// RecordAnalysis writes the ingestion-time score and analysis. It only applies
// to pending proposals that have not been analysed yet.
func (s *Store) RecordAnalysis(ctx context.Context, id uint64, score int, analysis string) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("data: score %d out of range", score)
	}
	res := s.db.WithContext(ctx).Model(&gov.Proposal{}).
		Where("id = ? AND status = ? AND analysis IS NULL", id, gov.StatusPending).
		Updates(map[string]interface{}{"score": score, "analysis": analysis})
	if res.Error != nil {
		return fmt.Errorf("data: record analysis %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gov.ErrNotPending
	}
	return nil
}

// MarkVoted performs the single pending -> voted commit. It reports false when
// the proposal was no longer pending, in which case nothing was written.
func (s *Store) MarkVoted(ctx context.Context, id uint64, vote gov.Vote, txHash string) (bool, error) {
	if err := gov.Transition(gov.StatusPending, gov.StatusVoted); err != nil {
		return false, err
	}
	if !vote.Valid() || txHash == "" {
		return false, fmt.Errorf("data: mark voted %d: invalid vote %q / hash %q", id, vote, txHash)
	}
	res := s.db.WithContext(ctx).Model(&gov.Proposal{}).
		Where("id = ? AND status = ? AND vote_tx_hash IS NULL", id, gov.StatusPending).
		Updates(map[string]interface{}{
			"status":       string(gov.StatusVoted),
			"vote_result":  string(vote),
			"vote_tx_hash": txHash,
		})
	if res.Error != nil {
		return false, fmt.Errorf("data: mark voted %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CreateChatMessage appends a message, assigning its id and timestamp.
func (s *Store) CreateChatMessage(ctx context.Context, m *gov.ChatMessage) error {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()

	ts := s.now().UTC().Truncate(time.Millisecond)

	var last gov.ChatMessage
	err := s.db.WithContext(ctx).
		Where("proposal_id = ?", m.ProposalID).
		Order("timestamp desc").Order("id desc").
		Limit(1).Find(&last).Error
	if err != nil {
		return fmt.Errorf("data: last message for %d: %w", m.ProposalID, err)
	}
	if last.ID != 0 && last.Timestamp.After(ts) {
		ts = last.Timestamp.UTC()
	}

	m.ID = 0
	m.Timestamp = ts
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("data: create chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns a proposal's history in publish order.
func (s *Store) ListChatMessages(ctx context.Context, proposalID uint64) ([]gov.ChatMessage, error) {
	var out []gov.ChatMessage
	err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("timestamp asc").Order("id asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("data: list messages for %d: %w", proposalID, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}
