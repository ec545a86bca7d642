// Package datatest opens throwaway in-memory stores for tests.
package datatest

import (
	"context"
	"testing"

	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/gov"
	"gorm.io/gorm/logger"
)

// Open returns a migrated in-memory sqlite store closed at test cleanup.
func Open(t testing.TB) *data.Store {
	t.Helper()
	db, err := data.Open("sqlite::memory:", nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	if err := data.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = data.Close(db) })
	return data.NewStore(db)
}

// SeedProposal inserts a pending proposal for chainID.
func SeedProposal(t testing.TB, s *data.Store, chainID uint32) *gov.Proposal {
	t.Helper()
	p := &gov.Proposal{
		ChainID:     chainID,
		Title:       "Treasury proposal",
		Description: "<p>Fund community tooling</p>",
		Proposer:    "polkassembly",
	}
	if err := s.CreateProposal(context.Background(), p); err != nil {
		t.Fatalf("seed proposal: %v", err)
	}
	return p
}
