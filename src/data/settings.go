package data

import (
	"context"
	"sync"

	"github.com/stake-plus/govagent/src/gov"
	"gorm.io/gorm"
)

// Settings caches the active rows of the settings table.
type Settings struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewSettings returns an empty cache.
func NewSettings() *Settings {
	return &Settings{cache: make(map[string]string)}
}

// Load replaces the cache with all active settings from the database.
func (s *Settings) Load(ctx context.Context, db *gorm.DB) error {
	var settings []gov.Setting
	if err := db.WithContext(ctx).Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	cache := make(map[string]string, len(settings))
	for _, st := range settings {
		cache[st.Name] = st.Value
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	return nil
}

// Get retrieves a setting value from cache (call Load first).
func (s *Settings) Get(name string) string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[name]
}

// Put upserts a setting and updates the cache.
func (s *Settings) Put(ctx context.Context, db *gorm.DB, name, value string) error {
	var st gov.Setting
	err := db.WithContext(ctx).Where(gov.Setting{Name: name}).
		Assign(gov.Setting{Value: value, Active: 1}).
		FirstOrCreate(&st).Error
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()
	return nil
}
