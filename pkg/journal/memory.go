package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
)

// MemoryJournal keeps results in process memory. Entries expire after the TTL; a zero TTL keeps them forever.
type MemoryJournal struct {
	cache     *ttlcache.Cache[string, models.MintResult]
	closeOnce sync.Once
}

var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an empty in-memory journal and starts its eviction loop
func NewMemoryJournal(ttl time.Duration) *MemoryJournal {
	cache := ttlcache.New[string, models.MintResult](
		ttlcache.WithTTL[string, models.MintResult](ttl),
		// reading a result must not extend its lifetime
		ttlcache.WithDisableTouchOnHit[string, models.MintResult](),
	)
	go cache.Start()

	return &MemoryJournal{cache: cache}
}

func (j *MemoryJournal) Get(_ context.Context, id string) (*models.MintResult, error) {
	item := j.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}

	result := item.Value()
	return &result, nil
}

func (j *MemoryJournal) Put(_ context.Context, result *models.MintResult) error {
	if result == nil || result.ID == "" {
		return errors.New("result without id")
	}

	j.cache.Set(result.ID, *result, ttlcache.DefaultTTL)
	return nil
}

// Len returns the number of stored results
func (j *MemoryJournal) Len() int {
	return j.cache.Len()
}

// Close stops the eviction loop
func (j *MemoryJournal) Close() error {
	j.closeOnce.Do(j.cache.Stop)
	return nil
}
