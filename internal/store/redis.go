package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luckyspin/rewards-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for hot, rarely written rows: settings and the active wheel prize
// table. Writes go to the primary store and invalidate the cache after the
// unit of work commits; reads in a View check Redis first then fall back to
// the primary. Reads inside InTx always hit the primary so locks and
// in-flight writes stay consistent.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	var dirty []string
	var mu sync.Mutex
	err := s.primary.InTx(ctx, func(q Queries) error {
		// Retries start from a clean slate.
		mu.Lock()
		dirty = dirty[:0]
		mu.Unlock()
		return fn(&txQueries{Queries: q, touch: func(key string) {
			mu.Lock()
			dirty = append(dirty, key)
			mu.Unlock()
		}})
	})
	if err != nil {
		return err
	}
	if len(dirty) > 0 {
		// Invalidate cache; next read will re-populate.
		s.rdb.Del(ctx, dirty...)
	}
	return nil
}

func (s *CachedStore) View(ctx context.Context, fn func(q Queries) error) error {
	return s.primary.View(ctx, func(q Queries) error {
		return fn(&viewQueries{Queries: q, s: s})
	})
}

// --- Write-through (write to primary, invalidate cache) ---

type txQueries struct {
	Queries
	touch func(key string)
}

func (q *txQueries) PutSetting(ctx context.Context, st *model.Setting) error {
	if err := q.Queries.PutSetting(ctx, st); err != nil {
		return err
	}
	q.touch(settingKey(st.Key))
	return nil
}

func (q *txQueries) InsertWheelPrize(ctx context.Context, p *model.WheelPrize) error {
	if err := q.Queries.InsertWheelPrize(ctx, p); err != nil {
		return err
	}
	q.touch(wheelPrizesKey)
	return nil
}

func (q *txQueries) UpdateWheelPrize(ctx context.Context, p *model.WheelPrize) error {
	if err := q.Queries.UpdateWheelPrize(ctx, p); err != nil {
		return err
	}
	q.touch(wheelPrizesKey)
	return nil
}

// --- Read-through (check cache first) ---

type viewQueries struct {
	Queries
	s *CachedStore
}

func (q *viewQueries) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	// Try cache.
	data, err := q.s.rdb.Get(ctx, settingKey(key)).Bytes()
	if err == nil {
		var st model.Setting
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	// Cache miss: read from primary.
	st, err := q.Queries.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}

	q.s.cache(ctx, settingKey(key), st)
	return st, nil
}

func (q *viewQueries) ListWheelPrizes(ctx context.Context, activeOnly bool) ([]model.WheelPrize, error) {
	// Only the active table is hot; admin listings pass through.
	if !activeOnly {
		return q.Queries.ListWheelPrizes(ctx, false)
	}

	data, err := q.s.rdb.Get(ctx, wheelPrizesKey).Bytes()
	if err == nil {
		var prizes []model.WheelPrize
		if json.Unmarshal(data, &prizes) == nil {
			return prizes, nil
		}
	}

	prizes, err := q.Queries.ListWheelPrizes(ctx, true)
	if err != nil {
		return nil, err
	}

	q.s.cache(ctx, wheelPrizesKey, prizes)
	return prizes, nil
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const wheelPrizesKey = "wheel:prizes:active"

func settingKey(key string) string { return fmt.Sprintf("setting:%s", key) }
