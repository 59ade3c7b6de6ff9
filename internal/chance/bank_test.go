package chance_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

func grantN(t *testing.T, b *chance.Bank, userID string, n int) []*model.Chance {
	t.Helper()
	out := make([]*model.Chance, 0, n)
	for i := 0; i < n; i++ {
		c, err := b.Grant(context.Background(), userID, model.SourceTicket, "")
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestConsume_AvailableDropsByN(t *testing.T) {
	ctx := context.Background()
	b := chance.NewBank(store.NewMemoryStore())
	grantN(t, b, "u1", 7)

	before, err := b.Available(ctx, "u1")
	require.NoError(t, err)

	res, err := b.Consume(ctx, "u1", 5, model.UsedForLottery)
	require.NoError(t, err)
	assert.Equal(t, chance.Result{Consumed: 5, Remaining: 2}, res)

	after, err := b.Available(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before-5, after)
}

func TestConsume_FIFO(t *testing.T) {
	ctx := context.Background()
	b := chance.NewBank(store.NewMemoryStore())
	granted := grantN(t, b, "u1", 3)

	_, err := b.Consume(ctx, "u1", 2, model.UsedForWheel)
	require.NoError(t, err)

	history, _, err := b.History(ctx, "u1", model.Page{})
	require.NoError(t, err)
	used := map[string]bool{}
	for _, c := range history {
		used[c.ID] = c.Used
		if c.Used {
			assert.Equal(t, model.UsedForWheel, c.UsedFor)
			assert.NotNil(t, c.UsedAt)
		}
	}
	assert.True(t, used[granted[0].ID])
	assert.True(t, used[granted[1].ID])
	assert.False(t, used[granted[2].ID], "newest chance must be left")
}

func TestConsume_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	b := chance.NewBank(store.NewMemoryStore())
	grantN(t, b, "u1", 1)

	_, err := b.Consume(ctx, "u1", 2, model.UsedForWheel)
	require.ErrorIs(t, err, model.ErrInsufficientChances)

	sum, err := b.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.ChanceSummary{Total: 1, Used: 0, Available: 1}, sum)
}

func TestConsume_InvalidCount(t *testing.T) {
	b := chance.NewBank(store.NewMemoryStore())
	_, err := b.Consume(context.Background(), "u1", 0, model.UsedForSlide)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestConsume_ConcurrentSingleChance(t *testing.T) {
	ctx := context.Background()
	b := chance.NewBank(store.NewMemoryStore())
	grantN(t, b, "u1", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.Consume(ctx, "u1", 1, model.UsedForSlide)
		}(i)
	}
	wg.Wait()

	successes, shortfalls := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, model.ErrInsufficientChances):
			shortfalls++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, shortfalls)
}

func TestHistory_Pagination(t *testing.T) {
	ctx := context.Background()
	b := chance.NewBank(store.NewMemoryStore())
	grantN(t, b, "u1", 25)

	list, page, err := b.History(ctx, "u1", model.Page{Number: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.Equal(t, model.Pagination{Page: 2, Limit: 10, Total: 25, TotalPages: 3}, page)
}
