package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often the store is consulted.
type countingStore struct {
	*MemoryStore
	reserves int
	err      error
}

func (c *countingStore) Reserve(ctx context.Context, key string, n int64) (int64, error) {
	c.reserves++
	if c.err != nil {
		return 0, c.err
	}
	return c.MemoryStore.Reserve(ctx, key, n)
}

var period = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := New(store, DefaultOptions())
	ctx := context.Background()
	cfg := DefaultConfig("TRK")

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2026-00002", num)
	assert.Equal(t, 2, store.reserves)
}

func TestGetNextNumber_YearlyReset(t *testing.T) {
	svc := New(NewMemoryStore(), DefaultOptions())
	ctx := context.Background()
	cfg := DefaultConfig("TRK")

	_, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)

	num, err := svc.GetNextNumber(ctx, cfg, period.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "TRK-2027-00001", num)
}

func TestGetNextNumber_Cached(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := New(store, Options{Strategy: StrategyCached, RangeSize: 10})
	ctx := context.Background()
	cfg := DefaultConfig("TRK")

	for i := 1; i <= 10; i++ {
		_, err := svc.GetNextNumber(ctx, cfg, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.reserves, "first range serves ten numbers")

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2026-00011", num)
	assert.Equal(t, 2, store.reserves)
}

func TestGetNextNumber_CachedConcurrent(t *testing.T) {
	svc := New(NewMemoryStore(), Options{Strategy: StrategyCached, RangeSize: 7})
	ctx := context.Background()
	cfg := DefaultConfig("TRK")

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.GetNextNumber(ctx, cfg, period)
			assert.NoError(t, err)
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	svc := New(NewMemoryStore(), Options{Strategy: StrategyCached, RangeSize: 10})
	ctx := context.Background()
	cfg := DefaultConfig("TRK")

	_, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, period, 100))

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2026-00100", num)
}

func TestGetNextNumber_StoreError(t *testing.T) {
	svc := New(&countingStore{MemoryStore: NewMemoryStore(), err: errors.New("boom")}, DefaultOptions())

	_, err := svc.GetNextNumber(context.Background(), DefaultConfig("TRK"), period)
	assert.ErrorContains(t, err, "boom")
}

func TestFormatAndParse(t *testing.T) {
	cfg := Config{Prefix: "TRK", PadWidth: 7, ResetPeriod: "never"}
	num := formatNumber(cfg, period, 42)
	assert.Equal(t, "TRK-0000042", num)
	assert.Equal(t, int64(42), ParseNumber(num))
	assert.Equal(t, int64(7), ParseNumber("TRK-2026-00007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
	assert.Equal(t, "TRK", buildKey(cfg, period))
	assert.Equal(t, "TRK_2026_03", buildKey(Config{Prefix: "TRK", ResetPeriod: "month"}, period))
}
