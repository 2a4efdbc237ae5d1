package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	cats  []Category
	prods []Product
	err   error
	calls atomic.Int32
}

func (f *fakeSource) StoreCategories(context.Context) ([]Category, error) {
	f.calls.Add(1)
	return f.cats, f.err
}

func (f *fakeSource) StoreProducts(context.Context) ([]Product, error) {
	return f.prods, f.err
}

func sampleSource() *fakeSource {
	return &fakeSource{
		cats: []Category{{ID: 1, Name: "Coffee"}, {ID: 2, Name: "Tea"}},
		prods: []Product{
			{ID: 10, CategoryID: 1, Name: "Latte", Price: 350},
			{ID: 11, CategoryID: 2, Name: "Green Tea", Price: 250},
			{ID: 12, CategoryID: 1, Name: "Espresso", Price: 200},
		},
	}
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, "kiosk:catalog", 5*time.Minute), mr
}

func TestFilter(t *testing.T) {
	src := sampleSource()

	coffee := Filter(src.prods, 1)
	require.Len(t, coffee, 2)
	assert.Equal(t, "Latte", coffee[0].Name)
	assert.Equal(t, "Espresso", coffee[1].Name)

	assert.Len(t, Filter(src.prods, 0), 3)
	assert.Empty(t, Filter(src.prods, 99))
}

func TestDefaultCategory(t *testing.T) {
	assert.Equal(t, int64(1), DefaultCategory(sampleSource().cats))
	assert.Equal(t, int64(0), DefaultCategory(nil))
}

func TestLoad_WithoutCache(t *testing.T) {
	src := sampleSource()
	svc := NewService(src, nil)

	snap, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Categories, 2)
	assert.Len(t, snap.Products, 3)

	p, ok := snap.Product(11)
	require.True(t, ok)
	assert.Equal(t, int64(250), p.Price)
}

func TestLoad_SourceErrorReturnsEmptySnapshot(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	svc := NewService(src, nil)

	snap, err := svc.Load(context.Background())
	assert.Error(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Categories)
	assert.Empty(t, snap.Products)
}

func TestLoad_PopulatesAndUsesCache(t *testing.T) {
	cache, mr := setupTestRedis(t)
	src := sampleSource()
	svc := NewService(src, cache)

	_, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return mr.Exists("kiosk:catalog") }, time.Second, 10*time.Millisecond)

	// a second kiosk process starts cold and reads the shared copy
	other := NewService(src, cache)
	snap, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Products, 3)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLoad_ServesFromMemoryWithinTTL(t *testing.T) {
	src := sampleSource()
	svc := NewService(src, nil)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := svc.Load(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	now = now.Add(DefaultTTL)
	_, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestLoad_KeepsLastGoodCopyWhenSourceFails(t *testing.T) {
	src := sampleSource()
	svc := NewService(src, nil, WithTTL(time.Second))
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	src.err = errors.New("connection refused")
	now = now.Add(time.Minute)

	snap, err := svc.Load(context.Background())
	require.NoError(t, err)
	p, ok := snap.Product(10)
	require.True(t, ok)
	assert.Equal(t, "Latte", p.Name)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	snap, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, snap)
}

func TestRedisCache_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("kiosk:catalog", "{not json"))

	_, err := cache.Get(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_RoundTripHonoursTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	snap := &Snapshot{Categories: []Category{{ID: 1, Name: "Coffee"}}}

	require.NoError(t, cache.Set(context.Background(), snap))
	assert.Equal(t, 5*time.Minute, mr.TTL("kiosk:catalog"))

	raw, err := mr.Get("kiosk:catalog")
	require.NoError(t, err)
	var stored Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "Coffee", stored.Categories[0].Name)

	mr.FastForward(6 * time.Minute)
	_, err = cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
}
