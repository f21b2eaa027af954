package selection

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	empty  map[string]bool
	active int
	peak   int
	block  chan struct{}
}

func (f *fakeFetcher) FetchProductImages(ctx context.Context, styleCode string) []models.ProductImage {
	f.mu.Lock()
	f.calls = append(f.calls, styleCode)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.active--
	empty := f.empty[styleCode]
	f.mu.Unlock()

	if empty {
		return nil
	}
	return []models.ProductImage{
		{StyleCode: styleCode, ImageType: "BACK", URLStandard: "https://cdn.example.com/" + styleCode + "-back.jpg"},
		{StyleCode: styleCode, ImageType: "FRONT", URLStandard: "https://cdn.example.com/" + styleCode + "-front.jpg"},
	}
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type delays struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (d *delays) sleep(_ context.Context, wait time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waits = append(d.waits, wait)
	return nil
}

func styleCodes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", 5000+i)
	}
	return out
}

func TestPrefetchPagePolicy(t *testing.T) {
	fetcher := &fakeFetcher{}
	d := &delays{}
	cache := NewImageCache(fetcher, WithCacheSleeper(d.sleep))

	var products []models.Product
	for _, code := range styleCodes(16) {
		products = append(products, models.Product{StyleCode: code})
	}

	fetched, err := cache.PrefetchPage(context.Background(), products)
	require.NoError(t, err)

	assert.Len(t, fetched, 15)
	assert.Equal(t, 15, fetcher.callCount())
	assert.LessOrEqual(t, fetcher.peak, 3)
	// five batches, four pauses
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, d.waits)

	img, ok := cache.Primary("5000")
	require.True(t, ok)
	assert.Equal(t, "FRONT", img.ImageType)
	_, ok = cache.Images("5015")
	assert.False(t, ok)
}

func TestPrefetchSkipsCachedAndDuplicates(t *testing.T) {
	fetcher := &fakeFetcher{}
	cache := NewImageCache(fetcher, WithCacheSleeper((&delays{}).sleep))
	ctx := context.Background()

	_, err := cache.Prefetch(ctx, []string{"5001", "5001", "5002"}, PagePolicy)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())

	fetched, err := cache.Prefetch(ctx, []string{"5001", "5002", "5003"}, PagePolicy)
	require.NoError(t, err)
	assert.Equal(t, []string{"5003"}, fetched)
	assert.Equal(t, 3, fetcher.callCount())
}

func TestPrefetchDoesNotCacheEmptyResults(t *testing.T) {
	fetcher := &fakeFetcher{empty: map[string]bool{"5001": true}}
	cache := NewImageCache(fetcher, WithCacheSleeper((&delays{}).sleep))
	ctx := context.Background()

	cache.Prefetch(ctx, []string{"5001"}, PagePolicy)
	_, ok := cache.Images("5001")
	assert.False(t, ok)

	cache.Prefetch(ctx, []string{"5001"}, PagePolicy)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestPrefetchSkipsInFlightCodes(t *testing.T) {
	fetcher := &fakeFetcher{block: make(chan struct{})}
	cache := NewImageCache(fetcher, WithCacheSleeper((&delays{}).sleep))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.Prefetch(ctx, []string{"5001"}, PagePolicy)
	}()

	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)

	fetched, err := cache.Prefetch(ctx, []string{"5001"}, PagePolicy)
	assert.NoError(t, err)
	assert.Empty(t, fetched)

	close(fetcher.block)
	<-done
	assert.Equal(t, 1, fetcher.callCount())
}

func TestPrefetchCategoryLogos(t *testing.T) {
	fetcher := &fakeFetcher{}
	d := &delays{}
	cache := NewImageCache(fetcher, WithCacheSleeper(d.sleep))

	var catalog []models.Product
	for i, code := range styleCodes(40) {
		catalog = append(catalog, models.Product{StyleCode: code, ProductType: fmt.Sprintf("type-%d", i%12)})
	}
	catalog = append(catalog, models.Product{StyleCode: "9999"})

	fetched, err := cache.PrefetchCategoryLogos(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, styleCodes(10), fetched)
	assert.LessOrEqual(t, fetcher.peak, 2)
	assert.Len(t, d.waits, 4)
}

func TestPrefetchCategoryLogosSkipsCachedRepresentatives(t *testing.T) {
	fetcher := &fakeFetcher{}
	cache := NewImageCache(fetcher, WithCacheSleeper((&delays{}).sleep))

	_, err := cache.Prefetch(context.Background(), []string{"5001"}, PagePolicy)
	require.NoError(t, err)

	catalog := []models.Product{
		{StyleCode: "5001", ProductType: "T-Shirts"},
		{StyleCode: "5002", ProductType: "T-Shirts"},
		{StyleCode: "5101", ProductType: "Hoodies"},
		{StyleCode: "5102", ProductType: "Hoodies"},
	}
	fetched, err := cache.PrefetchCategoryLogos(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, []string{"5002", "5101"}, fetched)
}

func TestPrefetchStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cache := NewImageCache(fetcher, WithCacheSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	fetched, err := cache.Prefetch(ctx, styleCodes(9), PagePolicy)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fetched, 3)
	assert.Equal(t, 3, fetcher.callCount())

	// released codes can be claimed again
	again, err := cache.Prefetch(context.Background(), styleCodes(9)[3:4], PagePolicy)
	assert.NoError(t, err)
	assert.Equal(t, []string{"5003"}, again)
}
