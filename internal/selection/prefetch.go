// internal/selection/prefetch.go
package selection

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

// ImageFetcher is satisfied by *apiclient.Client.
type ImageFetcher interface {
	FetchProductImages(ctx context.Context, styleCode string) []models.ProductImage
}

// PrefetchPolicy bounds one prefetch run: at most Limit style codes, fetched
// BatchSize at a time with Delay between batches.
type PrefetchPolicy struct {
	Limit     int
	BatchSize int
	Delay     time.Duration
}

var (
	PagePolicy     = PrefetchPolicy{Limit: 15, BatchSize: 3, Delay: time.Second}
	CategoryPolicy = PrefetchPolicy{Limit: 10, BatchSize: 2, Delay: time.Second}
)

// ImageCache holds product images for the session and throttles how they are
// fetched. Empty results are not cached so they are retried later.
type ImageCache struct {
	fetcher ImageFetcher
	sleep   func(ctx context.Context, d time.Duration) error
	log     *logrus.Entry

	mu       sync.Mutex
	images   map[string][]models.ProductImage
	inflight map[string]struct{}
}

type CacheOption func(*ImageCache)

func WithCacheSleeper(sleep func(ctx context.Context, d time.Duration) error) CacheOption {
	return func(c *ImageCache) { c.sleep = sleep }
}

func WithCacheLogger(log *logrus.Entry) CacheOption {
	return func(c *ImageCache) { c.log = log }
}

func NewImageCache(fetcher ImageFetcher, opts ...CacheOption) *ImageCache {
	c := &ImageCache{
		fetcher:  fetcher,
		sleep:    utils.SleepContext,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		images:   make(map[string][]models.ProductImage),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "image_cache")
	return c
}

func (c *ImageCache) Images(styleCode string) ([]models.ProductImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	images, ok := c.images[styleCode]
	return images, ok
}

// Primary returns the representative image of a cached product.
func (c *ImageCache) Primary(styleCode string) (models.ProductImage, bool) {
	images, ok := c.Images(styleCode)
	if !ok {
		return models.ProductImage{}, false
	}
	return models.PrimaryImage(images)
}

// PrefetchPage loads images for the products of one page.
func (c *ImageCache) PrefetchPage(ctx context.Context, products []models.Product) ([]string, error) {
	codes := make([]string, 0, len(products))
	for _, p := range products {
		codes = append(codes, p.StyleCode)
	}
	return c.Prefetch(ctx, codes, PagePolicy)
}

// PrefetchCategoryLogos loads images for one product per category: the first
// product of that category that is neither cached nor loading.
func (c *ImageCache) PrefetchCategoryLogos(ctx context.Context, catalog []models.Product) ([]string, error) {
	c.mu.Lock()
	seen := make(map[string]struct{})
	var codes []string
	for _, p := range catalog {
		if p.ProductType == "" {
			continue
		}
		if _, ok := seen[p.ProductType]; ok {
			continue
		}
		if c.known(p.StyleCode) {
			continue
		}
		seen[p.ProductType] = struct{}{}
		codes = append(codes, p.StyleCode)
	}
	c.mu.Unlock()

	return c.Prefetch(ctx, codes, CategoryPolicy)
}

// Prefetch fetches the style codes that are neither cached nor in flight, in
// batches. It returns the codes it attempted.
func (c *ImageCache) Prefetch(ctx context.Context, styleCodes []string, policy PrefetchPolicy) ([]string, error) {
	todo := c.claim(styleCodes, policy.Limit)
	if len(todo) == 0 {
		return nil, nil
	}
	defer c.release(todo)

	batchSize := policy.BatchSize
	if batchSize <= 0 {
		batchSize = len(todo)
	}

	for start := 0; start < len(todo); start += batchSize {
		end := start + batchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]
		results := make([][]models.ProductImage, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, code := range batch {
			g.Go(func() error {
				results[i] = c.fetcher.FetchProductImages(gctx, code)
				return nil
			})
		}
		g.Wait()

		c.store(batch, results)

		if end < len(todo) {
			if err := c.sleep(ctx, policy.Delay); err != nil {
				return todo[:end], err
			}
		}
	}

	c.log.WithField("count", len(todo)).Debug("Prefetched product images")
	return todo, nil
}

// claim marks up to limit new codes in flight and returns them.
func (c *ImageCache) claim(styleCodes []string, limit int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var todo []string
	picked := make(map[string]struct{})
	for _, code := range styleCodes {
		if limit > 0 && len(todo) >= limit {
			break
		}
		if code == "" {
			continue
		}
		if c.known(code) {
			continue
		}
		if _, ok := picked[code]; ok {
			continue
		}
		picked[code] = struct{}{}
		todo = append(todo, code)
	}
	for _, code := range todo {
		c.inflight[code] = struct{}{}
	}
	return todo
}

// known reports whether code is cached or in flight. c.mu must be held.
func (c *ImageCache) known(code string) bool {
	if _, ok := c.images[code]; ok {
		return true
	}
	_, ok := c.inflight[code]
	return ok
}

func (c *ImageCache) release(codes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range codes {
		delete(c.inflight, code)
	}
}

func (c *ImageCache) store(codes []string, results [][]models.ProductImage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, code := range codes {
		if len(results[i]) > 0 {
			c.images[code] = results[i]
		}
	}
}
