// internal/app/state.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/creator"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/events"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/selection"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/storage"
)

var ErrNothingToPublish = errors.New("no saved products to publish")

// Catalog is everything the client needs from the proxy.
type Catalog interface {
	creator.Catalog
	FetchProducts(ctx context.Context) []models.Product
	FetchProductDetails(ctx context.Context, styleCode string) (*models.Product, error)
	ColourMap(ctx context.Context) map[string]models.Swatch
	ProductSizes(ctx context.Context, styleCode, colour string) []string
}

// State wires the client together: the store announces changes on the bus
// and the engine follows them.
type State struct {
	Catalog Catalog
	Bus     *events.Bus
	Store   *storage.Store
	Engine  *selection.Engine
	Images  *selection.ImageCache
	Creator *creator.Service

	log *logrus.Entry

	mu       sync.RWMutex
	products []models.Product
	swatches map[string]models.Swatch
	stop     []func()
}

type Option func(*options)

type options struct {
	storeOpts []storage.Option
	cacheOpts []selection.CacheOption
}

func WithStoreOptions(opts ...storage.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

func WithCacheOptions(opts ...selection.CacheOption) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

func New(catalog Catalog, backend storage.Backend, log *logrus.Entry, opts ...Option) *State {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bus := events.NewBus(log)
	store := storage.New(backend, bus, log, o.storeOpts...)
	s := &State{
		Catalog:  catalog,
		Bus:      bus,
		Store:    store,
		Engine:   selection.NewEngine(log),
		Images:   selection.NewImageCache(catalog, append([]selection.CacheOption{selection.WithCacheLogger(log)}, o.cacheOpts...)...),
		Creator:  creator.NewService(catalog, store, log),
		log:      log.WithField("component", "app"),
		swatches: map[string]models.Swatch{},
	}

	s.stop = append(s.stop,
		events.Subscribe(bus, events.ModeChanged, s.Engine.SetMode),
		events.Subscribe(bus, events.ProductsPublished, s.Engine.SetPublished),
	)
	return s
}

// Load fetches the catalog and colour lookup and replays the stored state
// into the engine.
func (s *State) Load(ctx context.Context) error {
	start := time.Now()
	products := s.Catalog.FetchProducts(ctx)
	swatches := s.Catalog.ColourMap(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.products = products
	s.swatches = swatches
	s.mu.Unlock()

	s.Engine.SetCatalog(products)
	s.Store.Sync(ctx)

	s.log.WithFields(logrus.Fields{
		"products": len(products),
		"colours":  len(swatches),
		"duration": time.Since(start).String(),
	}).Info("Catalog loaded")
	return nil
}

func (s *State) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

// Product looks a style up in the loaded catalog.
func (s *State) Product(styleCode string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.StyleCode == styleCode {
			return p, true
		}
	}
	return models.Product{}, false
}

func (s *State) Swatch(colour string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.SwatchStyle(s.swatches, colour)
}

func (s *State) Mode(ctx context.Context) models.UserMode {
	return s.Store.Mode(ctx)
}

func (s *State) SetMode(ctx context.Context, mode models.UserMode) error {
	return s.Store.SetMode(ctx, mode)
}

// ToggleMode flips between admin and creator and returns the new mode.
func (s *State) ToggleMode(ctx context.Context) (models.UserMode, error) {
	next := s.Store.Mode(ctx).Toggle()
	if err := s.Store.SetMode(ctx, next); err != nil {
		return s.Store.Mode(ctx), err
	}
	return next, nil
}

// SaveSelection records the admin's colour choice for a product.
func (s *State) SaveSelection(ctx context.Context, product models.Product, colors []string) error {
	return s.Store.SaveProduct(ctx, models.SavedProduct{
		StyleCode:      product.StyleCode,
		StyleName:      product.StyleName,
		ProductType:    product.ProductType,
		SelectedColors: colors,
	})
}

// PublishSaved publishes every saved product, or only the given style codes
// when any are passed.
func (s *State) PublishSaved(ctx context.Context, styleCodes ...string) ([]models.PublishedProduct, error) {
	saved := s.Store.SavedProducts(ctx)
	if len(styleCodes) > 0 {
		want := make(map[string]struct{}, len(styleCodes))
		for _, c := range styleCodes {
			want[c] = struct{}{}
		}
		picked := saved[:0:0]
		for _, p := range saved {
			if _, ok := want[p.StyleCode]; ok {
				picked = append(picked, p)
				delete(want, p.StyleCode)
			}
		}
		if len(want) > 0 {
			missing := make([]string, 0, len(want))
			for code := range want {
				missing = append(missing, code)
			}
			sort.Strings(missing)
			return nil, fmt.Errorf("not in the saved selection: %s", strings.Join(missing, ", "))
		}
		saved = picked
	}
	if len(saved) == 0 {
		return nil, ErrNothingToPublish
	}
	return s.Store.PublishProducts(ctx, saved)
}

// ClearAll empties the saved selection and resets every admin filter.
func (s *State) ClearAll(ctx context.Context) error {
	if err := s.Store.ClearProducts(ctx); err != nil {
		return err
	}
	s.Engine.Clear()
	return nil
}

// Reset returns the client to admin mode with no workflow in progress.
func (s *State) Reset(ctx context.Context) error {
	if err := s.Store.ClearWorkflow(ctx); err != nil {
		return err
	}
	return s.Store.SetMode(ctx, models.UserModeAdmin)
}

// SummaryEntry is a product in the selection overview.
type SummaryEntry struct {
	models.SavedProduct
	Published   bool      `json:"published"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Summary merges published and saved products by style code. Saved entries
// override the colours of published ones.
func (s *State) Summary(ctx context.Context) []SummaryEntry {
	index := make(map[string]int)
	var out []SummaryEntry
	for _, p := range s.Store.PublishedProducts(ctx) {
		index[p.StyleCode] = len(out)
		out = append(out, SummaryEntry{SavedProduct: p.SavedProduct, Published: true, PublishedAt: p.PublishedAt})
	}
	for _, p := range s.Store.SavedProducts(ctx) {
		if i, ok := index[p.StyleCode]; ok {
			out[i].SavedProduct = p
			continue
		}
		index[p.StyleCode] = len(out)
		out = append(out, SummaryEntry{SavedProduct: p})
	}
	return out
}

// Close detaches the engine from the bus.
func (s *State) Close() {
	for _, stop := range s.stop {
		stop()
	}
	s.stop = nil
}
