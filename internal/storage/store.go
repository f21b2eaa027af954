// internal/storage/store.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/events"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

const (
	SelectedProductsKey  = "as_colour_selected_products"
	PublishedProductsKey = "as_colour_published_products"
	UserModeKey          = "as_colour_user_mode"
	CreatorWorkflowKey   = "as_colour_creator_workflow"
	GeneratedImagesKey   = "as_colour_generated_images"
)

var (
	ErrNoColorsSelected = errors.New("at least one colour must be selected")
	ErrInvalidMode      = errors.New("mode must be admin or creator")
)

// Store exposes the persisted slots of the curation client. Every successful
// mutation of the product, publication, mode and image slots is announced on
// the bus. A Store without a backend reads defaults and writes nothing.
type Store struct {
	backend Backend
	bus     *events.Bus
	log     *logrus.Entry
	now     func() time.Time
	newID   func() string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func New(backend Backend, bus *events.Bus, log *logrus.Entry, opts ...Option) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Store{
		backend: backend,
		bus:     bus,
		log:     log.WithField("component", "storage"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether a persistent backend is attached.
func (s *Store) Available() bool {
	return s != nil && s.backend != nil
}

// Saved products

func (s *Store) SavedProducts(ctx context.Context) []models.SavedProduct {
	return readJSON(ctx, s, SelectedProductsKey, []models.SavedProduct{})
}

// SavedProduct returns the working-set entry for a style code.
func (s *Store) SavedProduct(ctx context.Context, styleCode string) (models.SavedProduct, bool) {
	for _, p := range s.SavedProducts(ctx) {
		if p.StyleCode == styleCode {
			return p, true
		}
	}
	return models.SavedProduct{}, false
}

// SaveProduct inserts or replaces the entry with the same style code.
func (s *Store) SaveProduct(ctx context.Context, product models.SavedProduct) error {
	if len(product.SelectedColors) == 0 {
		return ErrNoColorsSelected
	}
	if err := utils.ValidateStruct(&product); err != nil {
		return fmt.Errorf("invalid saved product: %w", err)
	}
	if !s.Available() {
		return nil
	}
	if product.Timestamp.IsZero() {
		product.Timestamp = s.now()
	}

	saved := s.SavedProducts(ctx)
	replaced := false
	for i := range saved {
		if saved[i].StyleCode == product.StyleCode {
			saved[i] = product
			replaced = true
			break
		}
	}
	if !replaced {
		saved = append(saved, product)
	}

	if err := s.writeJSON(ctx, SelectedProductsKey, saved); err != nil {
		s.log.WithError(err).WithField("style_code", product.StyleCode).Error("Error saving product")
		return err
	}
	events.Publish(s.bus, events.ProductsSaved, saved)
	return nil
}

func (s *Store) RemoveProduct(ctx context.Context, styleCode string) error {
	if !s.Available() {
		return nil
	}

	saved := s.SavedProducts(ctx)
	kept := make([]models.SavedProduct, 0, len(saved))
	for _, p := range saved {
		if p.StyleCode != styleCode {
			kept = append(kept, p)
		}
	}

	if err := s.writeJSON(ctx, SelectedProductsKey, kept); err != nil {
		s.log.WithError(err).WithField("style_code", styleCode).Error("Error removing product")
		return err
	}
	events.Publish(s.bus, events.ProductsSaved, kept)
	return nil
}

func (s *Store) ClearProducts(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	if err := s.backend.Delete(ctx, SelectedProductsKey); err != nil {
		s.log.WithError(err).Error("Error clearing products")
		return err
	}
	events.Publish(s.bus, events.ProductsSaved, []models.SavedProduct{})
	return nil
}

// Published products

// PublishProducts promotes products into the published set, replacing
// entries with the same style code and keeping every other entry.
func (s *Store) PublishProducts(ctx context.Context, products []models.SavedProduct) ([]models.PublishedProduct, error) {
	if !s.Available() {
		return []models.PublishedProduct{}, nil
	}

	publishedAt := s.now()
	merged := s.PublishedProducts(ctx)
	for _, p := range products {
		entry := models.PublishedProduct{
			SavedProduct: p,
			Published:    true,
			PublishedAt:  publishedAt,
		}
		replaced := false
		for i := range merged {
			if merged[i].StyleCode == p.StyleCode {
				merged[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, entry)
		}
	}

	if err := s.writeJSON(ctx, PublishedProductsKey, merged); err != nil {
		s.log.WithError(err).WithField("count", len(products)).Error("Error publishing products")
		return nil, err
	}
	events.Publish(s.bus, events.ProductsPublished, merged)
	return merged, nil
}

func (s *Store) PublishedProducts(ctx context.Context) []models.PublishedProduct {
	return readJSON(ctx, s, PublishedProductsKey, []models.PublishedProduct{})
}

func (s *Store) PublishedProduct(ctx context.Context, styleCode string) (models.PublishedProduct, bool) {
	for _, p := range s.PublishedProducts(ctx) {
		if p.StyleCode == styleCode {
			return p, true
		}
	}
	return models.PublishedProduct{}, false
}

func (s *Store) ClearPublished(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	if err := s.backend.Delete(ctx, PublishedProductsKey); err != nil {
		s.log.WithError(err).Error("Error clearing published products")
		return err
	}
	events.Publish(s.bus, events.ProductsPublished, []models.PublishedProduct{})
	return nil
}

// User mode

func (s *Store) SetMode(ctx context.Context, mode models.UserMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	if !s.Available() {
		return nil
	}
	if err := s.backend.Set(ctx, UserModeKey, string(mode)); err != nil {
		s.log.WithError(err).WithField("mode", mode).Error("Error setting user mode")
		return err
	}
	events.Publish(s.bus, events.ModeChanged, mode)
	return nil
}

// Mode defaults to admin when unset or unrecognised.
func (s *Store) Mode(ctx context.Context) models.UserMode {
	if !s.Available() {
		return models.UserModeAdmin
	}
	value, ok, err := s.backend.Get(ctx, UserModeKey)
	if err != nil {
		s.log.WithError(err).Error("Error reading user mode")
		return models.UserModeAdmin
	}
	mode := models.UserMode(value)
	if !ok || !mode.Valid() {
		return models.UserModeAdmin
	}
	return mode
}

// Creator workflow

// SaveWorkflow replaces the whole workflow record.
func (s *Store) SaveWorkflow(ctx context.Context, data models.CreatorWorkflowData) error {
	if err := utils.ValidateStruct(&data); err != nil {
		return fmt.Errorf("invalid creator workflow: %w", err)
	}
	if !s.Available() {
		return nil
	}
	if err := s.writeJSON(ctx, CreatorWorkflowKey, data); err != nil {
		s.log.WithError(err).WithField("style_code", data.SelectedProduct.StyleCode).Error("Error saving creator workflow")
		return err
	}
	return nil
}

// Workflow returns nil when no workflow is in progress.
func (s *Store) Workflow(ctx context.Context) *models.CreatorWorkflowData {
	return readJSON[*models.CreatorWorkflowData](ctx, s, CreatorWorkflowKey, nil)
}

func (s *Store) ClearWorkflow(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	if err := s.backend.Delete(ctx, CreatorWorkflowKey); err != nil {
		s.log.WithError(err).Error("Error clearing creator workflow")
		return err
	}
	return nil
}

// Generated images

// GeneratedImages is ordered newest first.
func (s *Store) GeneratedImages(ctx context.Context) []models.GeneratedImageEntry {
	return readJSON(ctx, s, GeneratedImagesKey, []models.GeneratedImageEntry{})
}

// SaveGeneratedImage assigns a fresh id and creation time and prepends the
// entry to the history. It returns nil when no backend is attached.
func (s *Store) SaveGeneratedImage(ctx context.Context, entry models.GeneratedImageEntry) (*models.GeneratedImageEntry, error) {
	if !s.Available() {
		return nil, nil
	}

	entry.ID = s.newID()
	entry.CreatedAt = s.now()
	if entry.SelectedColors == nil {
		entry.SelectedColors = []string{}
	}

	images := append([]models.GeneratedImageEntry{entry}, s.GeneratedImages(ctx)...)
	if err := s.writeJSON(ctx, GeneratedImagesKey, images); err != nil {
		s.log.WithError(err).WithField("style_code", entry.Product.StyleCode).Error("Error saving generated image")
		return nil, err
	}
	events.Publish(s.bus, events.GeneratedImagesUpdated, images)
	return &entry, nil
}

func (s *Store) ClearGeneratedImages(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	if err := s.backend.Delete(ctx, GeneratedImagesKey); err != nil {
		s.log.WithError(err).Error("Error clearing generated images")
		return err
	}
	events.Publish(s.bus, events.GeneratedImagesUpdated, []models.GeneratedImageEntry{})
	return nil
}

// Sync re-reads every announced slot and republishes it, for consumers that
// may have missed changes written by another process.
func (s *Store) Sync(ctx context.Context) {
	events.Publish(s.bus, events.ModeChanged, s.Mode(ctx))
	events.Publish(s.bus, events.ProductsSaved, s.SavedProducts(ctx))
	events.Publish(s.bus, events.ProductsPublished, s.PublishedProducts(ctx))
	events.Publish(s.bus, events.GeneratedImagesUpdated, s.GeneratedImages(ctx))
}

// readJSON never fails: missing, unreadable and malformed values all yield def.
func readJSON[T any](ctx context.Context, s *Store, key string, def T) T {
	if !s.Available() {
		return def
	}

	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Error reading stored value")
		return def
	}
	if !ok || raw == "" {
		return def
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.WithError(err).WithField("key", key).Error("Discarding malformed stored value")
		return def
	}
	return out
}

func (s *Store) writeJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.Set(ctx, key, string(data))
}
