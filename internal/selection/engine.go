// internal/selection/engine.go
package selection

import (
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

type CategoryCount struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected"`
}

type GenderCount struct {
	Gender string `json:"gender"`
	Count  int    `json:"count"`
}

// Engine holds the browse state of one client and derives the visible
// product list from it. Every filter or mode change returns to page 1, and
// selected categories that no longer occur in the category scope are dropped.
type Engine struct {
	mu sync.RWMutex

	mode      models.UserMode
	catalog   []models.Product
	published map[string]struct{}

	categories  map[string]struct{}
	collections map[string]struct{}
	weights     map[string]struct{}

	gender         string // admin filter
	genderCategory string // creator filter
	search         string

	page     int
	pageSize int

	log *logrus.Entry
}

func NewEngine(log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		mode:        models.UserModeAdmin,
		published:   make(map[string]struct{}),
		categories:  make(map[string]struct{}),
		collections: make(map[string]struct{}),
		weights:     make(map[string]struct{}),
		page:        1,
		pageSize:    utils.DefaultPageSize,
		log:         log.WithField("component", "selection"),
	}
}

// Inputs

func (e *Engine) SetCatalog(products []models.Product) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalog = append([]models.Product(nil), products...)
	e.prune()
}

func (e *Engine) SetPublished(products []models.PublishedProduct) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = make(map[string]struct{}, len(products))
	for _, p := range products {
		e.published[p.StyleCode] = struct{}{}
	}
	e.prune()
}

// SetMode switches modes and clears the gender and category filters.
func (e *Engine) SetMode(mode models.UserMode) {
	if !mode.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == mode {
		return
	}
	e.mode = mode
	e.gender = ""
	e.genderCategory = ""
	e.categories = make(map[string]struct{})
	e.changed()
}

func (e *Engine) Mode() models.UserMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Filters

func (e *Engine) ToggleCategory(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	toggle(e.categories, name)
	e.changed()
}

func (e *Engine) ToggleCollection(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	toggle(e.collections, name)
	e.changed()
}

func (e *Engine) ToggleWeight(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	toggle(e.weights, name)
	e.changed()
}

func (e *Engine) SetCategories(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.categories = toSet(names)
	e.changed()
}

func (e *Engine) SetCollections(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections = toSet(names)
	e.changed()
}

func (e *Engine) SetWeights(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = toSet(names)
	e.changed()
}

// SetGender sets the admin gender filter; "" and "All" disable it.
func (e *Engine) SetGender(gender string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gender = gender
	e.changed()
}

// SetGenderCategory sets the creator gender category. In creator mode this
// also clears the category selection.
func (e *Engine) SetGenderCategory(gender string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.genderCategory = gender
	if e.mode == models.UserModeCreator {
		e.categories = make(map[string]struct{})
	}
	e.changed()
}

func (e *Engine) SetSearch(query string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.search = query
	e.changed()
}

// Clear resets every admin filter.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.categories = make(map[string]struct{})
	e.collections = make(map[string]struct{})
	e.weights = make(map[string]struct{})
	e.gender = ""
	e.search = ""
	e.changed()
}

func (e *Engine) SelectedCategories() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.categories)
}

// Pagination

// SetPage moves to page n, clamped to the available pages, and returns the
// page actually selected.
func (e *Engine) SetPage(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := utils.TotalPages(len(e.filtered()), e.pageSize)
	e.page = utils.ClampPage(n, total)
	return e.page
}

func (e *Engine) Page() utils.PaginationResult[models.Product] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return utils.Paginate(e.filtered(), e.page, e.pageSize)
}

func (e *Engine) TotalPages() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return utils.TotalPages(len(e.filtered()), e.pageSize)
}

// Derived views

// Filtered returns every product visible under the current mode and filters.
func (e *Engine) Filtered() []models.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filtered()
}

// PublishedCatalog is the catalog restricted to published style codes, in
// catalog order.
func (e *Engine) PublishedCatalog() []models.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.publishedCatalog()
}

// CategoryScope is the product set categories are counted over.
func (e *Engine) CategoryScope() []models.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.categoryScope()
}

// CategoryCounts counts the category scope over the known category names.
func (e *Engine) CategoryCounts(includeEmpty bool) []CategoryCount {
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range e.categoryScope() {
		if p.ProductType != "" {
			counts[p.ProductType]++
		}
	}

	out := make([]CategoryCount, 0, len(models.KnownCategories))
	for _, name := range models.KnownCategories {
		n := counts[name]
		if n == 0 && !includeEmpty {
			continue
		}
		_, selected := e.categories[name]
		out = append(out, CategoryCount{Name: name, Count: n, Selected: selected})
	}
	return out
}

// GenderStats counts the published catalog under All and each gender option.
func (e *Engine) GenderStats() []GenderCount {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := e.publishedCatalog()
	out := []GenderCount{{Gender: models.GenderAll, Count: len(published)}}
	for _, g := range models.GenderOptions {
		n := 0
		for _, p := range published {
			if MatchesGender(p, g) {
				n++
			}
		}
		out = append(out, GenderCount{Gender: g, Count: n})
	}
	return out
}

// Collections lists the distinct core ranges in the catalog, sorted.
func (e *Engine) Collections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	set := make(map[string]struct{})
	for _, p := range e.catalog {
		if p.CoreRange != "" {
			set[p.CoreRange] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func (e *Engine) Weights() []string {
	return append([]string(nil), models.ProductWeights...)
}

// internals; callers hold e.mu

func (e *Engine) filtered() []models.Product {
	if e.mode == models.UserModeCreator {
		out := filterByGender(e.publishedCatalog(), e.genderCategory)
		out = filterBy(out, e.categories, func(p models.Product) string { return p.ProductType })
		return filterBySearch(out, e.search)
	}

	out := filterBy(e.catalog, e.categories, func(p models.Product) string { return p.ProductType })
	out = filterBy(out, e.collections, func(p models.Product) string { return p.CoreRange })
	out = filterBy(out, e.weights, func(p models.Product) string { return p.ProductWeight })
	out = filterBySearch(out, e.search)
	return filterByGender(out, e.gender)
}

func (e *Engine) publishedCatalog() []models.Product {
	out := make([]models.Product, 0, len(e.published))
	for _, p := range e.catalog {
		if _, ok := e.published[p.StyleCode]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) categoryScope() []models.Product {
	if e.mode == models.UserModeCreator {
		return filterByGender(e.publishedCatalog(), e.genderCategory)
	}
	return filterByGender(e.catalog, e.gender)
}

// prune drops selected categories missing from the category scope. A
// pruned selection counts as a filter change.
func (e *Engine) prune() {
	if len(e.categories) == 0 {
		return
	}
	available := make(map[string]struct{})
	for _, p := range e.categoryScope() {
		if p.ProductType != "" {
			available[p.ProductType] = struct{}{}
		}
	}
	for name := range e.categories {
		if _, ok := available[name]; !ok {
			delete(e.categories, name)
			e.page = 1
			e.log.WithField("category", name).Debug("Dropping unavailable category")
		}
	}
}

func (e *Engine) changed() {
	e.prune()
	e.page = 1
}

func filterBy(products []models.Product, selected map[string]struct{}, field func(models.Product) string) []models.Product {
	if len(selected) == 0 {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		v := field(p)
		if v == "" {
			continue
		}
		if _, ok := selected[v]; ok {
			out = append(out, p)
		}
	}
	return out
}

// filterBySearch matches the query case-insensitively against style name
// and style code.
func filterBySearch(products []models.Product, query string) []models.Product {
	if query == "" {
		return products
	}
	fold := cases.Fold()
	q := fold.String(query)

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(fold.String(p.StyleName), q) || strings.Contains(fold.String(p.StyleCode), q) {
			out = append(out, p)
		}
	}
	return out
}

func toggle(set map[string]struct{}, name string) {
	if _, ok := set[name]; ok {
		delete(set, name)
		return
	}
	set[name] = struct{}{}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
