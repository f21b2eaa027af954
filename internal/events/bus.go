// internal/events/bus.go
package events

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
)

// Topic names an event and fixes its payload type.
type Topic[T any] struct {
	Name string
}

var (
	ModeChanged            = Topic[models.UserMode]{Name: "modeChanged"}
	ProductsSaved          = Topic[[]models.SavedProduct]{Name: "productsSaved"}
	ProductsPublished      = Topic[[]models.PublishedProduct]{Name: "productsPublished"}
	GeneratedImagesUpdated = Topic[[]models.GeneratedImageEntry]{Name: "generatedImagesUpdated"}
)

type handler func(payload interface{})

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. A nil *Bus drops everything.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
	log    *logrus.Entry
}

type subscription struct {
	id int
	fn handler
}

func NewBus(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{
		subs: make(map[string][]subscription),
		log:  log.WithField("component", "events"),
	}
}

// Subscribe registers fn for topic and returns a function that removes it.
func Subscribe[T any](b *Bus, topic Topic[T], fn func(T)) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic.Name] = append(b.subs[topic.Name], subscription{
		id: id,
		fn: func(payload interface{}) {
			if v, ok := payload.(T); ok {
				fn(v)
			}
		},
	})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic.Name, id) })
	}
}

// Publish notifies every current subscriber of topic.
func Publish[T any](b *Bus, topic Topic[T], payload T) {
	if b == nil {
		return
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[topic.Name]))
	copy(subs, b.subs[topic.Name])
	b.mu.RUnlock()

	b.log.WithFields(logrus.Fields{
		"event":       topic.Name,
		"subscribers": len(subs),
	}).Debug("Publishing event")

	for _, s := range subs {
		s.fn(payload)
	}
}

// Subscribers reports how many handlers are registered for a topic name.
func (b *Bus) Subscribers(name string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

func (b *Bus) remove(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id == id {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}
