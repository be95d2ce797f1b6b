// Package sink delivers named measurements out of the pipelines.
package sink

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/events"
)

// Sink accepts a measurement. Publish must not block.
type Sink interface {
	Publish(path string, value float64)
}

// Func adapts a plain function to Sink.
type Func func(path string, value float64)

func (f Func) Publish(path string, value float64) { f(path, value) }

// Multi publishes to every sink in order.
type Multi []Sink

func (m Multi) Publish(path string, value float64) {
	for _, s := range m {
		s.Publish(path, value)
	}
}

// Measurement is the last value seen for a path.
type Measurement struct {
	Path      string    `json:"path"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache keeps the latest value of every path.
type Cache struct {
	mu     sync.RWMutex
	latest map[string]Measurement
	now    func() time.Time
}

func NewCache() *Cache {
	return &Cache{latest: make(map[string]Measurement), now: time.Now}
}

func (c *Cache) Publish(path string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[path] = Measurement{Path: path, Value: value, Timestamp: c.now()}
}

// Get returns the latest measurement for path.
func (c *Cache) Get(path string) (Measurement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.latest[path]
	return m, ok
}

// Snapshot returns all latest measurements sorted by path.
func (c *Cache) Snapshot() []Measurement {
	c.mu.RLock()
	ret := make([]Measurement, 0, len(c.latest))
	for _, m := range c.latest {
		ret = append(ret, m)
	}
	c.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool { return ret[i].Path < ret[j].Path })
	return ret
}

// Hub forwards measurements to event hub subscribers, e.g. /stream clients.
type Hub struct {
	hub *events.EventHub
}

func NewHub(h *events.EventHub) *Hub {
	return &Hub{hub: h}
}

func (h *Hub) Publish(path string, value float64) {
	h.hub.Publish(events.Measurement, events.MeasurementEvent{
		Path:  path,
		Value: value,
		Ts:    time.Now().UnixMilli(),
	})
}

// Log writes every measurement at trace level.
type Log struct{}

func (Log) Publish(path string, value float64) {
	logrus.WithFields(logrus.Fields{
		"path":  path,
		"value": value,
	}).Trace("measurement")
}
