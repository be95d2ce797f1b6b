// Package curve implements the raw-to-fraction calibration curve of the tank
// level sensor.
//
// A curve is an ordered set of samples sorted ascending by raw value. Lookups
// interpolate linearly between the two samples bracketing the input and clamp
// to the end samples outside the covered range. The sample set is persisted
// to a store.Store under a configuration path.
package curve

import (
	"errors"
	"math"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/tankgauge/pkg/store"
)

// FullScale is the maximum raw reading of the level transducer (12-bit ADC).
const FullScale = 4095.0

// Sample maps one raw reading to a fill fraction in [0, 1].
type Sample struct {
	Raw      float64 `json:"raw" yaml:"raw"`
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

// Interpolator holds the curve and serves lookups. It is safe for concurrent
// use.
type Interpolator struct {
	mu        sync.RWMutex
	samples   []Sample
	st        store.Store
	key       string
	fullScale float64
}

// New returns an empty Interpolator persisted under key in st. Call Load to
// restore a previously saved curve.
func New(st store.Store, key string, fullScale float64) *Interpolator {
	if fullScale <= 0 {
		fullScale = FullScale
	}
	return &Interpolator{
		st:        st,
		key:       key,
		fullScale: fullScale,
	}
}

func (c *Interpolator) Key() string {
	return c.key
}

func (c *Interpolator) FullScale() float64 {
	return c.fullScale
}

// AddSample inserts a sample keeping the set sorted by raw value. A sample
// whose raw value equals existing ones goes after them, so the most recently
// added one wins on an exact lookup.
func (c *Interpolator) AddSample(raw, fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(Sample{Raw: raw, Fraction: fraction})
}

func (c *Interpolator) insert(s Sample) {
	i := sort.Search(len(c.samples), func(i int) bool {
		return c.samples[i].Raw > s.Raw
	})
	c.samples = append(c.samples, Sample{})
	copy(c.samples[i+1:], c.samples[i:])
	c.samples[i] = s
}

// ClearSamples removes all samples. It does not seed defaults.
func (c *Interpolator) ClearSamples() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = nil
}

// SeedDefaults replaces the curve with the two end points spanning the full
// raw range: (0, 0) and (full scale, 1).
func (c *Interpolator) SeedDefaults() {
	c.Replace(DefaultSamples(c.fullScale))
}

// DefaultSamples returns the default two-point curve for fullScale.
func DefaultSamples(fullScale float64) []Sample {
	return []Sample{
		{Raw: 0, Fraction: 0},
		{Raw: fullScale, Fraction: 1},
	}
}

// Replace swaps the whole sample set. Samples are inserted in the given
// order, so duplicates keep their relative order.
func (c *Interpolator) Replace(samples []Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = make([]Sample, 0, len(samples))
	for _, s := range samples {
		c.insert(s)
	}
}

// Samples returns a copy of the current sample set.
func (c *Interpolator) Samples() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Sample(nil), c.samples...)
}

func (c *Interpolator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Lookup converts a raw reading to a fraction.
//
// With no samples it returns 0, and with a single sample it returns that
// sample's fraction. Below the first sample the first fraction is returned,
// above the last sample the last fraction. An input equal to one or more
// sample raw values returns the fraction of the last of them. NaN is treated
// as below the first sample.
func (c *Interpolator) Lookup(raw float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.samples)
	switch {
	case n == 0:
		return 0
	case n == 1, math.IsNaN(raw):
		return c.samples[0].Fraction
	case raw < c.samples[0].Raw:
		return c.samples[0].Fraction
	case raw >= c.samples[n-1].Raw:
		return c.samples[n-1].Fraction
	}

	// First sample strictly above raw; 1 <= i <= n-1 here.
	i := sort.Search(n, func(i int) bool {
		return c.samples[i].Raw > raw
	})
	a, b := c.samples[i-1], c.samples[i]
	if a.Raw == raw || a.Raw == b.Raw {
		return a.Fraction
	}

	return a.Fraction + (raw-a.Raw)/(b.Raw-a.Raw)*(b.Fraction-a.Fraction)
}

// Transform makes the curve usable as a pipeline stage.
func (c *Interpolator) Transform(raw float64) float64 {
	return c.Lookup(raw)
}

type document struct {
	Samples []Sample `json:"samples"`
}

// Save writes the sample set to the store. A failure leaves the in-memory
// curve untouched; callers log it and carry on.
func (c *Interpolator) Save() error {
	if c.st == nil {
		return pkgerrors.New("curve has no store")
	}
	doc := document{Samples: c.Samples()}
	if err := store.PutJSON(c.st, c.key, doc); err != nil {
		return pkgerrors.Wrapf(err, "failed to save curve to %s", c.key)
	}
	return nil
}

// Load restores the sample set from the store. When nothing is stored it
// returns store.ErrNotFound and leaves the curve empty; callers apply their
// own seeding policy.
func (c *Interpolator) Load() error {
	if c.st == nil {
		return pkgerrors.New("curve has no store")
	}
	var doc document
	if err := store.GetJSON(c.st, c.key, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.ClearSamples()
			return err
		}
		return pkgerrors.Wrapf(err, "failed to load curve from %s", c.key)
	}
	c.Replace(doc.Samples)
	return nil
}
