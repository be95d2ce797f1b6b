package pipeline

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"
)

// MovingAverage emits the arithmetic mean of the last window inputs.
type MovingAverage struct {
	window int
	values []float64
}

// NewMovingAverage returns a filter over window values. A window below 1
// is treated as 1, i.e. no smoothing.
func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = 1
	}
	return &MovingAverage{
		window: window,
		values: make([]float64, 0, window),
	}
}

func (m *MovingAverage) Window() int { return m.window }

func (m *MovingAverage) Transform(v float64) float64 {
	if len(m.values) == m.window {
		copy(m.values, m.values[1:])
		m.values = m.values[:m.window-1]
	}
	m.values = append(m.values, v)
	return stat.Mean(m.values, nil)
}

// Tap clamps its input to [0, max], remembers it and passes it on. It is the
// only value shared between the continuous pipeline and the calibration
// sampler, so it is stored in an atomic cell.
type Tap struct {
	max  float64
	bits atomic.Uint64
	set  atomic.Bool
}

func NewTap(max float64) *Tap {
	return &Tap{max: max}
}

func (t *Tap) Transform(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > t.max:
		v = t.max
	}
	t.bits.Store(math.Float64bits(v))
	t.set.Store(true)
	return v
}

// Value returns the most recent clamped value and whether there has been one.
func (t *Tap) Value() (float64, bool) {
	return math.Float64frombits(t.bits.Load()), t.set.Load()
}

// LevelToVolume turns a fill fraction into cubic meters. The capacity in
// liters is read on every evaluation so edits apply on the next tick.
type LevelToVolume struct {
	capacityLiters func() float64
}

func NewLevelToVolume(capacityLiters func() float64) *LevelToVolume {
	return &LevelToVolume{capacityLiters: capacityLiters}
}

func (l *LevelToVolume) Transform(level float64) float64 {
	return level * (l.capacityLiters() / 1000)
}
