package curve

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/tankgauge/pkg/store"
)

const key = "/tank/level/curve"

func newCurve(t *testing.T, samples ...Sample) *Interpolator {
	t.Helper()
	c := New(store.NewMemory(), key, FullScale)
	for _, s := range samples {
		c.AddSample(s.Raw, s.Fraction)
	}
	return c
}

func TestAddSampleKeepsOrder(t *testing.T) {
	c := newCurve(t,
		Sample{Raw: 300, Fraction: 0.5},
		Sample{Raw: 100, Fraction: 0.1},
		Sample{Raw: 200, Fraction: 0.2},
		Sample{Raw: 100, Fraction: 0.15},
	)

	assert.Equal(t, []Sample{
		{Raw: 100, Fraction: 0.1},
		{Raw: 100, Fraction: 0.15},
		{Raw: 200, Fraction: 0.2},
		{Raw: 300, Fraction: 0.5},
	}, c.Samples())
}

func TestLookupDegenerate(t *testing.T) {
	c := newCurve(t)
	assert.Equal(t, 0.0, c.Lookup(1000))

	c.AddSample(500, 0.4)
	assert.Equal(t, 0.4, c.Lookup(0))
	assert.Equal(t, 0.4, c.Lookup(4000))
}

func TestLookup(t *testing.T) {
	c := newCurve(t,
		Sample{Raw: 100, Fraction: 0},
		Sample{Raw: 300, Fraction: 0.5},
		Sample{Raw: 500, Fraction: 1},
	)

	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{name: "below first", raw: 0, want: 0},
		{name: "first", raw: 100, want: 0},
		{name: "inside first segment", raw: 200, want: 0.25},
		{name: "breakpoint", raw: 300, want: 0.5},
		{name: "inside second segment", raw: 450, want: 0.875},
		{name: "last", raw: 500, want: 1},
		{name: "above last", raw: 4095, want: 1},
		{name: "NaN", raw: math.NaN(), want: 0},
		{name: "positive infinity", raw: math.Inf(1), want: 1},
		{name: "negative infinity", raw: math.Inf(-1), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, c.Lookup(tt.raw), 1e-12)
		})
	}
}

func TestLookupContinuousAtBreakpoints(t *testing.T) {
	c := newCurve(t,
		Sample{Raw: 0, Fraction: 0},
		Sample{Raw: 1000, Fraction: 0.3},
		Sample{Raw: 2500, Fraction: 0.35},
		Sample{Raw: 4095, Fraction: 1},
	)

	const eps = 1e-6
	for _, s := range c.Samples()[1:3] {
		assert.InDelta(t, s.Fraction, c.Lookup(s.Raw-eps), 1e-6)
		assert.InDelta(t, s.Fraction, c.Lookup(s.Raw+eps), 1e-6)
	}

	prev := c.Lookup(0)
	for raw := 1.0; raw <= FullScale; raw++ {
		got := c.Lookup(raw)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestLookupDuplicateRawLastWins(t *testing.T) {
	c := newCurve(t,
		Sample{Raw: 0, Fraction: 0},
		Sample{Raw: 1234, Fraction: 0},
		Sample{Raw: 1234, Fraction: 1},
		Sample{Raw: FullScale, Fraction: 1},
	)

	assert.Equal(t, 1.0, c.Lookup(1234))
	assert.Equal(t, 0.0, c.Lookup(1233))
	assert.Equal(t, 1.0, c.Lookup(1235))
}

func TestSeedDefaultsAndClear(t *testing.T) {
	c := newCurve(t, Sample{Raw: 7, Fraction: 0.7})
	c.SeedDefaults()
	assert.Equal(t, []Sample{{Raw: 0, Fraction: 0}, {Raw: FullScale, Fraction: 1}}, c.Samples())
	assert.InDelta(t, 0.5, c.Lookup(FullScale/2), 1e-12)

	c.ClearSamples()
	assert.Equal(t, 0, c.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := store.NewMemory()
	c := New(st, key, FullScale)
	c.Replace([]Sample{
		{Raw: 0, Fraction: 0},
		{Raw: 1234, Fraction: 0},
		{Raw: 1234, Fraction: 1},
		{Raw: 2000, Fraction: 0.25},
		{Raw: FullScale, Fraction: 1},
	})
	require.NoError(t, c.Save())

	loaded := New(st, key, FullScale)
	require.NoError(t, loaded.Load())
	assert.Equal(t, c.Samples(), loaded.Samples())
}

func TestLoadMissing(t *testing.T) {
	c := New(store.NewMemory(), key, FullScale)
	c.AddSample(1, 1)
	err := c.Load()
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, c.Len())
}

func TestSaveFailureKeepsCurve(t *testing.T) {
	st := store.NewMemory()
	st.SetFailing(true)
	c := New(st, key, FullScale)
	c.SeedDefaults()

	assert.Error(t, c.Save())
	assert.Equal(t, 2, c.Len())
}

func TestYAMLRoundTrip(t *testing.T) {
	doc := Document{
		TankID:    "main",
		FullScale: FullScale,
		Samples:   DefaultSamples(FullScale),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, doc))
	assert.Contains(t, buf.String(), "full_scale: 4095")

	got, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Samples, got.Samples)
	assert.Equal(t, "main", got.TankID)
}

func TestReadYAMLRejectsBadCurves(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "too few samples", in: "samples:\n  - {raw: 1, fraction: 0}\n"},
		{name: "fraction above one", in: "samples:\n  - {raw: 0, fraction: 0}\n  - {raw: 10, fraction: 1.5}\n"},
		{name: "raw above full scale", in: "samples:\n  - {raw: 0, fraction: 0}\n  - {raw: 5000, fraction: 1}\n"},
		{name: "not yaml", in: "samples: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadYAML(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}
