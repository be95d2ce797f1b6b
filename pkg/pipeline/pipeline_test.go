package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/tankgauge/pkg/store"
)

func TestMovingAverage(t *testing.T) {
	m := NewMovingAverage(3)

	var got []float64
	for _, v := range []float64{10, 20, 30, 40} {
		got = append(got, m.Transform(v))
	}
	assert.Equal(t, []float64{10, 15, 20, 30}, got)
}

func TestMovingAverageWindowOne(t *testing.T) {
	m := NewMovingAverage(0)
	assert.Equal(t, 1, m.Window())
	assert.Equal(t, 5.0, m.Transform(5))
	assert.Equal(t, 9.0, m.Transform(9))
}

func TestTap(t *testing.T) {
	tap := NewTap(4095)

	_, ok := tap.Value()
	assert.False(t, ok)

	tests := []struct {
		in, want float64
	}{
		{in: 1200.5, want: 1200.5},
		{in: -3, want: 0},
		{in: 5000, want: 4095},
		{in: math.NaN(), want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tap.Transform(tt.in))
		v, ok := tap.Value()
		assert.True(t, ok)
		assert.Equal(t, tt.want, v)
	}
}

func TestLevelToVolume(t *testing.T) {
	capacity := 200.0
	l := NewLevelToVolume(func() float64 { return capacity })

	assert.InDelta(t, 0.1, l.Transform(0.5), 1e-12)

	capacity = 1000
	assert.InDelta(t, 0.5, l.Transform(0.5), 1e-12)
	assert.Equal(t, 0.0, l.Transform(0))
}

func TestLinearDefaultsAndPersistence(t *testing.T) {
	st := store.NewMemory()

	l := NewLinear(st, "/calibration/pressure", DefaultLinearParams)
	assert.Equal(t, "/calibration/pressure", l.Key())
	assert.Equal(t, 42.0, l.Transform(42))

	require.NoError(t, l.Set(LinearParams{Multiplier: 2, Offset: -1}))
	assert.Equal(t, 83.0, l.Transform(42))

	reloaded := NewLinear(st, "/calibration/pressure", DefaultLinearParams)
	assert.Equal(t, LinearParams{Multiplier: 2, Offset: -1}, reloaded.Params())
}

func TestLinearSetFailureKeepsParams(t *testing.T) {
	st := store.NewMemory()
	st.SetFailing(true)

	l := NewLinear(st, "/calibration/temperature", DefaultLinearParams)
	assert.Error(t, l.Set(LinearParams{Multiplier: 1, Offset: 0.5}))
	assert.Equal(t, 10.5, l.Transform(10))

	assert.Error(t, l.Set(LinearParams{Multiplier: math.Inf(1)}))
	assert.Equal(t, 10.5, l.Transform(10))
}

func TestGraphPropagatesInOrder(t *testing.T) {
	g := NewGraph()

	var trace []string
	in := g.Add("average", NewMovingAverage(1))
	double := g.Add("double", StageFunc(func(v float64) float64 { return 2 * v }))
	sinkA := g.AddSink("a", func(v float64) { trace = append(trace, "a"); assert.Equal(t, 6.0, v) })
	half := g.Add("half", StageFunc(func(v float64) float64 { return v / 2 }))
	sinkB := g.AddSink("b", func(v float64) { trace = append(trace, "b"); assert.Equal(t, 1.5, v) })

	g.Connect(in, double)
	g.Connect(double, sinkA)
	g.Chain(in, half, sinkB)

	g.Push(in, 3)
	assert.Equal(t, []string{"a", "b"}, trace)
	assert.Equal(t, "double", g.Name(double))
	assert.Equal(t, "b", g.Name(sinkB))

	v, ok := g.Last(double)
	assert.True(t, ok)
	assert.Equal(t, 6.0, v)

	unused := g.Add("unused", nil)
	_, ok = g.Last(unused)
	assert.False(t, ok)
}

func TestGraphRejectsBackwardEdges(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", nil)
	b := g.Add("b", nil)

	assert.Panics(t, func() { g.Connect(b, a) })
	assert.Panics(t, func() { g.Connect(a, a) })
	assert.Panics(t, func() { g.Push(NodeID(5), 1) })
}
