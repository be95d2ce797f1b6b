package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/tankgauge/pkg/curve"
	"github.com/charlie0129/tankgauge/pkg/events"
	"github.com/charlie0129/tankgauge/pkg/store"
)

// fakeTap is a Source whose value the test sets directly.
type fakeTap struct {
	v  float64
	ok bool
}

func (f *fakeTap) Value() (float64, bool) { return f.v, f.ok }

func (f *fakeTap) set(v float64) { f.v, f.ok = v, true }

type fixture struct {
	st    *store.Memory
	curve *curve.Interpolator
	tap   *fakeTap
	hub   *events.EventHub
	ctl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	c := curve.New(st, "/tank/level/curve", curve.FullScale)
	c.SeedDefaults()
	tap := &fakeTap{}
	hub := events.NewEventHub()
	ctl := NewController(c, tap, hub, curve.FullScale)
	ctl.now = func() time.Time { return time.Unix(1700000000, 0) }
	return &fixture{st: st, curve: c, tap: tap, hub: hub, ctl: ctl}
}

func (f *fixture) collect(values ...float64) {
	for _, v := range values {
		f.tap.set(v)
		f.ctl.Sample()
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"S", ActionStart},
		{"s", ActionStart},
		{"start", ActionStart},
		{" Finish ", ActionFinish},
		{"a", ActionAbort},
		{"ABORT", ActionAbort},
		{"c", ActionClear},
		{"Clear", ActionClear},
		{"n", ActionNone},
		{"NONE", ActionNone},
		{"", ActionNone},
		{"reboot", ActionNone},
		{"st", ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAction(tt.in))
		})
	}
}

func TestSampleOnlyWhileRunning(t *testing.T) {
	f := newFixture(t)

	f.collect(100, 200)
	assert.Empty(t, f.ctl.Buffered())

	require.Equal(t, StatusRunning, f.ctl.Apply(ActionStart))
	f.ctl.Sample() // tap has a value from before; it counts
	f.collect(300)
	assert.Equal(t, []float64{200, 300}, f.ctl.Buffered())
}

func TestSampleWithoutTapValue(t *testing.T) {
	f := newFixture(t)
	f.ctl.Apply(ActionStart)
	f.ctl.Sample()
	assert.Empty(t, f.ctl.Buffered())
}

func TestStartResetsBuffer(t *testing.T) {
	f := newFixture(t)
	f.ctl.Apply(ActionStart)
	f.collect(1, 2, 3)

	assert.Equal(t, StatusRunning, f.ctl.Apply(ActionStart))
	assert.Empty(t, f.ctl.Buffered())
}

func TestFinishEmptyBufferKeepsCurve(t *testing.T) {
	f := newFixture(t)
	before := f.curve.Samples()

	f.ctl.Apply(ActionStart)
	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionFinish))
	assert.Equal(t, before, f.curve.Samples())
	assert.Equal(t, 0, f.st.Keys())
}

func TestFinishSingleSample(t *testing.T) {
	f := newFixture(t)
	f.ctl.Apply(ActionStart)
	f.collect(1234.0)

	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionFinish))
	assert.Equal(t, []curve.Sample{
		{Raw: 0, Fraction: 0},
		{Raw: 1234, Fraction: 0},
		{Raw: 1234, Fraction: 1},
		{Raw: curve.FullScale, Fraction: 1},
	}, f.curve.Samples())
	assert.Empty(t, f.ctl.Buffered())

	saved := curve.New(f.st, "/tank/level/curve", curve.FullScale)
	require.NoError(t, saved.Load())
	assert.Equal(t, f.curve.Samples(), saved.Samples())
}

func TestFinishAllEqualSamples(t *testing.T) {
	f := newFixture(t)
	f.ctl.Apply(ActionStart)
	f.collect(800, 800, 800)

	f.ctl.Apply(ActionFinish)
	assert.Equal(t, []curve.Sample{
		{Raw: 0, Fraction: 0},
		{Raw: 800, Fraction: 0},
		{Raw: 800, Fraction: 1},
		{Raw: curve.FullScale, Fraction: 1},
	}, f.curve.Samples())
}

func TestFinishBuildsMonotonicCurve(t *testing.T) {
	f := newFixture(t)
	f.ctl.Apply(ActionStart)
	f.collect(100, 300, 200, 400)

	f.ctl.Apply(ActionFinish)
	samples := f.curve.Samples()
	require.Len(t, samples, 8)

	for _, want := range []curve.Sample{
		{Raw: 0, Fraction: 0},
		{Raw: 100, Fraction: 0},
		{Raw: 400, Fraction: 1},
		{Raw: curve.FullScale, Fraction: 1},
	} {
		assert.Contains(t, samples, want)
	}
	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i-1].Raw, samples[i].Raw)
		assert.LessOrEqual(t, samples[i-1].Fraction, samples[i].Fraction)
	}
	assert.InDelta(t, 0.5, f.curve.Lookup(250), 1e-12)
}

func TestFinishPersistFailureStillEnds(t *testing.T) {
	f := newFixture(t)
	f.st.SetFailing(true)
	f.ctl.Apply(ActionStart)
	f.collect(10, 20)

	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionFinish))
	assert.Equal(t, 6, f.curve.Len())
	assert.Contains(t, f.ctl.View().Message, "not saved")
}

func TestAbortDiscardsBuffer(t *testing.T) {
	f := newFixture(t)
	before := f.curve.Samples()

	f.ctl.Apply(ActionStart)
	f.collect(10, 20, 30)
	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionAbort))
	assert.Empty(t, f.ctl.Buffered())
	assert.Equal(t, before, f.curve.Samples())
}

func TestClearResetsCurve(t *testing.T) {
	for _, running := range []bool{false, true} {
		f := newFixture(t)
		f.curve.Replace([]curve.Sample{{Raw: 5, Fraction: 0}, {Raw: 6, Fraction: 0.5}, {Raw: 7, Fraction: 1}})
		if running {
			f.ctl.Apply(ActionStart)
			f.collect(1, 2)
		}

		assert.Equal(t, StatusInactive, f.ctl.Apply(ActionClear))
		assert.Equal(t, curve.DefaultSamples(curve.FullScale), f.curve.Samples())
		assert.Empty(t, f.ctl.Buffered())
		assert.Equal(t, 1, f.st.Keys())
	}
}

func TestInactiveNoOps(t *testing.T) {
	f := newFixture(t)
	before := f.curve.Samples()

	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionFinish))
	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionAbort))
	assert.Equal(t, StatusInactive, f.ctl.Apply(ActionNone))
	assert.Equal(t, before, f.curve.Samples())

	f.ctl.Apply(ActionStart)
	assert.Equal(t, StatusRunning, f.ctl.Apply(ParseAction("bogus")))
}

func TestTransitionsPublishEvents(t *testing.T) {
	f := newFixture(t)
	ch := f.hub.Subscribe()
	defer f.hub.Unsubscribe(ch)

	f.ctl.Apply(ActionStart)

	ev := <-ch
	assert.Equal(t, events.CalibrationAction, ev.Name)
	ev = <-ch
	require.Equal(t, events.CalibrationStatus, ev.Name)
	st, err := events.DecodeAs[events.CalibrationStatusEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, "Inactive", st.From)
	assert.Equal(t, "Running", st.To)
}

func TestView(t *testing.T) {
	f := newFixture(t)
	v := f.ctl.View()
	assert.Equal(t, StatusInactive, v.Status)
	assert.Nil(t, v.CurrentRaw)
	assert.Equal(t, 2, v.CurvePoints)

	f.ctl.Apply(ActionStart)
	f.collect(42)
	v = f.ctl.View()
	assert.Equal(t, StatusRunning, v.Status)
	assert.Equal(t, 1, v.Samples)
	require.NotNil(t, v.CurrentRaw)
	assert.Equal(t, 42.0, *v.CurrentRaw)
	assert.False(t, v.StartedAt.IsZero())
}
