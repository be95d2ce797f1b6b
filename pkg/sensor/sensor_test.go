package sensor

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/physic"
)

func TestCached(t *testing.T) {
	var (
		v   float64
		err error
	)
	c := NewCached("level", Func(func() (float64, error) { return v, err }))

	err = errors.New("bus error")
	_, gotErr := c.Read()
	assert.Error(t, gotErr)

	v, err = 12, nil
	got, gotErr := c.Read()
	require.NoError(t, gotErr)
	assert.Equal(t, 12.0, got)

	v, err = 99, errors.New("bus error")
	got, gotErr = c.Read()
	require.NoError(t, gotErr)
	assert.Equal(t, 12.0, got)

	v, err = 13, nil
	got, _ = c.Read()
	assert.Equal(t, 13.0, got)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "1234", want: 1234, ok: true},
		{in: " 1234.5\r", want: 1234.5, ok: true},
		{in: "raw=2048", want: 2048, ok: true},
		{in: "level: 17", want: 17, ok: true},
		{in: "", ok: false},
		{in: "booting...", ok: false},
		{in: "raw=NaN", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseLine(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSerialKeepsLastValue(t *testing.T) {
	s := newSerial(io.NopCloser(strings.NewReader("boot\n100\nraw=200\ngarbage\n")), "test")
	<-s.done

	v, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 200.0, v)
	assert.NoError(t, s.Close())
}

func TestSerialBeforeFirstValue(t *testing.T) {
	pr, pw := io.Pipe()
	s := newSerial(pr, "test")

	_, err := s.Read()
	assert.ErrorIs(t, err, ErrNoReading)

	_ = pw.Close()
	assert.NoError(t, s.Close())
}

func TestSimLevelStaysInRange(t *testing.T) {
	s := NewSimLevel(500, 3500, time.Minute)
	base := time.Unix(0, 0)
	s.start = base

	for i := 0; i <= 60; i++ {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		v, err := s.Read()
		require.NoError(t, err)
		assert.InDelta(t, 2000, v, 1500+15*6)
	}

	s.noise = 0
	s.now = func() time.Time { return base.Add(30 * time.Second) }
	v, _ := s.Read()
	assert.InDelta(t, 3500, v, 1e-9)
}

func TestSimAtmosphere(t *testing.T) {
	a := NewSimAtmosphere()
	p, err := a.Pressure().Read()
	require.NoError(t, err)
	assert.InDelta(t, 101325, p, 300)

	k, err := a.Temperature().Read()
	require.NoError(t, err)
	assert.InDelta(t, 291.15, k, 4)
}

func TestScaleVoltage(t *testing.T) {
	assert.InDelta(t, 4095.0/2, scaleVoltage(2048*physic.MilliVolt, adsMaxVoltage, 4095), 1e-9)
	assert.Equal(t, 0.0, scaleVoltage(0, adsMaxVoltage, 4095))
}
