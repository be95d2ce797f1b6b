package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimLevel simulates a tank being slowly filled and drained. The raw value
// follows a triangle wave between low and high with some noise.
type SimLevel struct {
	low, high float64
	period    time.Duration
	noise     float64
	start     time.Time
	now       func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimLevel(low, high float64, period time.Duration) *SimLevel {
	if period <= 0 {
		period = 10 * time.Minute
	}
	return &SimLevel{
		low:    low,
		high:   high,
		period: period,
		noise:  (high - low) * 0.005,
		start:  time.Now(),
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimLevel) Read() (float64, error) {
	phase := math.Mod(float64(s.now().Sub(s.start))/float64(s.period), 1)
	tri := 1 - math.Abs(2*phase-1) // 0 -> 1 -> 0 over one period

	s.mu.Lock()
	n := s.rnd.NormFloat64() * s.noise
	s.mu.Unlock()

	return s.low + tri*(s.high-s.low) + n, nil
}

// SimAtmosphere produces plausible outside pressure and temperature.
type SimAtmosphere struct {
	start time.Time
	now   func() time.Time
}

func NewSimAtmosphere() *SimAtmosphere {
	return &SimAtmosphere{start: time.Now(), now: time.Now}
}

func (s *SimAtmosphere) hours() float64 {
	return s.now().Sub(s.start).Hours()
}

// Pressure returns a Source in pascals.
func (s *SimAtmosphere) Pressure() Source {
	return Func(func() (float64, error) {
		return 101325 + 300*math.Sin(2*math.Pi*s.hours()/24), nil
	})
}

// Temperature returns a Source in kelvin.
func (s *SimAtmosphere) Temperature() Source {
	return Func(func() (float64, error) {
		return 273.15 + 18 + 4*math.Sin(2*math.Pi*s.hours()/24), nil
	})
}
