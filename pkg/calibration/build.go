package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/charlie0129/tankgauge/pkg/curve"
)

// MaxInteriorPoints caps how many buffered readings end up in a rebuilt curve.
const MaxInteriorPoints = 500

// BuildCurve derives curve samples from the raw readings buffered during a
// session. The lowest reading maps to an empty tank and the highest to a
// full one.
//
// It returns nil for an empty buffer. One reading, or readings that are all
// equal, produce the step curve (0,0) (r,0) (r,1) (fullScale,1). Otherwise the
// four boundary samples are followed by up to maxPoints readings picked
// evenly across the buffer, in buffer order.
func BuildCurve(readings []float64, fullScale float64, maxPoints int) []curve.Sample {
	total := len(readings)
	if total == 0 {
		return nil
	}
	if total == 1 {
		return stepCurve(readings[0], readings[0], fullScale)
	}

	minRaw, maxRaw := floats.Min(readings), floats.Max(readings)
	if maxRaw <= minRaw {
		return stepCurve(minRaw, maxRaw, fullScale)
	}

	if maxPoints < 1 {
		maxPoints = 1
	}
	m := total
	if m > maxPoints {
		m = maxPoints
	}

	samples := stepCurve(minRaw, maxRaw, fullScale)
	span := maxRaw - minRaw
	for i := 0; i < m; i++ {
		idx := 0
		if m > 1 {
			idx = int(math.Round(float64(i) / float64(m-1) * float64(total-1)))
		}
		raw := readings[idx]
		samples = append(samples, curve.Sample{
			Raw:      raw,
			Fraction: clamp((raw-minRaw)/span, 0, 1),
		})
	}

	return samples
}

func stepCurve(low, high, fullScale float64) []curve.Sample {
	return []curve.Sample{
		{Raw: 0, Fraction: 0},
		{Raw: low, Fraction: 0},
		{Raw: high, Fraction: 1},
		{Raw: fullScale, Fraction: 1},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
