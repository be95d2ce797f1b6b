// Package sensor provides the raw readings that feed the pipelines.
//
// Every Source returns immediately: either a fresh reading or the last
// known one. Opening a source whose hardware is missing returns an error
// wrapping ErrNotDetected so the caller can skip the dependent pipeline.
package sensor

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotDetected is returned when a sensor is not present at boot.
	ErrNotDetected = errors.New("sensor not detected")

	// ErrNoReading is returned before a source has produced any value.
	ErrNoReading = errors.New("no reading yet")
)

// Source produces one reading per call.
type Source interface {
	Read() (float64, error)
}

// Func adapts a plain function to Source.
type Func func() (float64, error)

func (f Func) Read() (float64, error) { return f() }

// Cached wraps a Source and answers with the last good reading when the
// underlying read fails.
type Cached struct {
	name string
	src  Source

	mu      sync.Mutex
	last    float64
	have    bool
	failing bool
}

func NewCached(name string, src Source) *Cached {
	return &Cached{name: name, src: src}
}

func (c *Cached) Read() (float64, error) {
	v, err := c.src.Read()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if !c.failing {
			logrus.WithError(err).WithField("sensor", c.name).Warn("sensor read failed, using last known value")
			c.failing = true
		}
		if !c.have {
			return 0, err
		}
		return c.last, nil
	}

	if c.failing {
		logrus.WithField("sensor", c.name).Info("sensor read recovered")
		c.failing = false
	}
	c.last, c.have = v, true
	return v, nil
}
