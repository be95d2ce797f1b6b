package calibration

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/curve"
	"github.com/charlie0129/tankgauge/pkg/events"
)

// Curve is the part of curve.Interpolator the controller rewrites.
type Curve interface {
	ClearSamples()
	AddSample(raw, fraction float64)
	SeedDefaults()
	Save() error
	Len() int
}

// Source supplies the current smoothed raw level.
type Source interface {
	Value() (float64, bool)
}

// Controller runs calibration sessions. While a session runs, every call to
// Sample appends the current tapped raw value to the session buffer. Finish
// turns the buffer into a new curve.
type Controller struct {
	mu sync.Mutex

	curve     Curve
	source    Source
	hub       *events.EventHub
	fullScale float64
	maxPoints int
	now       func() time.Time

	status       Status
	buffer       []float64
	startedAt    time.Time
	lastFinished time.Time
	message      string
}

// NewController returns an inactive controller. hub may be nil.
func NewController(c Curve, src Source, hub *events.EventHub, fullScale float64) *Controller {
	if fullScale <= 0 {
		fullScale = curve.FullScale
	}
	return &Controller{
		curve:     c,
		source:    src,
		hub:       hub,
		fullScale: fullScale,
		maxPoints: MaxInteriorPoints,
		now:       time.Now,
		status:    StatusInactive,
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Buffered returns a copy of the readings collected in the running session.
func (c *Controller) Buffered() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.buffer...)
}

// Apply performs an operator action and returns the resulting status.
//
//nolint:gocyclo
func (c *Controller) Apply(a Action) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.status
	log := logrus.WithFields(logrus.Fields{
		"action":    a.String(),
		"status":    prev,
		"operation": "calibration",
	})

	switch a {
	case ActionStart:
		c.buffer = c.buffer[:0]
		c.status = StatusRunning
		c.startedAt = c.now()
		c.message = "Calibration started: move the tank level from empty to full"
		log.Info("calibration session started")
	case ActionFinish:
		if c.status != StatusRunning {
			log.Info("no calibration session running, ignoring finish")
			return c.status
		}
		c.finish(log)
	case ActionAbort:
		if c.status != StatusRunning {
			log.Info("no calibration session running, ignoring abort")
			return c.status
		}
		log.WithField("samples", len(c.buffer)).Info("calibration session aborted, curve unchanged")
		c.buffer = nil
		c.status = StatusInactive
		c.message = "Calibration aborted"
	case ActionClear:
		c.buffer = nil
		c.status = StatusInactive
		c.curve.ClearSamples()
		c.curve.SeedDefaults()
		c.message = "Calibration cleared, using default curve"
		if err := c.curve.Save(); err != nil {
			log.WithError(err).Error("failed to persist default curve")
			c.message += " (not saved)"
		} else {
			log.Info("calibration cleared, default curve saved")
		}
	default:
		log.Debug("no calibration action")
		return c.status
	}

	c.publishAction(a)
	if c.status != prev {
		c.publishStatus(prev)
	}
	return c.status
}

// finish builds and persists the new curve. The session always ends, whether
// or not the buffer was usable and the curve could be saved.
func (c *Controller) finish(log *logrus.Entry) {
	readings := c.buffer
	c.buffer = nil
	c.status = StatusInactive
	c.lastFinished = c.now()
	log = log.WithField("samples", len(readings))

	samples := BuildCurve(readings, c.fullScale, c.maxPoints)
	if samples == nil {
		log.Warn("calibration finished without samples, curve unchanged")
		c.message = "Calibration finished without samples, curve unchanged"
		return
	}
	if len(readings) == 1 || samples[1].Raw == samples[2].Raw {
		log.WithField("raw", samples[1].Raw).Warn("calibration samples do not span a range, using step curve")
	}

	c.curve.ClearSamples()
	for _, s := range samples {
		c.curve.AddSample(s.Raw, s.Fraction)
	}
	c.message = fmt.Sprintf("Calibration finished with %d samples, curve has %d points", len(readings), len(samples))

	if err := c.curve.Save(); err != nil {
		log.WithError(err).Error("failed to persist calibration curve")
		c.message += " (not saved)"
		return
	}
	log.WithField("points", len(samples)).Info("calibration curve saved")
}

// Sample is the background tick of a session. It appends the current tapped
// value while a session runs and does nothing otherwise.
func (c *Controller) Sample() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return
	}
	v, ok := c.source.Value()
	if !ok {
		logrus.Trace("no level reading yet, skipping calibration sample")
		return
	}
	c.buffer = append(c.buffer, v)
	logrus.WithFields(logrus.Fields{
		"raw":     v,
		"samples": len(c.buffer),
	}).Trace("calibration sample")
}

// View synthesizes the current calibration view.
func (c *Controller) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := &View{
		Status:       c.status,
		Samples:      len(c.buffer),
		CurvePoints:  c.curve.Len(),
		LastFinished: c.lastFinished,
		Message:      c.message,
		Actions:      []string{"N", "S", "F", "A", "C"},
	}
	if c.status == StatusRunning {
		v.StartedAt = c.startedAt
	}
	if raw, ok := c.source.Value(); ok {
		v.CurrentRaw = &raw
	}
	return v
}

func (c *Controller) publishAction(a Action) {
	c.hub.Publish(events.CalibrationAction, events.CalibrationActionEvent{
		Action:  a.String(),
		Message: c.message,
		Ts:      c.now().UnixMilli(),
	})
}

func (c *Controller) publishStatus(from Status) {
	c.hub.Publish(events.CalibrationStatus, events.CalibrationStatusEvent{
		From:    string(from),
		To:      string(c.status),
		Message: c.message,
		Ts:      c.now().UnixMilli(),
	})
	logrus.WithField("event", events.CalibrationStatus).Debug("new event")
}
