// Package app wires sources, pipelines, the calibration controller and the
// sinks into one application context.
//
// All methods that touch pipeline state (the Read*, Publish*, Sample*, Set*
// and Apply methods) must run on the scheduler goroutine.
package app

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/calibration"
	"github.com/charlie0129/tankgauge/pkg/config"
	"github.com/charlie0129/tankgauge/pkg/curve"
	"github.com/charlie0129/tankgauge/pkg/events"
	"github.com/charlie0129/tankgauge/pkg/pipeline"
	"github.com/charlie0129/tankgauge/pkg/scheduler"
	"github.com/charlie0129/tankgauge/pkg/sensor"
	"github.com/charlie0129/tankgauge/pkg/sink"
	"github.com/charlie0129/tankgauge/pkg/store"
)

const (
	calibrationInterval     = time.Second
	defaultCapacitySchedule = scheduler.Period(5 * time.Second)
)

// ErrUnknownOffset is returned for an offset name other than OffsetPressure
// or OffsetTemperature.
var ErrUnknownOffset = errors.New("unknown offset")

// Registrar accepts periodic tasks. *scheduler.Scheduler implements it.
type Registrar interface {
	Register(name string, schedule cron.Schedule, fn func())
}

type Options struct {
	Config  config.Config
	Store   store.Store
	Hub     *events.EventHub
	Sources *Sources
	// Sinks receive every measurement in addition to the built-in cache,
	// event hub and trace log.
	Sinks []sink.Sink
}

type App struct {
	conf  config.Config
	store store.Store
	hub   *events.EventHub
	paths Paths

	curve        *curve.Interpolator
	tap          *pipeline.Tap
	calibration  *calibration.Controller
	offsets      map[string]*pipeline.Linear
	measurements *sink.Cache
	out          sink.Sink

	graph         *pipeline.Graph
	sources       Sources
	levelIn       pipeline.NodeID
	pressureIn    pipeline.NodeID
	temperatureIn pipeline.NodeID
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.Store == nil {
		return nil, errors.New("app: store is required")
	}

	a := &App{
		conf:          opts.Config,
		store:         opts.Store,
		hub:           opts.Hub,
		paths:         NewPaths(opts.Config.TankType(), opts.Config.TankID()),
		tap:           pipeline.NewTap(curve.FullScale),
		measurements:  sink.NewCache(),
		graph:         pipeline.NewGraph(),
		levelIn:       -1,
		pressureIn:    -1,
		temperatureIn: -1,
	}
	if opts.Sources != nil {
		a.sources = *opts.Sources
	}

	outs := sink.Multi{a.measurements, sink.Log{}}
	if a.hub != nil {
		outs = append(outs, sink.NewHub(a.hub))
	}
	a.out = append(outs, opts.Sinks...)

	a.curve = curve.New(a.store, CurveKey, curve.FullScale)
	a.loadCurve()
	a.calibration = calibration.NewController(a.curve, a.tap, a.hub, curve.FullScale)

	a.offsets = map[string]*pipeline.Linear{
		OffsetPressure:    pipeline.NewLinear(a.store, PressureOffsetKey, pipeline.DefaultLinearParams),
		OffsetTemperature: pipeline.NewLinear(a.store, TemperatureOffsetKey, pipeline.DefaultLinearParams),
	}

	a.buildTank()
	a.pressureIn = a.buildAtmosphere(OffsetPressure, PressurePath, a.sources.Pressure)
	a.temperatureIn = a.buildAtmosphere(OffsetTemperature, TemperaturePath, a.sources.Temperature)

	logrus.WithFields(logrus.Fields{
		"level":       a.paths.Level,
		"volume":      a.paths.Volume,
		"capacity":    a.paths.Capacity,
		"curveKey":    a.curve.Key(),
		"curvePoints": a.curve.Len(),
		"nodes":       a.graph.Len(),
	}).Info("pipelines built")

	return a, nil
}

// loadCurve restores the persisted curve, falling back to the default seed
// in memory. The seed is only written once the operator calibrates or
// clears.
func (a *App) loadCurve() {
	err := a.curve.Load()
	switch {
	case errors.Is(err, store.ErrNotFound):
		logrus.WithField("key", CurveKey).Info("no stored calibration curve, using default")
	case err != nil:
		logrus.WithError(err).WithField("key", CurveKey).Error("failed to load calibration curve, using default")
	}
	if a.curve.Len() < 2 {
		a.curve.SeedDefaults()
	} else {
		logrus.WithField("points", a.curve.Len()).Info("calibration curve loaded")
	}
}

// buildTank wires
//
//	level -> average -> tap -> curve -> {level sink, volume -> volume sink}
func (a *App) buildTank() {
	if a.sources.Level == nil {
		logrus.Warn("no level source, tank pipeline not built")
		return
	}
	g := a.graph

	ma := pipeline.NewMovingAverage(a.conf.AverageWindow())
	avg := g.Add("level.average", ma)
	crv := g.Chain(avg, g.Add("level.tap", a.tap), g.Add("level.curve", a.curve))
	g.Connect(crv, g.AddSink(a.paths.Level, a.emitter(a.paths.Level)))
	vol := g.Connect(crv, g.Add("level.volume", pipeline.NewLevelToVolume(a.conf.CapacityLiters)))
	g.Connect(vol, g.AddSink(a.paths.Volume, a.emitter(a.paths.Volume)))

	a.levelIn = avg
	logrus.WithField("window", ma.Window()).Debug("tank pipeline built")
}

// buildAtmosphere wires
//
//	reading -> offset -> average -> sink
func (a *App) buildAtmosphere(name, path string, src sensor.Source) pipeline.NodeID {
	if src == nil {
		logrus.WithField("path", path).Warn("no source, atmospheric pipeline not built")
		return -1
	}
	g := a.graph

	offset := a.offsets[name]
	ma := pipeline.NewMovingAverage(a.conf.AverageWindow())
	in := g.Add(name+".offset", offset)
	g.Chain(in,
		g.Add(name+".average", ma),
		g.AddSink(path, a.emitter(path)),
	)
	logrus.WithFields(logrus.Fields{
		"path":      path,
		"offsetKey": offset.Key(),
		"window":    ma.Window(),
	}).Debug("atmospheric pipeline built")
	return in
}

func (a *App) emitter(path string) func(v float64) {
	return func(v float64) {
		a.out.Publish(path, v)
	}
}

// Register adds the periodic tasks of every built pipeline.
func (a *App) Register(r Registrar) {
	if a.levelIn >= 0 {
		r.Register("level", scheduler.Period(a.conf.LevelInterval()), a.ReadLevel)
	}
	if a.pressureIn >= 0 || a.temperatureIn >= 0 {
		r.Register("atmosphere", scheduler.Period(a.conf.AtmosphereInterval()), a.ReadAtmosphere)
	}

	capSchedule, err := scheduler.ParseSchedule(a.conf.CapacitySchedule())
	if err != nil {
		logrus.WithError(err).WithField("capacitySchedule", a.conf.CapacitySchedule()).
			Error("invalid capacity schedule, using default")
		capSchedule = defaultCapacitySchedule
	}
	r.Register("capacity", capSchedule, a.PublishCapacity)
	r.Register("calibration", scheduler.Period(calibrationInterval), a.SampleCalibration)
}

func (a *App) ReadLevel() {
	if a.levelIn < 0 {
		return
	}
	v, err := a.sources.Level.Read()
	if err != nil {
		logrus.WithError(err).WithField("node", a.graph.Name(a.levelIn)).Debug("no level reading")
		return
	}
	a.graph.Push(a.levelIn, v)
}

func (a *App) ReadAtmosphere() {
	a.readInto(a.pressureIn, OffsetPressure, a.sources.Pressure)
	a.readInto(a.temperatureIn, OffsetTemperature, a.sources.Temperature)
}

func (a *App) readInto(id pipeline.NodeID, name string, src sensor.Source) {
	if id < 0 {
		return
	}
	v, err := src.Read()
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sensor": name,
			"node":   a.graph.Name(id),
		}).Debug("no reading")
		return
	}
	a.graph.Push(id, v)
}

// PublishCapacity republishes the configured capacity in cubic meters.
func (a *App) PublishCapacity() {
	a.out.Publish(a.paths.Capacity, a.conf.CapacityLiters()/1000)
}

// SampleCalibration is the 1 Hz calibration tick.
func (a *App) SampleCalibration() {
	a.calibration.Sample()
}

// ApplyCalibration performs an operator action on the calibration session.
func (a *App) ApplyCalibration(act calibration.Action) calibration.Status {
	return a.calibration.Apply(act)
}

// SetCapacity changes the tank capacity, persists the configuration and
// republishes the capacity. The new capacity is used even if saving fails.
func (a *App) SetCapacity(liters float64) error {
	if err := a.conf.SetCapacityLiters(liters); err != nil {
		return err
	}
	a.PublishCapacity()
	logrus.WithField("capacityLiters", liters).Info("capacity changed")
	return a.conf.Save()
}

// SetTankID persists a new tank identifier. Output paths keep the old
// identifier until the daemon restarts.
func (a *App) SetTankID(id string) error {
	if err := a.conf.SetTankID(id); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"tankId":  id,
		"current": a.paths.Level,
	}).Warn("tank id changed, restart the daemon to publish under the new id")
	return a.conf.Save()
}

// SetOffset changes the linear correction of an atmospheric sensor.
func (a *App) SetOffset(name string, p pipeline.LinearParams) error {
	l, ok := a.offsets[name]
	if !ok {
		return ErrUnknownOffset
	}
	if err := l.Set(p); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"sensor":     name,
		"multiplier": p.Multiplier,
		"offset":     p.Offset,
	}).Info("offset changed")
	return nil
}

// ReplaceCurve installs an imported curve and persists it. The imported
// curve stays in effect if saving fails.
func (a *App) ReplaceCurve(samples []curve.Sample) error {
	if err := curve.Validate(samples, a.curve.FullScale()); err != nil {
		return err
	}
	a.curve.Replace(samples)
	logrus.WithField("points", len(samples)).Info("calibration curve imported")
	return a.curve.Save()
}

func (a *App) Offset(name string) (pipeline.LinearParams, bool) {
	l, ok := a.offsets[name]
	if !ok {
		return pipeline.LinearParams{}, false
	}
	return l.Params(), true
}

func (a *App) Config() config.Config { return a.conf }

func (a *App) Paths() Paths { return a.paths }

func (a *App) Curve() *curve.Interpolator { return a.curve }

func (a *App) Calibration() *calibration.Controller { return a.calibration }

func (a *App) Measurements() *sink.Cache { return a.measurements }

func (a *App) Hub() *events.EventHub { return a.hub }
