package app

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/i2c"

	"github.com/charlie0129/tankgauge/pkg/config"
	"github.com/charlie0129/tankgauge/pkg/curve"
	"github.com/charlie0129/tankgauge/pkg/sensor"
)

// Sources are the raw inputs of the pipelines. A nil source disables its
// pipeline.
type Sources struct {
	Level       sensor.Source
	Pressure    sensor.Source
	Temperature sensor.Source

	closers []io.Closer
}

// OpenSources opens the inputs selected in conf. A sensor that cannot be
// opened is logged once and left nil.
func OpenSources(conf config.Config) *Sources {
	s := &Sources{}

	var bus i2c.BusCloser
	var busErr error
	openBus := func() (i2c.Bus, error) {
		if bus == nil && busErr == nil {
			bus, busErr = sensor.OpenI2C(conf.I2CBus())
			if busErr == nil {
				s.closers = append(s.closers, bus)
			}
		}
		return bus, busErr
	}

	switch kind := conf.LevelSource(); kind {
	case config.LevelSourceSim:
		s.Level = sensor.NewSimLevel(300, 3800, 10*time.Minute)
		logrus.Info("using simulated level source")
	case config.LevelSourceADS1115:
		b, err := openBus()
		if err != nil {
			logSkipped("level", kind, err)
			break
		}
		adc, err := sensor.OpenADS1115(b, conf.ADCChannel(), curve.FullScale)
		if err != nil {
			logSkipped("level", kind, err)
			break
		}
		s.closers = append(s.closers, adc)
		s.Level = sensor.NewCached("level", adc)
	case config.LevelSourceSerial:
		ser, err := sensor.OpenSerial(conf.SerialPort(), conf.SerialBaud())
		if err != nil {
			logSkipped("level", kind, err)
			break
		}
		s.closers = append(s.closers, ser)
		s.Level = sensor.NewCached("level", ser)
	case config.LevelSourceNone:
		logrus.Info("level pipeline disabled")
	default:
		logrus.WithField("levelSource", kind).Error("unknown level source, level pipeline disabled")
	}

	switch kind := conf.AtmosphereSource(); kind {
	case config.AtmosphereSourceSim:
		sim := sensor.NewSimAtmosphere()
		s.Pressure, s.Temperature = sim.Pressure(), sim.Temperature()
		logrus.Info("using simulated atmospheric source")
	case config.AtmosphereSourceBMP280:
		b, err := openBus()
		if err != nil {
			logSkipped("atmosphere", kind, err)
			break
		}
		bmp, err := sensor.OpenBMP280(b)
		if err != nil {
			logSkipped("atmosphere", kind, err)
			break
		}
		s.closers = append(s.closers, bmp)
		s.Pressure = sensor.NewCached("pressure", bmp.Pressure())
		s.Temperature = sensor.NewCached("temperature", bmp.Temperature())
	case config.AtmosphereSourceNone:
		logrus.Info("atmospheric pipeline disabled")
	default:
		logrus.WithField("atmosphereSource", kind).Error("unknown atmospheric source, atmospheric pipeline disabled")
	}

	return s
}

func logSkipped(pipeline, kind string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"pipeline":    pipeline,
		"source":      kind,
		"notDetected": errors.Is(err, sensor.ErrNotDetected),
	}).Error("sensor unavailable, pipeline disabled")
}

// Close releases every opened device, last opened first.
func (s *Sources) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
