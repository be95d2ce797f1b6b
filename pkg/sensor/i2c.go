package sensor

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/devices/bmxx80"
	"periph.io/x/periph/experimental/conn/analog"
	"periph.io/x/periph/experimental/devices/ads1x15"
	"periph.io/x/periph/host"
)

// bmp280Addresses are tried in order; boards strap the chip to either.
var bmp280Addresses = []uint16{0x76, 0x77}

// OpenI2C initializes the host drivers and opens an I²C bus. An empty name
// selects the first bus.
func OpenI2C(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to initialize host drivers")
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrNotDetected, "i2c bus %q: %v", name, err)
	}
	return bus, nil
}

// BMP280 reads pressure and temperature from a Bosch BMP280. Both
// measurements come from one conversion, which is reused for maxAge so the
// pressure and temperature tasks of a tick share a bus transaction.
type BMP280 struct {
	dev    *bmxx80.Dev
	maxAge time.Duration

	mu     sync.Mutex
	env    physic.Env
	readAt time.Time
}

func OpenBMP280(bus i2c.Bus) (*BMP280, error) {
	var lastErr error
	for _, addr := range bmp280Addresses {
		dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
		if err != nil {
			lastErr = err
			logrus.WithError(err).WithField("address", addr).Debug("bmp280 not found at address")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"address": addr,
			"device":  dev.String(),
		}).Info("bmp280 detected")
		return &BMP280{dev: dev, maxAge: 100 * time.Millisecond}, nil
	}
	return nil, pkgerrors.Wrapf(ErrNotDetected, "bmp280: %v", lastErr)
}

func (b *BMP280) sense() (physic.Env, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.readAt.IsZero() && time.Since(b.readAt) < b.maxAge {
		return b.env, nil
	}
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return physic.Env{}, pkgerrors.Wrap(err, "bmp280: sense failed")
	}
	b.env, b.readAt = env, time.Now()
	return env, nil
}

// Pressure returns a Source in pascals.
func (b *BMP280) Pressure() Source {
	return Func(func() (float64, error) {
		env, err := b.sense()
		if err != nil {
			return 0, err
		}
		return float64(env.Pressure) / float64(physic.Pascal), nil
	})
}

// Temperature returns a Source in kelvin.
func (b *BMP280) Temperature() Source {
	return Func(func() (float64, error) {
		env, err := b.sense()
		if err != nil {
			return 0, err
		}
		return float64(env.Temperature) / float64(physic.Kelvin), nil
	})
}

func (b *BMP280) Close() error {
	return b.dev.Halt()
}

var adsChannels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// adsMaxVoltage is the programmable gain range used for the level input.
const adsMaxVoltage = 4096 * physic.MilliVolt

// ADS1115 reads one single-ended channel of a TI ADS1115 and scales it to
// the level transducer's raw range.
type ADS1115 struct {
	pin       analog.PinADC
	fullScale float64
}

func OpenADS1115(bus i2c.Bus, channel int, fullScale float64) (*ADS1115, error) {
	if channel < 0 || channel >= len(adsChannels) {
		return nil, pkgerrors.Errorf("ads1115: invalid channel %d", channel)
	}
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrNotDetected, "ads1115: %v", err)
	}
	pin, err := adc.PinForChannel(adsChannels[channel], adsMaxVoltage, 10*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrNotDetected, "ads1115 channel %d: %v", channel, err)
	}
	// One probing conversion tells a missing chip from a quiet input.
	if _, err := pin.Read(); err != nil {
		_ = pin.Halt()
		return nil, pkgerrors.Wrapf(ErrNotDetected, "ads1115: %v", err)
	}
	logrus.WithField("channel", channel).Info("ads1115 detected")
	return &ADS1115{pin: pin, fullScale: fullScale}, nil
}

func (a *ADS1115) Read() (float64, error) {
	s, err := a.pin.Read()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "ads1115: read failed")
	}
	return scaleVoltage(s.V, adsMaxVoltage, a.fullScale), nil
}

func (a *ADS1115) Close() error {
	return a.pin.Halt()
}

func scaleVoltage(v, max physic.ElectricPotential, fullScale float64) float64 {
	return float64(v) / float64(max) * fullScale
}
