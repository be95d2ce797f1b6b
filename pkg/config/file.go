package config

import (
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		CapacityLiters:       ptr.To(1000.0),
		TankID:               ptr.To("0"),
		TankType:             ptr.To("freshWater"),
		LevelSource:          ptr.To(LevelSourceSim),
		SerialPort:           ptr.To("/dev/ttyUSB0"),
		SerialBaud:           ptr.To(115200),
		I2CBus:               ptr.To(""),
		ADCChannel:           ptr.To(0),
		AtmosphereSource:     ptr.To(AtmosphereSourceSim),
		LevelIntervalMs:      ptr.To(200),
		AtmosphereIntervalMs: ptr.To(1000),
		CapacitySchedule:     ptr.To("@every 5s"),
		AverageWindow:        ptr.To(5),
		StoreDir:             ptr.To("/var/lib/tankgauge"),
		AllowNonRootAccess:   ptr.To(false),
	}

	// tankIDPattern keeps the identifier usable as one segment of an
	// output path.
	tankIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	CapacityLiters       *float64 `json:"capacityLiters,omitempty"`
	TankID               *string  `json:"tankId,omitempty"`
	TankType             *string  `json:"tankType,omitempty"`
	LevelSource          *string  `json:"levelSource,omitempty"`
	SerialPort           *string  `json:"serialPort,omitempty"`
	SerialBaud           *int     `json:"serialBaud,omitempty"`
	I2CBus               *string  `json:"i2cBus,omitempty"`
	ADCChannel           *int     `json:"adcChannel,omitempty"`
	AtmosphereSource     *string  `json:"atmosphereSource,omitempty"`
	LevelIntervalMs      *int     `json:"levelIntervalMs,omitempty"`
	AtmosphereIntervalMs *int     `json:"atmosphereIntervalMs,omitempty"`
	CapacitySchedule     *string  `json:"capacitySchedule,omitempty"`
	AverageWindow        *int     `json:"averageWindow,omitempty"`
	StoreDir             *string  `json:"storeDir,omitempty"`
	AllowNonRootAccess   *bool    `json:"allowNonRootAccess,omitempty"`
}

// NewRawFileConfigFromConfig returns the effective configuration with every
// default filled in.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		CapacityLiters:       ptr.To(c.CapacityLiters()),
		TankID:               ptr.To(c.TankID()),
		TankType:             ptr.To(c.TankType()),
		LevelSource:          ptr.To(c.LevelSource()),
		SerialPort:           ptr.To(c.SerialPort()),
		SerialBaud:           ptr.To(c.SerialBaud()),
		I2CBus:               ptr.To(c.I2CBus()),
		ADCChannel:           ptr.To(c.ADCChannel()),
		AtmosphereSource:     ptr.To(c.AtmosphereSource()),
		LevelIntervalMs:      ptr.To(int(c.LevelInterval() / time.Millisecond)),
		AtmosphereIntervalMs: ptr.To(int(c.AtmosphereInterval() / time.Millisecond)),
		CapacitySchedule:     ptr.To(c.CapacitySchedule()),
		AverageWindow:        ptr.To(c.AverageWindow()),
		StoreDir:             ptr.To(c.StoreDir()),
		AllowNonRootAccess:   ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

// ValidateTankID reports whether id can be used as a tank identifier.
func ValidateTankID(id string) error {
	if !tankIDPattern.MatchString(id) {
		return pkgerrors.Errorf("invalid tank id %q: use 1-32 letters, digits, '-' or '_'", id)
	}
	return nil
}

func (f *File) CapacityLiters() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.CapacityLiters, *defaultFileConfig.CapacityLiters)
}

func (f *File) TankID() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.TankID, *defaultFileConfig.TankID)
}

func (f *File) TankType() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.TankType, *defaultFileConfig.TankType)
}

func (f *File) LevelSource() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.LevelSource, *defaultFileConfig.LevelSource)
}

func (f *File) SerialPort() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.SerialPort, *defaultFileConfig.SerialPort)
}

func (f *File) SerialBaud() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.SerialBaud, *defaultFileConfig.SerialBaud)
}

func (f *File) I2CBus() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.I2CBus, *defaultFileConfig.I2CBus)
}

func (f *File) ADCChannel() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.ADCChannel, *defaultFileConfig.ADCChannel)
}

func (f *File) AtmosphereSource() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AtmosphereSource, *defaultFileConfig.AtmosphereSource)
}

func (f *File) LevelInterval() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	ms := ptr.Deref(f.c.LevelIntervalMs, *defaultFileConfig.LevelIntervalMs)
	if ms <= 0 {
		ms = *defaultFileConfig.LevelIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (f *File) AtmosphereInterval() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	ms := ptr.Deref(f.c.AtmosphereIntervalMs, *defaultFileConfig.AtmosphereIntervalMs)
	if ms <= 0 {
		ms = *defaultFileConfig.AtmosphereIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (f *File) CapacitySchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.CapacitySchedule, *defaultFileConfig.CapacitySchedule)
}

func (f *File) AverageWindow() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	w := ptr.Deref(f.c.AverageWindow, *defaultFileConfig.AverageWindow)
	if w < 1 {
		w = 1
	}
	return w
}

func (f *File) StoreDir() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.StoreDir, *defaultFileConfig.StoreDir)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetCapacityLiters(l float64) error {
	if f.c == nil {
		panic("config is nil")
	}

	if !(l > 0) {
		return pkgerrors.Errorf("capacity must be positive, got %v", l)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.CapacityLiters = &l
	return nil
}

// SetTankID records a new identifier. Output paths are composed at startup,
// so the daemon keeps publishing under the old identifier until restarted.
func (f *File) SetTankID(id string) error {
	if f.c == nil {
		panic("config is nil")
	}

	if err := ValidateTankID(id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.TankID = &id
	return nil
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.AllowNonRootAccess = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if conf.CapacityLiters != nil && !(*conf.CapacityLiters > 0) {
		logrus.WithField("capacityLiters", *conf.CapacityLiters).Warn("ignoring non-positive capacity in config")
		conf.CapacityLiters = nil
	}
	if conf.TankID != nil && ValidateTankID(*conf.TankID) != nil {
		logrus.WithField("tankId", *conf.TankID).Warn("ignoring invalid tank id in config")
		conf.TankID = nil
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"capacityLiters":     f.CapacityLiters(),
		"tankId":             f.TankID(),
		"tankType":           f.TankType(),
		"levelSource":        f.LevelSource(),
		"atmosphereSource":   f.AtmosphereSource(),
		"levelInterval":      f.LevelInterval().String(),
		"atmosphereInterval": f.AtmosphereInterval().String(),
		"capacitySchedule":   f.CapacitySchedule(),
		"averageWindow":      f.AverageWindow(),
		"storeDir":           f.StoreDir(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
