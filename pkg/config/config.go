package config

import "time"

// Source kinds for the level input.
const (
	LevelSourceSim     = "sim"
	LevelSourceADS1115 = "ads1115"
	LevelSourceSerial  = "serial"
	LevelSourceNone    = "none"
)

// Source kinds for the atmospheric sensor.
const (
	AtmosphereSourceSim    = "sim"
	AtmosphereSourceBMP280 = "bmp280"
	AtmosphereSourceNone   = "none"
)

type Config interface {
	CapacityLiters() float64
	TankID() string
	TankType() string

	LevelSource() string
	SerialPort() string
	SerialBaud() int
	I2CBus() string
	ADCChannel() int
	AtmosphereSource() string

	LevelInterval() time.Duration
	AtmosphereInterval() time.Duration
	CapacitySchedule() string
	AverageWindow() int

	StoreDir() string
	AllowNonRootAccess() bool

	SetCapacityLiters(float64) error
	SetTankID(string) error
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
