package app

import "fmt"

// Store keys.
const (
	CurveKey             = "/tank/level/curve"
	PressureOffsetKey    = "/calibration/pressure"
	TemperatureOffsetKey = "/calibration/temperature"
)

// Output paths of the atmospheric pipeline.
const (
	PressurePath    = "environment.outside.pressure"
	TemperaturePath = "environment.outside.temperature"
)

// Offset names accepted by SetOffset and Offset.
const (
	OffsetPressure    = "pressure"
	OffsetTemperature = "temperature"
)

// Paths are the tank output paths. They are composed once from the tank
// type and identifier at startup.
type Paths struct {
	Level    string `json:"level"`
	Volume   string `json:"volume"`
	Capacity string `json:"capacity"`
}

func NewPaths(tankType, tankID string) Paths {
	prefix := fmt.Sprintf("tanks.%s.%s", tankType, tankID)
	return Paths{
		Level:    prefix + ".currentLevel",
		Volume:   prefix + ".currentVolume",
		Capacity: prefix + ".capacity",
	}
}
