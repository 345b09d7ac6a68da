package sim

import (
	"log"
	"math"
	"time"
)

// VTime is a point on the simulated timeline, expressed as an integer
// count of nanoseconds since the start of the simulation.
type VTime int64

// Defines the units of virtual time.
const (
	Nanosecond  VTime = 1
	Microsecond       = 1000 * Nanosecond
	Millisecond       = 1000 * Microsecond
	Second            = 1000 * Millisecond
	Minute            = 60 * Second
	Hour              = 60 * Minute
)

// MaxSimulationTime is the largest timestamp an event can carry.
const MaxSimulationTime = VTime(math.MaxInt64)

// TimeUnit names the unit of a raw integer time value.
type TimeUnit int

// Defines the units accepted by NewVTime. Units finer than a nanosecond
// are truncated toward zero during conversion.
const (
	UnitSecond TimeUnit = iota
	UnitMillisecond
	UnitMicrosecond
	UnitNanosecond
	UnitPicosecond
	UnitFemtosecond
)

// NewVTime converts an integer count of the given unit into a VTime.
func NewVTime(value int64, unit TimeUnit) VTime {
	switch unit {
	case UnitSecond:
		return VTime(value) * Second
	case UnitMillisecond:
		return VTime(value) * Millisecond
	case UnitMicrosecond:
		return VTime(value) * Microsecond
	case UnitNanosecond:
		return VTime(value)
	case UnitPicosecond:
		return VTime(value / 1000)
	case UnitFemtosecond:
		return VTime(value / 1000000)
	}

	log.Panicf("unknown time unit %d", unit)
	return 0
}

// FromDuration converts a wall-clock duration into a virtual time span.
func FromDuration(d time.Duration) VTime {
	return VTime(d.Nanoseconds())
}

// Duration converts the virtual time into a wall-clock duration of the
// same length.
func (t VTime) Duration() time.Duration {
	return time.Duration(t)
}

// Seconds returns the time as a floating-point number of seconds.
func (t VTime) Seconds() float64 {
	return float64(t) / float64(Second)
}

func (t VTime) String() string {
	return time.Duration(t).String()
}
