// Package solar approximates sunrise and sunset for a fixed site.
//
// The model uses the equation-of-time and solar-declination approximations,
// which are good to a few minutes away from the poles. Inside the polar
// circles the hour angle is clamped, so a day of midnight sun yields a
// sunrise twelve hours before solar noon and a polar night yields sunrise
// and sunset both at solar noon.
package solar

import (
	"math"
	"time"
)

// axialTilt is the Earth's obliquity in degrees.
const axialTilt = 23.45

// Model computes solar events for one site.
type Model struct {
	Latitude  float64 // degrees north
	Longitude float64 // degrees east
}

// New creates a model for the given coordinates.
func New(latitude, longitude float64) Model {
	return Model{Latitude: latitude, Longitude: longitude}
}

// SolarNoon returns the moment the sun crosses the meridian on t's calendar
// day, in t's location.
func (m Model) SolarNoon(t time.Time) time.Time {
	yday := float64(t.YearDay())
	_, offset := t.Zone()
	utcOffsetHours := float64(offset) / 3600

	b := radians(360 * (yday - 81) / 365)
	eot := 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)
	correction := 4*(m.Longitude-15*utcOffsetHours) + eot

	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
	return noon.Add(-minutes(correction))
}

// Sunrise returns sunrise on t's calendar day, in t's location.
func (m Model) Sunrise(t time.Time) time.Time {
	return m.SolarNoon(t).Add(-m.halfDay(t))
}

// Sunset returns sunset on t's calendar day, in t's location.
func (m Model) Sunset(t time.Time) time.Time {
	return m.SolarNoon(t).Add(m.halfDay(t))
}

// DayLength returns the time between sunrise and sunset on t's day.
func (m Model) DayLength(t time.Time) time.Duration {
	return 2 * m.halfDay(t)
}

// halfDay is the hour angle of sunrise expressed as a duration.
func (m Model) halfDay(t time.Time) time.Duration {
	yday := float64(t.YearDay())
	decl := math.Asin(math.Sin(radians(axialTilt)) * math.Sin(radians(360*(yday-81)/365)))

	cosH := -math.Tan(radians(m.Latitude)) * math.Tan(decl)
	cosH = math.Max(-1, math.Min(1, cosH))
	hours := degrees(math.Acos(cosH)) / 15
	return minutes(hours * 60)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
