// Package sun gates door automations to the hours between sunset and
// sunrise at the configured site.
package sun

import (
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/petro31/illuminate-door/internal/infrastructure/config"
)

// horizon is the solar elevation, in degrees, at sunrise and sunset once
// refraction and the solar disc are allowed for.
const horizon = -0.833

// Gate implements automation.Gate. It reports gated while the sun is up.
//
// Thread Safety: All methods are safe for concurrent use.
type Gate struct {
	latitude  float64
	longitude float64
	now       func() time.Time
}

// New creates a gate for a site location.
func New(loc config.LocationConfig) *Gate {
	return &Gate{
		latitude:  loc.Latitude,
		longitude: loc.Longitude,
		now:       time.Now,
	}
}

// IsGated reports whether door transitions should be ignored right now.
func (g *Gate) IsGated() bool {
	return g.SunUp(g.now())
}

// SunUp reports whether t falls between sunrise and sunset.
//
// The UTC day of t and its neighbours are checked, since at far
// longitudes the daylight interval containing t can start on the
// previous UTC date. On a day with no sunrise or sunset (polar day or
// night) the sun's elevation at t decides.
func (g *Gate) SunUp(t time.Time) bool {
	t = t.UTC()
	if rise, set := sunrise.SunriseSunset(g.latitude, g.longitude, t.Year(), t.Month(), t.Day()); rise.IsZero() || set.IsZero() {
		return sunrise.Elevation(g.latitude, g.longitude, t) > horizon
	}

	for _, offset := range []int{-1, 0, 1} {
		day := t.AddDate(0, 0, offset)
		rise, set := sunrise.SunriseSunset(g.latitude, g.longitude, day.Year(), day.Month(), day.Day())
		if rise.IsZero() || set.IsZero() {
			continue
		}
		if !t.Before(rise) && t.Before(set) {
			return true
		}
	}
	return false
}

// Next returns the next sunrise and sunset after t.
// Zero values mean none was found within two days.
func (g *Gate) Next(t time.Time) (rise, set time.Time) {
	t = t.UTC()
	for offset := 0; offset <= 2; offset++ {
		day := t.AddDate(0, 0, offset)
		r, s := sunrise.SunriseSunset(g.latitude, g.longitude, day.Year(), day.Month(), day.Day())
		if rise.IsZero() && !r.IsZero() && r.After(t) {
			rise = r
		}
		if set.IsZero() && !s.IsZero() && s.After(t) {
			set = s
		}
	}
	return rise, set
}
