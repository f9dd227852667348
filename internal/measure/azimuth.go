// Package measure computes the azimuth and radius of a two-point line as
// drawn by a measuring tool.
package measure

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

var ErrDegenerate = errors.New("line needs two distinct points")

// Azimuth returns the angle in degrees between north and the segment from
// the first to the second point of line, clockwise positive and negative
// west of north, in [-180, 180].
func Azimuth(line orb.LineString) (float64, error) {
	if len(line) < 2 {
		return 0, ErrDegenerate
	}
	dx := line[1][0] - line[0][0]
	dy := line[1][1] - line[0][1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return 0, ErrDegenerate
	}
	rad := math.Acos(dy / length)
	factor := -1.0
	if dx > 0 {
		factor = 1
	}
	az := math.Mod(factor*rad*180/math.Pi, 360)
	if az == 0 {
		az = 0 // no negative zero
	}
	return az, nil
}

// Length returns the length of line in meters. Geographic lines are lon/lat
// and measured on the sphere; others are measured in the plane.
func Length(line orb.LineString, geographic bool) (float64, error) {
	if len(line) < 2 {
		return 0, ErrDegenerate
	}
	if geographic {
		return geo.LengthHaversine(line), nil
	}
	return planar.Length(line), nil
}

// FormatAzimuthRadius renders "<azimuth>°, <length> <unit>" with the azimuth
// on decimals digits and the length on precision digits, switching to km
// above 1000 m.
func FormatAzimuthRadius(line orb.LineString, geographic bool, decimals, precision int) (string, error) {
	az, err := Azimuth(line)
	if err != nil {
		return "", err
	}
	length, err := Length(line, geographic)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s°, %s", strconv.FormatFloat(az, 'f', decimals, 64), formatLength(length, precision)), nil
}

func formatLength(m float64, precision int) string {
	if m > 1000 {
		return strconv.FormatFloat(m/1000, 'f', precision, 64) + " km"
	}
	return strconv.FormatFloat(m, 'f', precision, 64) + " m"
}
