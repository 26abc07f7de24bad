package geohash

import (
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// MaxPrecision is the longest geohash Encode produces.
const MaxPrecision = 12

// Encode geohashes loc to a string of precision characters.
func Encode(loc datalake.Location, precision int) (string, error) {
	if precision < 1 || precision > MaxPrecision {
		return "", errors.Errorf("precision %d out of range [1, %d]", precision, MaxPrecision)
	}
	lat, lon := loc.Latitude, loc.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return "", errors.Errorf("invalid latitude %v", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return "", errors.Errorf("invalid longitude %v", lon)
	}
	return geohash.EncodeWithPrecision(lat, lon, uint(precision)), nil
}
