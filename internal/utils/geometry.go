package utils

import "math"

// RadiusOfEarthInMeters is the mean Earth radius used for station distances.
const RadiusOfEarthInMeters = 6371010.0

// MaxNearbyRadius caps "stations near me" searches.
const MaxNearbyRadius = 5000.0

// CoordinateBounds is a lat/lon bounding box.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Min and Max return the box corners in (lon, lat) order, the axis order of
// the station index.
func (b CoordinateBounds) Min() [2]float64 { return [2]float64{b.MinLon, b.MinLat} }
func (b CoordinateBounds) Max() [2]float64 { return [2]float64{b.MaxLon, b.MaxLat} }

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the great-circle distance in meters. Points less than
// about 20km apart use the equirectangular approximation, which is well
// within a meter of haversine at city scale.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		x := dLon * math.Cos(radians(lat1+lat2)/2)
		return RadiusOfEarthInMeters * math.Hypot(x, dLat)
	}

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * RadiusOfEarthInMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// CalculateBounds returns the box that contains every point within radius
// meters of (lat, lon).
func CalculateBounds(lat, lon, radius float64) CoordinateBounds {
	latOffset := radius / RadiusOfEarthInMeters * 180 / math.Pi
	lonOffset := radius / (RadiusOfEarthInMeters * math.Cos(radians(lat))) * 180 / math.Pi

	return CoordinateBounds{
		MinLat: lat - latOffset,
		MaxLat: lat + latOffset,
		MinLon: lon - lonOffset,
		MaxLon: lon + lonOffset,
	}
}

// ValidCoordinate reports whether lat/lon are on the globe.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 &&
		!math.IsNaN(lat) && !math.IsNaN(lon)
}
