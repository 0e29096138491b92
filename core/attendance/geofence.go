package attendance

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// earthRadiusM is the mean Earth radius used by the haversine formula.
const earthRadiusM = 6371000.0

var ErrInvalidCoordinates = errors.New("invalid coordinates")

type (
	// Geofence is a circular area around the campus; attendance scans are
	// only accepted from inside it.
	Geofence struct {
		Latitude  float64
		Longitude float64
		RadiusM   float64
	}

	GeofenceDecision struct {
		Allowed   bool
		DistanceM float64
	}
)

// GeofenceDeniedError carries the measured distance so the client can show
// the student how far off campus they are.
type GeofenceDeniedError struct {
	DistanceM float64
	RadiusM   float64
}

func (e *GeofenceDeniedError) Error() string {
	return fmt.Sprintf("you are %.0f m from campus; attendance can only be registered within %.0f m", e.DistanceM, e.RadiusM)
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Check measures the haversine distance from the fence center to the given
// point and decides whether it falls within the radius (boundary inclusive).
func (g Geofence) Check(lat, lng float64) (GeofenceDecision, error) {
	if !validCoordinate(lat, lng) {
		return GeofenceDecision{}, ErrInvalidCoordinates
	}
	d := haversine(g.Latitude, g.Longitude, lat, lng)
	return GeofenceDecision{Allowed: d <= g.RadiusM, DistanceM: d}, nil
}

func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	phi1, phi2 := lat1*degToRad, lat2*degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lng2 - lng1) * degToRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
