// Package geo validates delivery addresses and answers delivery zone questions.
package geo

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Restaurant is the origin used for distance calculations
var Restaurant = LatLng{Lat: 40.7128, Lng: -74.0060}

const earthRadiusMiles = 3958.8

// Provider is implemented by every geo backend
type Provider interface {
	Name() string
	ValidateAddress(ctx context.Context, q AddressQuery) (*ValidationResult, error)
	CalculateDistance(ctx context.Context, origin, dest LatLng) (*DistanceResult, error)
	IsInDeliveryZone(zip string) bool
	HealthCheck(ctx context.Context) bool
}

// AddressQuery is the address a caller gave us
type AddressQuery struct {
	Address string
	City    string
	ZipCode string
	State   string
	Country string
}

func (q AddressQuery) withDefaults() AddressQuery {
	if q.City == "" {
		q.City = "New York"
	}
	if q.State == "" {
		q.State = "NY"
	}
	if q.Country == "" {
		q.Country = "US"
	}
	q.ZipCode = strings.TrimSpace(q.ZipCode)
	return q
}

// LatLng is a coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidationResult reports whether an address exists and whether we deliver there.
// An address outside the zone is valid with IsInZone false and ErrorCode outside_delivery_zone.
type ValidationResult struct {
	IsValid          bool    `json:"is_valid"`
	IsInZone         bool    `json:"is_in_delivery_zone"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`
	ZipCode          string  `json:"zip_code,omitempty"`
	City             string  `json:"city,omitempty"`
	State            string  `json:"state,omitempty"`
	Country          string  `json:"country,omitempty"`
	DistanceMiles    float64 `json:"distance_miles,omitempty"`
	ErrorCode        string  `json:"error_code,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	ResponseTimeMs   int64   `json:"response_time_ms"`
}

// Deliverable reports a valid address inside the zone
func (r *ValidationResult) Deliverable() bool {
	return r.IsValid && r.IsInZone
}

// DistanceResult is the distance and travel time between two points
type DistanceResult struct {
	Success         bool    `json:"success"`
	DistanceMiles   float64 `json:"distance_miles"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// Zone is the static set of zip codes we deliver to
type Zone struct {
	zips map[string]struct{}
}

// NewZone builds a zone from zip codes
func NewZone(zips []string) Zone {
	z := Zone{zips: make(map[string]struct{}, len(zips))}
	for _, zip := range zips {
		if zip = strings.TrimSpace(zip); zip != "" {
			z.zips[zip] = struct{}{}
		}
	}
	return z
}

// Contains reports zone membership
func (z Zone) Contains(zip string) bool {
	_, ok := z.zips[strings.TrimSpace(zip)]
	return ok
}

// Size returns the number of zip codes in the zone
func (z Zone) Size() int {
	return len(z.zips)
}

func outsideZone(r *ValidationResult) *ValidationResult {
	r.IsValid = true
	r.IsInZone = false
	r.ErrorCode = "outside_delivery_zone"
	r.ErrorMessage = "Sorry, we don't deliver to zip code " + r.ZipCode
	return r
}

// Haversine returns the great circle distance in miles
func Haversine(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// title upper-cases the first letter of every word and lower-cases the rest
func title(s string) string {
	words := strings.Fields(s)

	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
