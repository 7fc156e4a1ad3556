package geo

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

var testZone = NewZone([]string{"10001", "10002", " 10003 "})

func newMock(failureRate float64) *Mock {
	return NewMock(sim.Config{FailureRate: failureRate, Rand: rand.New(rand.NewSource(7))}, testZone, logger.NewNop())
}

func TestZone(t *testing.T) {
	assert.True(t, testZone.Contains("10001"))
	assert.True(t, testZone.Contains("10003"))
	assert.False(t, testZone.Contains("90210"))
	assert.False(t, testZone.Contains(""))
	assert.Equal(t, 3, testZone.Size())
}

func TestMock_ValidateAddress(t *testing.T) {
	tests := []struct {
		name      string
		query     AddressQuery
		valid     bool
		inZone    bool
		code      string
		formatted string
	}{
		{
			name:      "in zone",
			query:     AddressQuery{Address: "350 fifth avenue", City: "new york", ZipCode: "10001", State: "ny"},
			valid:     true,
			inZone:    true,
			formatted: "350 Fifth Avenue, New York, NY 10001",
		},
		{
			name:   "outside zone",
			query:  AddressQuery{Address: "1 Main St", ZipCode: "90210"},
			valid:  true,
			inZone: false,
			code:   "outside_delivery_zone",
		},
		{
			name:  "empty address",
			query: AddressQuery{Address: "  ", ZipCode: "10001"},
			code:  "invalid_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newMock(0).ValidateAddress(context.Background(), tt.query)
			require.NoError(t, err)

			assert.Equal(t, tt.valid, res.IsValid)
			assert.Equal(t, tt.inZone, res.IsInZone)
			assert.Equal(t, tt.code, res.ErrorCode)
			if tt.formatted != "" {
				assert.Equal(t, tt.formatted, res.FormattedAddress)
			}
			if tt.valid {
				assert.InDelta(t, Restaurant.Lat, res.Latitude, 0.05)
				assert.InDelta(t, Restaurant.Lng, res.Longitude, 0.05)
			}
		})
	}
}

func TestMock_ValidateAddress_AlwaysFailsAtFullFailureRate(t *testing.T) {
	m := newMock(1)

	for i := 0; i < 10; i++ {
		res, err := m.ValidateAddress(context.Background(), AddressQuery{Address: "1 Main St", ZipCode: "10001"})
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, "service_unavailable", res.ErrorCode)
	}
}

func TestMock_CalculateDistance(t *testing.T) {
	res, err := newMock(0).CalculateDistance(context.Background(),
		LatLng{Lat: 40.7128, Lng: -74.0060},
		LatLng{Lat: 40.7580, Lng: -73.9855})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.InDelta(t, 3.3, res.DistanceMiles, 0.2)
	assert.InDelta(t, res.DistanceMiles*1.60934, res.DistanceKm, 0.1)
	assert.GreaterOrEqual(t, res.DurationMinutes, 5)
}

func TestHaversine(t *testing.T) {
	assert.Zero(t, Haversine(Restaurant, Restaurant))
	// New York to Los Angeles
	assert.InDelta(t, 2445, Haversine(Restaurant, LatLng{Lat: 34.0522, Lng: -118.2437}), 15)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "123 Main St", title("123  main ST"))
	assert.Equal(t, "", title(""))
}

const geocodeOK = `{"status":"OK","results":[{"formatted_address":"350 5th Ave, New York, NY 10001, USA",
"geometry":{"location":{"lat":40.7484,"lng":-73.9857}},
"address_components":[
 {"long_name":"10001","short_name":"10001","types":["postal_code"]},
 {"long_name":"New York","short_name":"New York","types":["locality","political"]},
 {"long_name":"New York","short_name":"NY","types":["administrative_area_level_1","political"]},
 {"long_name":"United States","short_name":"US","types":["country","political"]}]}]}`

func newGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGoogle(GoogleConfig{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second, CacheSize: 8}, testZone, logger.NewNop())
	require.NoError(t, err)
	return g
}

func TestGoogle_ValidateAddress_CachesResults(t *testing.T) {
	var calls int32

	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		assert.Equal(t, "350 5th Ave, New York, NY 10001, US", r.URL.Query().Get("address"))
		w.Write([]byte(geocodeOK))
	})

	q := AddressQuery{Address: "350 5th Ave", ZipCode: "10001"}

	res, err := g.ValidateAddress(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, res.Deliverable())
	assert.Equal(t, "10001", res.ZipCode)
	assert.Equal(t, "New York", res.City)
	assert.Equal(t, "NY", res.State)
	assert.Equal(t, "US", res.Country)

	again, err := g.ValidateAddress(context.Background(), AddressQuery{Address: "350  5TH AVE", ZipCode: "10001"})
	require.NoError(t, err)
	assert.Equal(t, res.FormattedAddress, again.FormattedAddress)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGoogle_ValidateAddress_OutsideZone(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"1 Main St, Hoboken, NJ 07030, USA",
			"geometry":{"location":{"lat":40.74,"lng":-74.03}},
			"address_components":[{"long_name":"07030","short_name":"07030","types":["postal_code"]}]}]}`))
	})

	res, err := g.ValidateAddress(context.Background(), AddressQuery{Address: "1 Main St", City: "Hoboken", ZipCode: "07030", State: "NJ"})
	require.NoError(t, err)

	assert.True(t, res.IsValid)
	assert.False(t, res.IsInZone)
	assert.Equal(t, "outside_delivery_zone", res.ErrorCode)
	assert.Equal(t, "07030", res.ZipCode)
}

func TestGoogle_ValidateAddress_NotFound(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	res, err := g.ValidateAddress(context.Background(), AddressQuery{Address: "nowhere", ZipCode: "10001"})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, "address_not_found", res.ErrorCode)
}

func TestGoogle_ValidateAddress_ServerErrorIsSystemFailure(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := g.ValidateAddress(context.Background(), AddressQuery{Address: "350 5th Ave", ZipCode: "10001"})
	assert.Error(t, err)
}

func TestGoogle_CalculateDistance(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/distancematrix/json", r.URL.Path)
		w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"value":8046.7},"duration":{"value":900}}]}]}`))
	})

	res, err := g.CalculateDistance(context.Background(), Restaurant, LatLng{Lat: 40.75, Lng: -73.98})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 5.0, res.DistanceMiles)
	assert.Equal(t, 8.0, res.DistanceKm)
	assert.Equal(t, 15, res.DurationMinutes)
}
