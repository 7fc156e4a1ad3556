package geo

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Mock geocodes every non-empty address to a point near the restaurant
type Mock struct {
	sim    *sim.Simulator
	zone   Zone
	logger logger.Logger
}

// NewMock creates a mock geo provider
func NewMock(cfg sim.Config, zone Zone, logger logger.Logger) *Mock {
	logger.Info("Mock geo provider initialized",
		"failureRate", cfg.FailureRate,
		"deliveryZones", zone.Size())

	return &Mock{
		sim:    sim.New(cfg),
		zone:   zone,
		logger: logger,
	}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) ValidateAddress(ctx context.Context, q AddressQuery) (*ValidationResult, error) {
	q = q.withDefaults()

	latency, err := m.sim.Sleep(ctx)
	if err != nil {
		return nil, err
	}
	ms := latency.Milliseconds()

	if m.sim.ShouldFail() {
		m.logger.Debug("Mock geocoding failure")
		return &ValidationResult{
			ErrorCode:      "service_unavailable",
			ErrorMessage:   "Geocoding service temporarily unavailable",
			ResponseTimeMs: ms,
		}, nil
	}

	if strings.TrimSpace(q.Address) == "" {
		return &ValidationResult{
			ErrorCode:      "invalid_address",
			ErrorMessage:   "Address is required",
			ResponseTimeMs: ms,
		}, nil
	}

	point := LatLng{
		Lat: round(Restaurant.Lat+m.sim.Uniform(-0.05, 0.05), 6),
		Lng: round(Restaurant.Lng+m.sim.Uniform(-0.05, 0.05), 6),
	}

	result := &ValidationResult{
		IsValid:          true,
		IsInZone:         true,
		FormattedAddress: fmt.Sprintf("%s, %s, %s %s", title(q.Address), title(q.City), strings.ToUpper(q.State), q.ZipCode),
		Latitude:         point.Lat,
		Longitude:        point.Lng,
		ZipCode:          q.ZipCode,
		City:             title(q.City),
		State:            strings.ToUpper(q.State),
		Country:          q.Country,
		DistanceMiles:    round(Haversine(Restaurant, point), 1),
		ResponseTimeMs:   ms,
	}

	if !m.zone.Contains(q.ZipCode) {
		m.logger.Debug("Mock zip code outside delivery zone", "zip", q.ZipCode)
		return outsideZone(result), nil
	}

	m.logger.Info("Mock address validated", "address", result.FormattedAddress)
	return result, nil
}

func (m *Mock) CalculateDistance(ctx context.Context, origin, dest LatLng) (*DistanceResult, error) {
	if _, err := m.sim.Sleep(ctx); err != nil {
		return nil, err
	}

	miles := round(Haversine(origin, dest), 1)

	// 15 mph city average, never under 5 minutes
	minutes := int(miles / 15 * 60)
	if minutes < 5 {
		minutes = 5
	}

	return &DistanceResult{
		Success:         true,
		DistanceMiles:   miles,
		DistanceKm:      round(miles*1.60934, 1),
		DurationMinutes: minutes,
	}, nil
}

func (m *Mock) IsInDeliveryZone(zip string) bool {
	return m.zone.Contains(zip)
}

func (m *Mock) HealthCheck(ctx context.Context) bool {
	return true
}
