package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaidashi/phone-order-api/internal/clients"
	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// GoogleConfig configures the Google Maps backend
type GoogleConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
}

// Google geocodes through the Google Maps Geocoding and Distance Matrix APIs
type Google struct {
	client *clients.APIClient
	apiKey string
	zone   Zone
	cache  *lru.Cache[string, ValidationResult]
	logger logger.Logger
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location LatLng `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// NewGoogle creates the Google Maps backend
func NewGoogle(cfg GoogleConfig, zone Zone, logger logger.Logger) (*Google, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}

	cache, err := lru.New[string, ValidationResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode cache: %w", err)
	}

	client := clients.NewAPIClient(clients.Config{
		Name:    "google_maps",
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, logger)

	logger.Info("Google geo provider initialized", "cacheSize", cfg.CacheSize, "deliveryZones", zone.Size())

	return &Google{
		client: client,
		apiKey: cfg.APIKey,
		zone:   zone,
		cache:  cache,
		logger: logger,
	}, nil
}

func (g *Google) Name() string {
	return "google"
}

// Breaker exposes the circuit breaker guarding the Maps API
func (g *Google) Breaker() *circuitbreaker.CircuitBreaker {
	return g.client.Breaker()
}

func cacheKey(full string) string {
	return strings.Join(strings.Fields(strings.ToLower(full)), " ")
}

func (g *Google) ValidateAddress(ctx context.Context, q AddressQuery) (*ValidationResult, error) {
	q = q.withDefaults()

	if strings.TrimSpace(q.Address) == "" {
		return &ValidationResult{ErrorCode: "invalid_address", ErrorMessage: "Address is required"}, nil
	}

	full := fmt.Sprintf("%s, %s, %s %s, %s", q.Address, q.City, q.State, q.ZipCode, q.Country)
	key := cacheKey(full)

	if cached, ok := g.cache.Get(key); ok {
		g.logger.Debug("Geocode cache hit", "address", key)
		result := cached
		result.ResponseTimeMs = 0
		return &result, nil
	}

	start := time.Now()

	resp, err := g.client.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/maps/api/geocode/json",
		Query:  url.Values{"address": {full}, "key": {g.apiKey}},
	})
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()

	if !resp.OK() {
		g.logger.Error("Geocoding request rejected", "status", resp.StatusCode)
		return &ValidationResult{ErrorCode: "api_error", ErrorMessage: "Address validation service error", ResponseTimeMs: elapsed}, nil
	}

	var body geocodeResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		g.logger.Warn("Address not found", "address", full)
		return &ValidationResult{
			ErrorCode:      "address_not_found",
			ErrorMessage:   "Address not found. Please check and try again.",
			ResponseTimeMs: elapsed,
		}, nil
	default:
		g.logger.Error("Geocoding API error", "status", body.Status, "message", body.ErrorMessage)
		return &ValidationResult{ErrorCode: "api_error", ErrorMessage: "Address validation service error", ResponseTimeMs: elapsed}, nil
	}

	if len(body.Results) == 0 {
		return &ValidationResult{
			ErrorCode:      "address_not_found",
			ErrorMessage:   "Address not found. Please check and try again.",
			ResponseTimeMs: elapsed,
		}, nil
	}

	best := body.Results[0]
	result := ValidationResult{
		IsValid:          true,
		IsInZone:         true,
		FormattedAddress: best.FormattedAddress,
		Latitude:         best.Geometry.Location.Lat,
		Longitude:        best.Geometry.Location.Lng,
		DistanceMiles:    round(Haversine(Restaurant, best.Geometry.Location), 1),
		ResponseTimeMs:   elapsed,
	}

	for _, c := range best.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "postal_code":
				result.ZipCode = c.ShortName
			case "locality":
				result.City = c.LongName
			case "administrative_area_level_1":
				result.State = c.ShortName
			case "country":
				result.Country = c.ShortName
			}
		}
	}

	if result.ZipCode == "" {
		result.ZipCode = q.ZipCode
	}
	if result.FormattedAddress == "" {
		result.FormattedAddress = full
	}

	if !g.zone.Contains(result.ZipCode) {
		g.logger.Info("Address outside delivery zone", "zip", result.ZipCode)
		outsideZone(&result)
	}

	g.cache.Add(key, result)
	return &result, nil
}

func (g *Google) CalculateDistance(ctx context.Context, origin, dest LatLng) (*DistanceResult, error) {
	resp, err := g.client.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/maps/api/distancematrix/json",
		Query: url.Values{
			"origins":      {fmt.Sprintf("%f,%f", origin.Lat, origin.Lng)},
			"destinations": {fmt.Sprintf("%f,%f", dest.Lat, dest.Lng)},
			"mode":         {"driving"},
			"units":        {"imperial"},
			"key":          {g.apiKey},
		},
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return &DistanceResult{ErrorMessage: fmt.Sprintf("Distance calculation failed: HTTP %d", resp.StatusCode)}, nil
	}

	var body distanceMatrixResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	if body.Status != "OK" || len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return &DistanceResult{ErrorMessage: fmt.Sprintf("Distance calculation failed: %s", body.Status)}, nil
	}

	element := body.Rows[0].Elements[0]
	if element.Status != "OK" {
		return &DistanceResult{ErrorMessage: fmt.Sprintf("Distance calculation failed: %s", element.Status)}, nil
	}

	return &DistanceResult{
		Success:         true,
		DistanceMiles:   round(element.Distance.Value/1609.34, 1),
		DistanceKm:      round(element.Distance.Value/1000, 1),
		DurationMinutes: int(element.Duration.Value / 60),
	}, nil
}

func (g *Google) IsInDeliveryZone(zip string) bool {
	return g.zone.Contains(zip)
}

func (g *Google) HealthCheck(ctx context.Context) bool {
	resp, err := g.client.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/maps/api/geocode/json",
		Query:  url.Values{"address": {"New York, NY"}, "key": {g.apiKey}},
	})
	if err != nil {
		g.logger.Error("Google health check failed", "error", err)
		return false
	}

	var body geocodeResponse
	if !resp.OK() || resp.Decode(&body) != nil {
		return false
	}
	return body.Status == "OK"
}
