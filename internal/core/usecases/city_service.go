package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
	"github.com/samirrijal/tripplanner/internal/pkg/telemetry"
)

const (
	// MinPrefixLen is the shortest prefix sent to the directory.
	MinPrefixLen = 3
	cityCacheTTL = 86400 // 24h, city names barely change
)

// CityService serves city autocomplete.
type CityService struct {
	directory ports.CityDirectory
	cache     ports.CacheService
	tracer    trace.Tracer
}

// NewCityService creates a new CityService. cache may be nil.
func NewCityService(directory ports.CityDirectory, cache ports.CacheService) *CityService {
	return &CityService{directory: directory, cache: cache, tracer: telemetry.Tracer()}
}

// Autocomplete returns cities whose name starts with prefix. Prefixes
// shorter than MinPrefixLen return an empty list without a lookup.
func (s *CityService) Autocomplete(ctx context.Context, prefix string) ([]domain.CitySuggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < MinPrefixLen {
		return []domain.CitySuggestion{}, nil
	}

	ctx, span := s.tracer.Start(ctx, telemetry.SpanCityLookup,
		trace.WithAttributes(attribute.String(telemetry.AttrCityPrefix, prefix)))
	defer span.End()

	key := "cities:prefix:" + strings.ToLower(prefix)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cities []domain.CitySuggestion
			if err := json.Unmarshal(data, &cities); err == nil {
				metrics.CacheHits.WithLabelValues("cities").Inc()
				return cities, nil
			}
		} else if !errors.Is(err, ports.ErrCacheMiss) {
			logging.FromContext(ctx).Warn("city cache read failed", "error", err)
		}
		metrics.CacheMisses.WithLabelValues("cities").Inc()
	}

	cities, err := s.directory.Search(ctx, prefix)
	if err != nil {
		metrics.CityLookupErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("city autocomplete %q: %w", prefix, err)
	}
	if cities == nil {
		cities = []domain.CitySuggestion{}
	}

	if s.cache != nil {
		if data, err := json.Marshal(cities); err == nil {
			_ = s.cache.Set(ctx, key, data, cityCacheTTL)
		}
	}
	return cities, nil
}
