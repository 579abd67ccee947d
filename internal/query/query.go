package query

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/firewx/climo/internal/climo"
	"github.com/firewx/climo/internal/types"
)

// DecileStore reads stored decile rows.
type DecileStore interface {
	DecileRowsFor(ctx context.Context, site, model string) ([]*types.DecileRow, error)
}

// Cache is the optional read-through cache for single-bucket lookups.
type Cache interface {
	GetDecileRow(ctx context.Context, site, model string, dayOfYear, hourOfDay int) (*types.DecileRow, error)
	CacheDecileRow(ctx context.Context, row *types.DecileRow) error
}

// Service resolves stored climatological distributions onto concrete dates.
type Service struct {
	store DecileStore
	cache Cache
}

// New creates a query service. cache may be nil.
func New(store DecileStore, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

// HourlyDecile is one bucket's distribution placed at a concrete time
// within a requested range.
type HourlyDecile struct {
	ValidTime time.Time
	Deciles   climo.Deciles
}

// HourlyDeciles returns the stored deciles for one element mapped onto
// every matching hour in [start, end]. The range must be under a year so
// each (day_of_year, hour) bucket lands on exactly one date.
func (s *Service) HourlyDeciles(ctx context.Context, site, model string, element types.Element, start, end time.Time) ([]HourlyDecile, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if end.Sub(start) >= 366*24*time.Hour {
		return nil, fmt.Errorf("range %s to %s spans a year or more", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	rows, err := s.store.DecileRowsFor(ctx, site, model)
	if err != nil {
		return nil, fmt.Errorf("failed to load decile rows: %w", err)
	}

	startYear, startDoy := start.Year(), start.YearDay()
	endYear, endDoy := end.Year(), end.YearDay()

	var out []HourlyDecile
	for _, row := range rows {
		var year int
		switch {
		case startYear == endYear || row.DayOfYear >= startDoy:
			year = startYear
		case row.DayOfYear <= endDoy:
			year = endYear
		default:
			continue
		}

		validTime := time.Date(year, 1, 1, row.HourOfDay, 0, 0, 0, time.UTC).
			AddDate(0, 0, row.DayOfYear-1)
		if validTime.Year() != year {
			// Day 366 of a non-leap year.
			continue
		}
		if validTime.Before(start) || validTime.After(end) {
			continue
		}

		deciles, err := climo.DecodeDeciles(row.Blob(element))
		if err != nil {
			return nil, fmt.Errorf("bucket doy=%d hour=%d: %w", row.DayOfYear, row.HourOfDay, err)
		}
		out = append(out, HourlyDecile{ValidTime: validTime, Deciles: deciles})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ValidTime.Before(out[j].ValidTime) })
	return out, nil
}

// BucketDeciles returns one bucket's decile vector for an element, reading
// through the cache when one is configured. A missing bucket returns nil.
func (s *Service) BucketDeciles(ctx context.Context, site, model string, dayOfYear, hourOfDay int, element types.Element) (climo.Deciles, error) {
	if s.cache != nil {
		row, err := s.cache.GetDecileRow(ctx, site, model, dayOfYear, hourOfDay)
		if err != nil {
			log.Printf("Warning: decile cache read failed for %s/%s: %v", site, model, err)
		} else if row != nil {
			return climo.DecodeDeciles(row.Blob(element))
		}
	}

	rows, err := s.store.DecileRowsFor(ctx, site, model)
	if err != nil {
		return nil, fmt.Errorf("failed to load decile rows: %w", err)
	}
	for _, row := range rows {
		if row.DayOfYear != dayOfYear || row.HourOfDay != hourOfDay {
			continue
		}
		if s.cache != nil {
			if err := s.cache.CacheDecileRow(ctx, row); err != nil {
				log.Printf("Warning: decile cache write failed for %s/%s: %v", site, model, err)
			}
		}
		return climo.DecodeDeciles(row.Blob(element))
	}
	return nil, nil
}
