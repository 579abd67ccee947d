package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/firewx/climo/internal/types"
)

// Float returns a pointer to v, for populating nullable indices.
func Float(v float64) *float64 { return &v }

// MockClimateRecord creates a climate record for testing, with the local
// fields derived from the UTC valid time.
func MockClimateRecord(site, model string, validTime time.Time, hdw float64) *types.ClimateRecord {
	return &types.ClimateRecord{
		Site:      site,
		Model:     model,
		ValidTime: validTime,
		YearLcl:   validTime.Year(),
		MonthLcl:  int(validTime.Month()),
		DayLcl:    validTime.Day(),
		HourLcl:   validTime.Hour(),
		HDW:       Float(hdw),
	}
}

// MockLocation creates a station registration for testing.
func MockLocation(site, model string) *types.Location {
	return &types.Location{
		Site:       site,
		Model:      model,
		StartDate:  time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		Latitude:   46.92,
		Longitude:  -114.09,
		ElevationM: 972,
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
