package climo

import (
	"fmt"

	"github.com/firewx/climo/internal/types"
)

var daysBeforeMonth = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// IsLeapYear reports whether year is a leap year in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 0
	}
}

// DayOfYear computes the ordinal day (1..366) for a local calendar date.
// Malformed dates return ErrInvalidDate.
func DayOfYear(year, month, day int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month %d: %w", month, ErrInvalidDate)
	}
	if day < 1 || day > daysInMonth(year, month) {
		return 0, fmt.Errorf("day %d of month %d, year %d: %w", day, month, year, ErrInvalidDate)
	}

	doy := daysBeforeMonth[month] + day
	if month > 2 && IsLeapYear(year) {
		doy++
	}
	return doy, nil
}

// Bucket is the (day_of_year, hour_of_day) aggregation key that collapses
// multi-year samples into one climatological distribution.
type Bucket struct {
	DayOfYear int
	HourOfDay int
}

// BucketOf derives the aggregation bucket from a record's local-time
// decomposition. The raw valid time is never consulted: the local fields
// were fixed at ingestion and are free of timezone ambiguity.
func BucketOf(rec *types.ClimateRecord) (Bucket, error) {
	doy, err := DayOfYear(rec.YearLcl, rec.MonthLcl, rec.DayLcl)
	if err != nil {
		return Bucket{}, err
	}
	if rec.HourLcl < 0 || rec.HourLcl > 23 {
		return Bucket{}, fmt.Errorf("hour %d: %w", rec.HourLcl, ErrInvalidDate)
	}
	return Bucket{DayOfYear: doy, HourOfDay: rec.HourLcl}, nil
}
