package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/firewx/climo/internal/types"
)

// Feed line prefixes. The analysis pipeline emits one line per climate
// record and one per station registration.
const (
	linePrefixRecord   = "CLI"
	linePrefixLocation = "LOC"
)

const (
	recordFields   = 12
	locationFields = 7
)

// Line is one parsed feed line: exactly one of Record or Location is set.
type Line struct {
	Record   *types.ClimateRecord
	Location *types.Location
}

// ParseLine parses a raw feed line.
//
// Record lines:
//
//	CLI,<site>,<model>,<valid_time>,<year>,<month>,<day>,<hour>,<hdw>,<blow_up_dt>,<blow_up_height_m>,<dcape>
//
// Location lines:
//
//	LOC,<site>,<model>,<start_date>,<latitude>,<longitude>,<elevation_m>
//
// Timestamps are RFC 3339. Index fields may be empty, meaning the analysis
// produced no value for that index.
func ParseLine(raw string) (*Line, error) {
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	switch fields[0] {
	case linePrefixRecord:
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, err
		}
		return &Line{Record: rec}, nil
	case linePrefixLocation:
		loc, err := parseLocation(fields)
		if err != nil {
			return nil, err
		}
		return &Line{Location: loc}, nil
	default:
		return nil, fmt.Errorf("unknown line type %q", fields[0])
	}
}

func parseRecord(fields []string) (*types.ClimateRecord, error) {
	if len(fields) != recordFields {
		return nil, fmt.Errorf("invalid record line: expected %d fields, got %d", recordFields, len(fields))
	}

	validTime, err := time.Parse(time.RFC3339, fields[3])
	if err != nil {
		return nil, fmt.Errorf("invalid valid time: %w", err)
	}

	rec := &types.ClimateRecord{
		Site:      fields[1],
		Model:     fields[2],
		ValidTime: validTime.UTC(),
	}

	for i, dst := range []*int{&rec.YearLcl, &rec.MonthLcl, &rec.DayLcl, &rec.HourLcl} {
		v, err := strconv.Atoi(fields[4+i])
		if err != nil {
			return nil, fmt.Errorf("invalid local time field %q: %w", fields[4+i], err)
		}
		*dst = v
	}

	for i, dst := range []**float64{&rec.HDW, &rec.BlowUpDt, &rec.BlowUpHeight, &rec.DCAPE} {
		v, err := parseIndex(fields[8+i])
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	if rec.Site == "" || rec.Model == "" {
		return nil, fmt.Errorf("record line missing site or model")
	}
	return rec, nil
}

func parseLocation(fields []string) (*types.Location, error) {
	if len(fields) != locationFields {
		return nil, fmt.Errorf("invalid location line: expected %d fields, got %d", locationFields, len(fields))
	}

	startDate, err := time.Parse(time.RFC3339, fields[3])
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}

	loc := &types.Location{
		Site:      fields[1],
		Model:     fields[2],
		StartDate: startDate.UTC(),
	}

	for i, dst := range []*float64{&loc.Latitude, &loc.Longitude, &loc.ElevationM} {
		v, err := strconv.ParseFloat(fields[4+i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate field %q: %w", fields[4+i], err)
		}
		*dst = v
	}

	if loc.Site == "" || loc.Model == "" {
		return nil, fmt.Errorf("location line missing site or model")
	}
	return loc, nil
}

// parseIndex parses a nullable index value; an empty field is a null.
func parseIndex(field string) (*float64, error) {
	if field == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid index value %q: %w", field, err)
	}
	return &v, nil
}
