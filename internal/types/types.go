package types

import (
	"time"
)

// Location identifies a station for a given model run. Registered once
// during ingestion and immutable afterwards.
type Location struct {
	Site       string    `json:"site"`
	Model      string    `json:"model"`
	StartDate  time.Time `json:"start_date"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ElevationM float64   `json:"elevation_m"`
}

// ClimateRecord is one observation of the fire-weather indices for a
// station/model at a valid time. The local-time decomposition is carried on
// the record so downstream bucketing never has to re-derive it from the
// valid time and a timezone.
type ClimateRecord struct {
	Site      string    `json:"site"`
	Model     string    `json:"model"`
	ValidTime time.Time `json:"valid_time"`

	YearLcl  int `json:"year_lcl"`
	MonthLcl int `json:"month_lcl"`
	DayLcl   int `json:"day_lcl"`
	HourLcl  int `json:"hour_lcl"`

	// Indices are nullable: an analysis that fails for one index still
	// produces a record carrying the others.
	HDW          *float64 `json:"hdw"`
	BlowUpDt     *float64 `json:"blow_up_dt"`
	BlowUpHeight *float64 `json:"blow_up_height_m"`
	DCAPE        *float64 `json:"dcape"`
}

// SiteModel is the unit of aggregation work.
type SiteModel struct {
	Site  string `json:"site"`
	Model string `json:"model"`
}

func (sm SiteModel) String() string {
	return sm.Site + "/" + sm.Model
}

// Element enumerates the climate indices tracked in the decile store.
type Element int

const (
	HDW Element = iota
	BlowUpDt
	BlowUpHeight
	DCAPE
)

// NumElements is the number of tracked indices.
const NumElements = 4

// Elements lists all tracked indices in column order.
var Elements = []Element{HDW, BlowUpDt, BlowUpHeight, DCAPE}

// Column returns the deciles table column holding this element's blob.
func (e Element) Column() string {
	switch e {
	case HDW:
		return "hdw_deciles"
	case BlowUpDt:
		return "blow_up_dt_deciles"
	case BlowUpHeight:
		return "blow_up_height_deciles"
	case DCAPE:
		return "dcape_deciles"
	default:
		return ""
	}
}

func (e Element) String() string {
	switch e {
	case HDW:
		return "hdw"
	case BlowUpDt:
		return "blow_up_dt"
	case BlowUpHeight:
		return "blow_up_height"
	case DCAPE:
		return "dcape"
	default:
		return "unknown"
	}
}

// AggregationRun summarizes one aggregator invocation for bookkeeping.
type AggregationRun struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	PairsBuilt     uint64    `json:"pairs_built"`
	PairsFailed    uint64    `json:"pairs_failed"`
	RecordsRead    uint64    `json:"records_read"`
	BucketsWritten uint64    `json:"buckets_written"`
	EmptyBuckets   uint64    `json:"empty_buckets"`
}

// DecileRow is the persisted distribution summary for one aggregation
// bucket. Each blob holds the encoded decile vector for one element; an
// empty bucket for an element is an encoded zero-length vector, not a NULL.
type DecileRow struct {
	Site      string `json:"site"`
	Model     string `json:"model"`
	DayOfYear int    `json:"day_of_year"`
	HourOfDay int    `json:"hour_of_day"`

	HDWDeciles          []byte `json:"hdw_deciles"`
	BlowUpDtDeciles     []byte `json:"blow_up_dt_deciles"`
	BlowUpHeightDeciles []byte `json:"blow_up_height_deciles"`
	DCAPEDeciles        []byte `json:"dcape_deciles"`
}

// Blob returns the encoded decile vector for the given element.
func (r *DecileRow) Blob(e Element) []byte {
	switch e {
	case HDW:
		return r.HDWDeciles
	case BlowUpDt:
		return r.BlowUpDtDeciles
	case BlowUpHeight:
		return r.BlowUpHeightDeciles
	case DCAPE:
		return r.DCAPEDeciles
	default:
		return nil
	}
}

// SetBlob stores the encoded decile vector for the given element.
func (r *DecileRow) SetBlob(e Element, blob []byte) {
	switch e {
	case HDW:
		r.HDWDeciles = blob
	case BlowUpDt:
		r.BlowUpDtDeciles = blob
	case BlowUpHeight:
		r.BlowUpHeightDeciles = blob
	case DCAPE:
		r.DCAPEDeciles = blob
	}
}
