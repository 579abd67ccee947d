package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/firewx/climo/internal/types"
	_ "github.com/lib/pq" // postgres driver
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// SetWorkMem applies the session sort-memory hint used while building
// distributions. Performance only; never affects results.
func (c *Client) SetWorkMem(ctx context.Context, workMem string) error {
	_, err := c.db.ExecContext(ctx, `SELECT set_config('work_mem', $1, false)`, workMem)
	if err != nil {
		return fmt.Errorf("failed to set work_mem: %w", err)
	}
	return nil
}

// UpsertLocation registers a station location. Existing registrations for
// the same identifying tuple are left untouched.
func (c *Client) UpsertLocation(loc *types.Location) error {
	query := `
		INSERT INTO locations (site, model, start_date, latitude, longitude, elevation_m)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site, model, latitude, longitude, elevation_m) DO NOTHING
	`
	_, err := c.db.Exec(query,
		loc.Site, loc.Model, loc.StartDate, loc.Latitude, loc.Longitude, loc.ElevationM,
	)
	return err
}

// UpsertClimateRecords writes a batch of climate records in one
// transaction. Re-ingesting a composite key overwrites the prior row.
func (c *Client) UpsertClimateRecords(records []*types.ClimateRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO cli (
			site, model, valid_time, year_lcl, month_lcl, day_lcl, hour_lcl,
			hdw, blow_up_dt, blow_up_height_m, dcape
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (site, valid_time, model, year_lcl, month_lcl, day_lcl, hour_lcl)
		DO UPDATE SET
			hdw = EXCLUDED.hdw,
			blow_up_dt = EXCLUDED.blow_up_dt,
			blow_up_height_m = EXCLUDED.blow_up_height_m,
			dcape = EXCLUDED.dcape
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(
			rec.Site, rec.Model, rec.ValidTime,
			rec.YearLcl, rec.MonthLcl, rec.DayLcl, rec.HourLcl,
			rec.HDW, rec.BlowUpDt, rec.BlowUpHeight, rec.DCAPE,
		); err != nil {
			return fmt.Errorf("failed to upsert record %s/%s@%s: %w",
				rec.Site, rec.Model, rec.ValidTime.Format(time.RFC3339), err)
		}
	}

	return tx.Commit()
}

// ClimateRecordsFor retrieves every climate record for a station/model pair.
func (c *Client) ClimateRecordsFor(ctx context.Context, site, model string) ([]*types.ClimateRecord, error) {
	query := `
		SELECT site, model, valid_time, year_lcl, month_lcl, day_lcl, hour_lcl,
			hdw, blow_up_dt, blow_up_height_m, dcape
		FROM cli
		WHERE site = $1 AND model = $2
		ORDER BY valid_time
	`
	rows, err := c.db.QueryContext(ctx, query, site, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*types.ClimateRecord
	for rows.Next() {
		var rec types.ClimateRecord
		var hdw, dt, height, dcape sql.NullFloat64
		if err := rows.Scan(
			&rec.Site, &rec.Model, &rec.ValidTime,
			&rec.YearLcl, &rec.MonthLcl, &rec.DayLcl, &rec.HourLcl,
			&hdw, &dt, &height, &dcape,
		); err != nil {
			return nil, err
		}
		rec.HDW = nullableFloat(hdw)
		rec.BlowUpDt = nullableFloat(dt)
		rec.BlowUpHeight = nullableFloat(height)
		rec.DCAPE = nullableFloat(dcape)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// SiteModelPairs lists every distinct station/model pair in the record store.
func (c *Client) SiteModelPairs() ([]types.SiteModel, error) {
	query := `SELECT DISTINCT site, model FROM cli ORDER BY site, model`
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []types.SiteModel
	for rows.Next() {
		var sm types.SiteModel
		if err := rows.Scan(&sm.Site, &sm.Model); err != nil {
			return nil, err
		}
		pairs = append(pairs, sm)
	}
	return pairs, rows.Err()
}

// ReplaceDecileRows swaps in the full decile set for a station/model pair.
// The delete and inserts share one transaction: a failed or cancelled run
// leaves the prior rows untouched, and stale buckets from earlier runs are
// removed rather than merged.
func (c *Client) ReplaceDecileRows(ctx context.Context, site, model string, decileRows []*types.DecileRow) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM deciles WHERE site = $1 AND model = $2`, site, model); err != nil {
		return fmt.Errorf("failed to clear deciles for %s/%s: %w", site, model, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deciles (
			site, model, day_of_year, hour_of_day,
			hdw_deciles, blow_up_dt_deciles, blow_up_height_deciles, dcape_deciles
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare decile insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range decileRows {
		if _, err := stmt.ExecContext(ctx,
			row.Site, row.Model, row.DayOfYear, row.HourOfDay,
			row.HDWDeciles, row.BlowUpDtDeciles, row.BlowUpHeightDeciles, row.DCAPEDeciles,
		); err != nil {
			return fmt.Errorf("failed to insert deciles for %s/%s doy=%d hour=%d: %w",
				site, model, row.DayOfYear, row.HourOfDay, err)
		}
	}

	return tx.Commit()
}

// DecileRowsFor retrieves the stored decile rows for a station/model pair.
func (c *Client) DecileRowsFor(ctx context.Context, site, model string) ([]*types.DecileRow, error) {
	query := `
		SELECT site, model, day_of_year, hour_of_day,
			hdw_deciles, blow_up_dt_deciles, blow_up_height_deciles, dcape_deciles
		FROM deciles
		WHERE site = $1 AND model = $2
		ORDER BY day_of_year, hour_of_day
	`
	rows, err := c.db.QueryContext(ctx, query, site, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decileRows []*types.DecileRow
	for rows.Next() {
		var row types.DecileRow
		if err := rows.Scan(
			&row.Site, &row.Model, &row.DayOfYear, &row.HourOfDay,
			&row.HDWDeciles, &row.BlowUpDtDeciles, &row.BlowUpHeightDeciles, &row.DCAPEDeciles,
		); err != nil {
			return nil, err
		}
		decileRows = append(decileRows, &row)
	}
	return decileRows, rows.Err()
}

// ResetDeciles drops every stored distribution.
func (c *Client) ResetDeciles() error {
	_, err := c.db.Exec(`DELETE FROM deciles`)
	return err
}

// StoreAggregationRun records the outcome of one aggregator run.
func (c *Client) StoreAggregationRun(run *types.AggregationRun) error {
	query := `
		INSERT INTO aggregation_runs (
			run_id, started_at, finished_at, pairs_built, pairs_failed,
			records_read, buckets_written, empty_buckets
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := c.db.Exec(query,
		run.RunID, run.StartedAt, run.FinishedAt, run.PairsBuilt, run.PairsFailed,
		run.RecordsRead, run.BucketsWritten, run.EmptyBuckets,
	)
	return err
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
