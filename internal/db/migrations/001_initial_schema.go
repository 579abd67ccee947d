package migrations

// InitialSchema creates the climatology schema. Stations are identified by
// their site text id; that is the canonical identifier for every table.
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- Station registrations, written once per site/model/position.
		CREATE TABLE IF NOT EXISTS locations (
			site        TEXT NOT NULL,
			model       TEXT NOT NULL,
			start_date  TIMESTAMPTZ NOT NULL,
			latitude    DOUBLE PRECISION NOT NULL,
			longitude   DOUBLE PRECISION NOT NULL,
			elevation_m DOUBLE PRECISION NOT NULL,
			UNIQUE (site, model, latitude, longitude, elevation_m)
		);

		CREATE INDEX IF NOT EXISTS idx_locations_site_model ON locations (site, model);

		-- Per-observation climate-index records. The composite key allows at
		-- most one record per station/model/local hour; re-ingestion upserts.
		CREATE TABLE IF NOT EXISTS cli (
			site       TEXT NOT NULL,
			model      TEXT NOT NULL,

			valid_time TIMESTAMPTZ NOT NULL,
			year_lcl   INTEGER NOT NULL,
			month_lcl  INTEGER NOT NULL,
			day_lcl    INTEGER NOT NULL,
			hour_lcl   INTEGER NOT NULL,

			hdw              DOUBLE PRECISION,
			blow_up_dt       DOUBLE PRECISION,
			blow_up_height_m DOUBLE PRECISION,
			dcape            DOUBLE PRECISION,

			PRIMARY KEY (site, valid_time, model, year_lcl, month_lcl, day_lcl, hour_lcl)
		);

		CREATE INDEX IF NOT EXISTS idx_cli_site_model ON cli (site, model);

		-- Derived decile distributions, one row per aggregation bucket.
		-- Blob columns hold the versioned 9-value decile encoding.
		CREATE TABLE IF NOT EXISTS deciles (
			site        TEXT NOT NULL,
			model       TEXT NOT NULL,
			day_of_year INTEGER NOT NULL CHECK (day_of_year BETWEEN 1 AND 366),
			hour_of_day INTEGER NOT NULL CHECK (hour_of_day BETWEEN 0 AND 23),

			hdw_deciles            BYTEA NOT NULL,
			blow_up_dt_deciles     BYTEA NOT NULL,
			blow_up_height_deciles BYTEA NOT NULL,
			dcape_deciles          BYTEA NOT NULL,

			PRIMARY KEY (site, model, day_of_year, hour_of_day)
		);

		-- Aggregator run bookkeeping.
		CREATE TABLE IF NOT EXISTS aggregation_runs (
			run_id          TEXT PRIMARY KEY,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ NOT NULL,
			pairs_built     BIGINT NOT NULL,
			pairs_failed    BIGINT NOT NULL,
			records_read    BIGINT NOT NULL,
			buckets_written BIGINT NOT NULL,
			empty_buckets   BIGINT NOT NULL
		);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS aggregation_runs;
		DROP TABLE IF EXISTS deciles;
		DROP TABLE IF EXISTS cli;
		DROP TABLE IF EXISTS locations;
	`,
}
