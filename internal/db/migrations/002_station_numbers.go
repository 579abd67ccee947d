package migrations

// StationNumbers adds the numeric station identifier used by archives that
// key stations by WMO number instead of site id. The site text id stays
// canonical; station_num is an optional alias for migrating such archives.
var StationNumbers = &Migration{
	ID:   "002_station_numbers",
	Name: "002_station_numbers",
	UpSQL: `
		ALTER TABLE locations ADD COLUMN IF NOT EXISTS station_num INTEGER;

		CREATE INDEX IF NOT EXISTS idx_locations_station_num
			ON locations (station_num) WHERE station_num IS NOT NULL;
	`,
	DownSQL: `
		DROP INDEX IF EXISTS idx_locations_station_num;
		ALTER TABLE locations DROP COLUMN IF EXISTS station_num;
	`,
}
