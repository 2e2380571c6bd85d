// Package eventdb persists event solutions and the station noise mask to
// sqlite. Solutions are append-only: every published version is kept so a
// run can be replayed or audited after the fact.
package eventdb

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/rupture.report/internal/finder"
	"github.com/banshee-data/rupture.report/internal/geo"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the event database at path and brings
// the schema up to date.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SaveEvent upserts the event row tracking lifecycle state.
func (db *DB) SaveEvent(ev *finder.Event) error {
	_, err := db.Exec(`
		INSERT INTO events (event_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET state = excluded.state,
			updated_at = excluded.updated_at
	`, ev.ID, string(ev.State), ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save event %s: %w", ev.ID, err)
	}
	return nil
}

// SaveSolution appends one published solution version.
func (db *DB) SaveSolution(sol finder.Solution) error {
	rupture, err := json.Marshal(sol.Rupture)
	if err != nil {
		return fmt.Errorf("encode rupture for %s: %w", sol.EventID, err)
	}
	var origin interface{}
	if !sol.OriginTime.IsZero() {
		origin = sol.OriginTime
	}
	_, err = db.Exec(`
		INSERT INTO solutions (
			event_id, version, timestamp, set_name,
			lat, lon, lat_uncer, lon_uncer,
			depth_km, depth_uncer_km,
			strike_deg, azimuth_uncer, length_km, length_uncer,
			mag, mag_uncer, mag_from_reg,
			origin_time, origin_time_uncer,
			misfit, likelihood, rupture_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sol.EventID, sol.Version, sol.Timestamp, sol.SetName,
		sol.Centroid.Lat, sol.Centroid.Lon, sol.LatUncer, sol.LonUncer,
		sol.DepthKm, sol.DepthUncer,
		sol.StrikeDeg, sol.AzimuthUncer, sol.LengthKm, sol.LengthUncer,
		sol.Mag, sol.MagUncer, sol.MagFromReg,
		origin, sol.OriginTimeUncer,
		sol.Misfit, sol.Likelihood, string(rupture),
	)
	if err != nil {
		return fmt.Errorf("save solution %s v%d: %w", sol.EventID, sol.Version, err)
	}
	return nil
}

// Solutions returns every stored version for one event, oldest first.
func (db *DB) Solutions(eventID string) ([]finder.Solution, error) {
	rows, err := db.Query(`
		SELECT event_id, version, timestamp, set_name,
			lat, lon, lat_uncer, lon_uncer,
			depth_km, depth_uncer_km,
			strike_deg, azimuth_uncer, length_km, length_uncer,
			mag, mag_uncer, mag_from_reg,
			origin_time, origin_time_uncer,
			misfit, likelihood, rupture_json
		FROM solutions WHERE event_id = ? ORDER BY version
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finder.Solution
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sol)
	}
	return out, rows.Err()
}

// LatestSolution returns the newest version for one event, or sql.ErrNoRows.
func (db *DB) LatestSolution(eventID string) (finder.Solution, error) {
	row := db.QueryRow(`
		SELECT event_id, version, timestamp, set_name,
			lat, lon, lat_uncer, lon_uncer,
			depth_km, depth_uncer_km,
			strike_deg, azimuth_uncer, length_km, length_uncer,
			mag, mag_uncer, mag_from_reg,
			origin_time, origin_time_uncer,
			misfit, likelihood, rupture_json
		FROM solutions WHERE event_id = ? ORDER BY version DESC LIMIT 1
	`, eventID)
	return scanSolution(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSolution(row rowScanner) (finder.Solution, error) {
	var sol finder.Solution
	var ruptureJSON string
	var origin sql.NullTime
	err := row.Scan(
		&sol.EventID, &sol.Version, &sol.Timestamp, &sol.SetName,
		&sol.Centroid.Lat, &sol.Centroid.Lon, &sol.LatUncer, &sol.LonUncer,
		&sol.DepthKm, &sol.DepthUncer,
		&sol.StrikeDeg, &sol.AzimuthUncer, &sol.LengthKm, &sol.LengthUncer,
		&sol.Mag, &sol.MagUncer, &sol.MagFromReg,
		&origin, &sol.OriginTimeUncer,
		&sol.Misfit, &sol.Likelihood, &ruptureJSON,
	)
	if err != nil {
		return finder.Solution{}, err
	}
	if origin.Valid {
		sol.OriginTime = origin.Time
	}
	if ruptureJSON != "" {
		var rupture []geo.Coord3D
		if err := json.Unmarshal([]byte(ruptureJSON), &rupture); err != nil {
			return finder.Solution{}, fmt.Errorf("decode rupture for %s: %w", sol.EventID, err)
		}
		sol.Rupture = rupture
	}
	return sol, nil
}

// MaskStation records a station as too noisy to trust. Re-masking refreshes
// the timestamp.
func (db *DB) MaskStation(sncl, reason string, now time.Time) error {
	_, err := db.Exec(`
		INSERT INTO station_masks (sncl, reason, masked_at) VALUES (?, ?, ?)
		ON CONFLICT(sncl) DO UPDATE SET reason = excluded.reason,
			masked_at = excluded.masked_at
	`, sncl, reason, now)
	if err != nil {
		return fmt.Errorf("mask station %s: %w", sncl, err)
	}
	return nil
}

// MaskedStations returns the set of stations masked within the age window.
// Masks older than maxAge have expired and are not returned.
func (db *DB) MaskedStations(now time.Time, maxAge time.Duration) (map[string]bool, error) {
	rows, err := db.Query(`SELECT sncl, masked_at FROM station_masks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	masked := make(map[string]bool)
	for rows.Next() {
		var sncl string
		var at time.Time
		if err := rows.Scan(&sncl, &at); err != nil {
			return nil, err
		}
		if now.Sub(at) <= maxAge {
			masked[sncl] = true
		}
	}
	return masked, rows.Err()
}

// PurgeExpiredMasks deletes masks older than maxAge and returns the number
// removed.
func (db *DB) PurgeExpiredMasks(now time.Time, maxAge time.Duration) (int64, error) {
	res, err := db.Exec(`DELETE FROM station_masks WHERE masked_at < ?`, now.Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
