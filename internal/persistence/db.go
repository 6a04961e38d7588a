// Package persistence provides SQLite-based farm state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/grid"
	"github.com/talgya/homestead/internal/plot"
)

// ErrNoState is returned by Load when nothing has been saved yet.
var ErrNoState = errors.New("no saved farm state")

// DB wraps a SQLite connection for farm state persistence.
type DB struct {
	conn *sqlx.DB
}

var _ engine.Store = (*DB)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS progression (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		level INTEGER NOT NULL,
		crops_harvested INTEGER NOT NULL,
		structures_built INTEGER NOT NULL,
		money_earned INTEGER NOT NULL,
		seeds_planted INTEGER NOT NULL,
		contracts_completed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grid (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		bitmap BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS placements (
		seq INTEGER NOT NULL,
		id TEXT PRIMARY KEY,
		building TEXT NOT NULL,
		origin_x INTEGER NOT NULL,
		origin_y INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plots (
		id TEXT PRIMARY KEY,
		empty INTEGER NOT NULL,
		crop TEXT NOT NULL,
		stage INTEGER NOT NULL,
		stage_elapsed REAL NOT NULL,
		ready INTEGER NOT NULL,
		soil_health REAL NOT NULL,
		idle REAL NOT NULL,
		destroyed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS respawns (
		origin_x INTEGER NOT NULL,
		origin_y INTEGER NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (origin_x, origin_y)
	);

	CREATE TABLE IF NOT EXISTS pending_respawns (
		plot TEXT PRIMARY KEY,
		remaining REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		detail_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS farm_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// HasWorldState reports whether a farm has been saved.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM progression"); err != nil {
		return false
	}
	return n > 0
}

// Save performs a full save of the snapshot in one transaction.
func (db *DB) Save(s *engine.Snapshot) error {
	slog.Info("saving farm state", "tick", s.Tick, "placements", len(s.Placements), "plots", len(s.Plots))

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"progression", "grid", "placements", "plots", "respawns", "pending_respawns"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	c := s.Progression.Counters
	if _, err := tx.Exec(`INSERT INTO progression
		(id, level, crops_harvested, structures_built, money_earned, seeds_planted, contracts_completed)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		s.Progression.Level, c.CropsHarvested, c.StructuresBuilt, c.MoneyEarned, c.SeedsPlanted, c.ContractsCompleted,
	); err != nil {
		return fmt.Errorf("save progression: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO grid (id, bitmap) VALUES (1, ?)", s.Grid); err != nil {
		return fmt.Errorf("save grid: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO placements (seq, id, building, origin_x, origin_y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range s.Placements {
		if _, err := stmt.Exec(i, p.ID, p.Building, p.Origin.X, p.Origin.Y); err != nil {
			return fmt.Errorf("insert placement %s: %w", p.ID, err)
		}
	}

	plotStmt, err := tx.Preparex(`INSERT INTO plots
		(id, empty, crop, stage, stage_elapsed, ready, soil_health, idle, destroyed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer plotStmt.Close()
	for _, p := range s.Plots {
		_, err := plotStmt.Exec(p.ID, p.Empty, p.Crop, p.Stage, p.StageElapsed, p.Ready, p.SoilHealth, p.Idle, p.Destroyed)
		if err != nil {
			return fmt.Errorf("insert plot %s: %w", p.ID, err)
		}
	}

	for _, r := range s.Respawns {
		if _, err := tx.Exec("INSERT INTO respawns (origin_x, origin_y, count) VALUES (?, ?, ?)",
			r.Origin.X, r.Origin.Y, r.Count); err != nil {
			return fmt.Errorf("insert respawn: %w", err)
		}
	}
	for _, p := range s.Pending {
		if _, err := tx.Exec("INSERT INTO pending_respawns (plot, remaining) VALUES (?, ?)", p.Plot, p.Remaining); err != nil {
			return fmt.Errorf("insert pending respawn: %w", err)
		}
	}

	meta := map[string]string{
		"version":   strconv.Itoa(s.Version),
		"last_tick": strconv.FormatUint(s.Tick, 10),
		"event_seq": strconv.FormatUint(s.EventSeq, 10),
		"sim_time":  strconv.FormatFloat(s.SimTime, 'g', -1, 64),
		"money":     strconv.Itoa(s.Money),
	}
	for k, v := range meta {
		if err := saveMeta(tx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("farm state saved")
	return nil
}

// Load reads the last saved snapshot.
func (db *DB) Load() (*engine.Snapshot, error) {
	if !db.HasWorldState() {
		return nil, ErrNoState
	}

	s := &engine.Snapshot{}
	var prog struct {
		Level              int `db:"level"`
		CropsHarvested     int `db:"crops_harvested"`
		StructuresBuilt    int `db:"structures_built"`
		MoneyEarned        int `db:"money_earned"`
		SeedsPlanted       int `db:"seeds_planted"`
		ContractsCompleted int `db:"contracts_completed"`
	}
	if err := db.conn.Get(&prog, `SELECT level, crops_harvested, structures_built, money_earned,
		seeds_planted, contracts_completed FROM progression WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("load progression: %w", err)
	}
	s.Progression.Level = prog.Level
	s.Progression.Counters.CropsHarvested = prog.CropsHarvested
	s.Progression.Counters.StructuresBuilt = prog.StructuresBuilt
	s.Progression.Counters.MoneyEarned = prog.MoneyEarned
	s.Progression.Counters.SeedsPlanted = prog.SeedsPlanted
	s.Progression.Counters.ContractsCompleted = prog.ContractsCompleted

	if err := db.conn.Get(&s.Grid, "SELECT bitmap FROM grid WHERE id = 1"); err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}

	var placements []struct {
		ID       string `db:"id"`
		Building string `db:"building"`
		X        int    `db:"origin_x"`
		Y        int    `db:"origin_y"`
	}
	if err := db.conn.Select(&placements, "SELECT id, building, origin_x, origin_y FROM placements ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("load placements: %w", err)
	}
	for _, p := range placements {
		s.Placements = append(s.Placements, engine.PlacementRecord{ID: p.ID, Building: p.Building, Origin: grid.Cell{X: p.X, Y: p.Y}})
	}

	var plots []struct {
		ID           string  `db:"id"`
		Empty        bool    `db:"empty"`
		Crop         string  `db:"crop"`
		Stage        int     `db:"stage"`
		StageElapsed float64 `db:"stage_elapsed"`
		Ready        bool    `db:"ready"`
		SoilHealth   float64 `db:"soil_health"`
		Idle         float64 `db:"idle"`
		Destroyed    bool    `db:"destroyed"`
	}
	if err := db.conn.Select(&plots, `SELECT p.id, p.empty, p.crop, p.stage, p.stage_elapsed, p.ready,
		p.soil_health, p.idle, p.destroyed
		FROM plots p JOIN placements pl ON pl.id = p.id ORDER BY pl.seq`); err != nil {
		return nil, fmt.Errorf("load plots: %w", err)
	}
	for _, p := range plots {
		s.Plots = append(s.Plots, plot.State(p))
	}

	var respawns []struct {
		X     int `db:"origin_x"`
		Y     int `db:"origin_y"`
		Count int `db:"count"`
	}
	if err := db.conn.Select(&respawns, "SELECT origin_x, origin_y, count FROM respawns ORDER BY origin_x, origin_y"); err != nil {
		return nil, fmt.Errorf("load respawns: %w", err)
	}
	for _, r := range respawns {
		s.Respawns = append(s.Respawns, engine.RespawnCount{Origin: grid.Cell{X: r.X, Y: r.Y}, Count: r.Count})
	}

	if err := db.conn.Select(&s.Pending, "SELECT plot, remaining FROM pending_respawns ORDER BY plot"); err != nil {
		return nil, fmt.Errorf("load pending respawns: %w", err)
	}

	meta, err := db.allMeta()
	if err != nil {
		return nil, err
	}
	s.Version, _ = strconv.Atoi(meta["version"])
	s.Tick, _ = strconv.ParseUint(meta["last_tick"], 10, 64)
	s.EventSeq, _ = strconv.ParseUint(meta["event_seq"], 10, 64)
	s.SimTime, _ = strconv.ParseFloat(meta["sim_time"], 64)
	s.Money, _ = strconv.Atoi(meta["money"])

	return s, nil
}

// SaveEvents appends events to the database. Events already stored are skipped.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		detail, _ := json.Marshal(e.Detail)
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO events (seq, tick, description, category, detail_json) VALUES (?, ?, ?, ?, ?)",
			e.Seq, e.Tick, e.Description, e.Category, string(detail),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, oldest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []struct {
		Seq         uint64 `db:"seq"`
		Tick        uint64 `db:"tick"`
		Description string `db:"description"`
		Category    string `db:"category"`
		Detail      string `db:"detail_json"`
	}
	err := db.conn.Select(&rows,
		"SELECT seq, tick, description, category, detail_json FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}

	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		e := engine.Event{Seq: r.Seq, Tick: r.Tick, Description: r.Description, Category: r.Category}
		if err := json.Unmarshal([]byte(r.Detail), &e.Detail); err != nil {
			slog.Warn("bad event detail", "seq", r.Seq, "error", err)
		}
		out[len(rows)-1-i] = e
	}
	return out, nil
}

// SaveMeta stores a key-value pair in farm metadata.
func (db *DB) SaveMeta(key, value string) error {
	return saveMeta(db.conn, key, value)
}

func saveMeta(ex sqlx.Execer, key, value string) error {
	_, err := ex.Exec(
		"INSERT OR REPLACE INTO farm_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM farm_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, err)
	}
	return value, err
}

func (db *DB) allMeta() (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM farm_meta"); err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}
	return meta, nil
}
