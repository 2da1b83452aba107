/*
	Package sqlite implements the metadata store on a relational SQLite database
	through the pure Go modernc.org/sqlite driver.  Name uniqueness is enforced
	by UNIQUE constraints and surfaces as seisvol.ErrConflict.
*/
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blang/semver"
	_ "modernc.org/sqlite"

	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS seismic_volumes (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL UNIQUE,
	file_path       TEXT NOT NULL,
	n_inlines       INTEGER,
	n_crosslines    INTEGER,
	n_samples       INTEGER,
	sample_interval REAL,
	inline_min      INTEGER,
	inline_max      INTEGER,
	crossline_min   INTEGER,
	crossline_max   INTEGER,
	format_code     INTEGER,
	n_traces        INTEGER,
	geometry        TEXT,
	gridded         INTEGER,
	irregular       INTEGER,
	imported_at     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS surveys (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL UNIQUE,
	inline_min     INTEGER,
	inline_max     INTEGER,
	inline_step    INTEGER,
	crossline_min  INTEGER,
	crossline_max  INTEGER,
	crossline_step INTEGER,
	origin_x       REAL,
	origin_y       REAL,
	inline_dx      REAL,
	inline_dy      REAL,
	crossline_dx   REAL,
	crossline_dy   REAL,
	created_at     TEXT NOT NULL
);`

const volumeColumns = `id, name, file_path, n_inlines, n_crosslines, n_samples, sample_interval,
	inline_min, inline_max, crossline_min, crossline_max, format_code, n_traces,
	geometry, gridded, irregular, imported_at`

const surveyColumns = `id, name, inline_min, inline_max, inline_step,
	crossline_min, crossline_max, crossline_step,
	origin_x, origin_y, inline_dx, inline_dy, crossline_dx, crossline_dy, created_at`

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		seisvol.Errorf("Unable to make semver in sqlite: %v\n", err)
	}
	storage.RegisterEngine(Engine{"sqlite", "SQLite via modernc.org/sqlite", ver})
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) IsDistributed() bool {
	return false
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// TestConfig returns a private in-memory database.
func (e Engine) TestConfig() seisvol.StoreConfig {
	c := seisvol.NewConfig()
	c.Set("path", ":memory:")
	c.Set("inmemory", true)
	return seisvol.StoreConfig{Config: c, Engine: "sqlite"}
}

// NewStore opens or creates the database at the configured "path".
func (e Engine) NewStore(config seisvol.StoreConfig) (storage.MetadataStore, bool, error) {
	c := config.Config
	if c == nil {
		c = seisvol.NewConfig()
	}
	path, found, err := c.GetString("path")
	if err != nil {
		return nil, false, err
	}
	if !found || path == "" {
		return nil, false, fmt.Errorf("%q must be specified for sqlite configuration", "path")
	}
	inMemory, _, err := c.GetBool("inmemory")
	if err != nil {
		return nil, false, err
	}
	var created bool
	if !inMemory {
		if _, _, err := seisvol.FileStat(path); errors.Is(err, seisvol.ErrFileNotFound) {
			created = true
		}
	} else {
		created = true
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, false, err
	}
	if inMemory {
		// Each connection to an in-memory database sees its own database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, false, fmt.Errorf("set WAL mode: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, false, fmt.Errorf("create schema: %v", err)
	}
	store := &SQLiteDB{path: path, inMemory: inMemory, db: db}
	seisvol.Infof("Opened %s\n", store)
	return store, created, nil
}

// SQLiteDB satisfies storage.MetadataStore.
type SQLiteDB struct {
	path     string
	inMemory bool
	db       *sql.DB
}

func (s *SQLiteDB) String() string {
	if s.inMemory {
		return "sqlite @ memory"
	}
	return fmt.Sprintf("sqlite @ %s", s.path)
}

func (s *SQLiteDB) Close() {
	if s == nil || s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		seisvol.Errorf("closing %s: %v\n", s, err)
	}
	s.db = nil
}

func (s *SQLiteDB) Equal(config seisvol.StoreConfig) bool {
	path, _, err := config.GetString("path")
	return err == nil && path == s.path
}

// conflictErr maps a UNIQUE constraint violation to ErrConflict.
func conflictErr(name string, err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return fmt.Errorf("%q: %w", name, seisvol.ErrConflict)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVolume(row rowScanner) (*storage.Volume, error) {
	var v storage.Volume
	var importedAt string
	m := &v.Metadata
	err := row.Scan(&v.ID, &v.Name, &v.FilePath, &m.NumInlines, &m.NumCrosslines, &m.NumSamples,
		&m.SampleInterval, &m.InlineMin, &m.InlineMax, &m.CrosslineMin, &m.CrosslineMax,
		&m.FormatCode, &m.NumTraces, &m.Geometry, &m.Gridded, &m.Irregular, &importedAt)
	if err != nil {
		return nil, err
	}
	if v.ImportedAt, err = time.Parse(time.RFC3339Nano, importedAt); err != nil {
		return nil, fmt.Errorf("volume %d imported_at: %v", v.ID, err)
	}
	return &v, nil
}

func scanSurvey(row rowScanner) (*storage.Survey, error) {
	var sv storage.Survey
	var createdAt string
	err := row.Scan(&sv.ID, &sv.Name, &sv.InlineMin, &sv.InlineMax, &sv.InlineStep,
		&sv.CrosslineMin, &sv.CrosslineMax, &sv.CrosslineStep,
		&sv.OriginX, &sv.OriginY, &sv.InlineDX, &sv.InlineDY, &sv.CrosslineDX, &sv.CrosslineDY, &createdAt)
	if err != nil {
		return nil, err
	}
	if sv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("survey %d created_at: %v", sv.ID, err)
	}
	return &sv, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertVolume(ex execer, v *storage.Volume) (uint64, error) {
	m := v.Metadata
	res, err := ex.Exec(`INSERT INTO seismic_volumes
		(name, file_path, n_inlines, n_crosslines, n_samples, sample_interval,
		 inline_min, inline_max, crossline_min, crossline_max, format_code, n_traces,
		 geometry, gridded, irregular, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Name, v.FilePath, m.NumInlines, m.NumCrosslines, m.NumSamples, m.SampleInterval,
		m.InlineMin, m.InlineMax, m.CrosslineMin, m.CrosslineMax, m.FormatCode, m.NumTraces,
		m.Geometry, m.Gridded, m.Irregular, v.ImportedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, conflictErr(v.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *SQLiteDB) PutVolume(v *storage.Volume) (uint64, error) {
	id, err := insertVolume(s.db, v)
	if err != nil {
		return 0, err
	}
	v.ID = id
	return id, nil
}

// ReplaceVolume swaps volume oldID and its same-named survey for v in one
// transaction.
func (s *SQLiteDB) ReplaceVolume(oldID uint64, v *storage.Volume) (uint64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("DELETE FROM seismic_volumes WHERE id = ?", oldID); err != nil {
		tx.Rollback()
		return 0, err
	}
	if _, err := tx.Exec("DELETE FROM surveys WHERE name = ?", v.Name); err != nil {
		tx.Rollback()
		return 0, err
	}
	id, err := insertVolume(tx, v)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	v.ID = id
	return id, nil
}

func (s *SQLiteDB) GetVolume(id uint64) (*storage.Volume, error) {
	row := s.db.QueryRow("SELECT "+volumeColumns+" FROM seismic_volumes WHERE id = ?", id)
	v, err := scanVolume(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("volume %d: %w", id, seisvol.ErrVolumeNotFound)
	}
	return v, err
}

func (s *SQLiteDB) GetVolumeByName(name string) (*storage.Volume, error) {
	row := s.db.QueryRow("SELECT "+volumeColumns+" FROM seismic_volumes WHERE name = ?", name)
	v, err := scanVolume(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("volume %q: %w", name, seisvol.ErrVolumeNotFound)
	}
	return v, err
}

func (s *SQLiteDB) ListVolumes() ([]*storage.Volume, error) {
	rows, err := s.db.Query("SELECT " + volumeColumns + " FROM seismic_volumes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var volumes []*storage.Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	return volumes, rows.Err()
}

func (s *SQLiteDB) DeleteVolume(id uint64) error {
	res, err := s.db.Exec("DELETE FROM seismic_volumes WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("volume %d: %w", id, seisvol.ErrVolumeNotFound)
	}
	return nil
}

func (s *SQLiteDB) PutSurvey(sv *storage.Survey) (uint64, error) {
	res, err := s.db.Exec(`INSERT INTO surveys
		(name, inline_min, inline_max, inline_step, crossline_min, crossline_max, crossline_step,
		 origin_x, origin_y, inline_dx, inline_dy, crossline_dx, crossline_dy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sv.Name, sv.InlineMin, sv.InlineMax, sv.InlineStep, sv.CrosslineMin, sv.CrosslineMax, sv.CrosslineStep,
		sv.OriginX, sv.OriginY, sv.InlineDX, sv.InlineDY, sv.CrosslineDX, sv.CrosslineDY,
		sv.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, conflictErr(sv.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sv.ID = uint64(id)
	return sv.ID, nil
}

func (s *SQLiteDB) GetSurvey(name string) (*storage.Survey, error) {
	row := s.db.QueryRow("SELECT "+surveyColumns+" FROM surveys WHERE name = ?", name)
	sv, err := scanSurvey(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("survey %q: %w", name, seisvol.ErrSurveyNotFound)
	}
	return sv, err
}

func (s *SQLiteDB) ListSurveys() ([]*storage.Survey, error) {
	rows, err := s.db.Query("SELECT " + surveyColumns + " FROM surveys ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var surveys []*storage.Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, sv)
	}
	return surveys, rows.Err()
}

func (s *SQLiteDB) DeleteSurvey(name string) error {
	res, err := s.db.Exec("DELETE FROM surveys WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("survey %q: %w", name, seisvol.ErrSurveyNotFound)
	}
	return nil
}
