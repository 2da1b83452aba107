/*
	Package badger implements the metadata store on top of BadgerDB.

	Key layout:

		v/<id>      serialized Volume, id as 8-byte big-endian
		vn/<name>   volume id for the unique volume name
		s/<id>      serialized Survey
		sn/<name>   survey id for the unique survey name
		seq/...     id sequences
*/
package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"
	"github.com/twinj/uuid"

	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

const (
	// DefaultVersionsToKeep is the number of versions to keep per key.
	DefaultVersionsToKeep = 1

	// DefaultSyncWrites is true if all writes are synced to disk, thereby making db resilient
	// at cost of speed.
	DefaultSyncWrites = false

	// sequenceBandwidth is the number of ids leased from a sequence at a time.
	sequenceBandwidth = 100
)

var (
	volumePrefix     = []byte("v/")
	volumeNamePrefix = []byte("vn/")
	surveyPrefix     = []byte("s/")
	surveyNamePrefix = []byte("sn/")
	volumeSeqKey     = []byte("seq/volume")
	surveySeqKey     = []byte("seq/survey")
)

func init() {
	ver, err := semver.Make("0.2.0")
	if err != nil {
		seisvol.Errorf("Unable to make semver in badger: %v\n", err)
	}
	e := Engine{"badger", "BadgerDB", ver}
	storage.RegisterEngine(e)
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

// NewStore returns a badger store. The passed Config must contain a "path" string
// unless "inmemory" is true.
func (e Engine) NewStore(config seisvol.StoreConfig) (storage.MetadataStore, bool, error) {
	return e.newDB(config)
}

// TestConfig returns an in-memory configuration with a unique name.
func (e Engine) TestConfig() seisvol.StoreConfig {
	c := seisvol.NewConfig()
	c.Set("path", fmt.Sprintf("seisvol-test-badger-%s", uuid.NewV4()))
	c.Set("inmemory", true)
	return seisvol.StoreConfig{Config: c, Engine: "badger"}
}

type dbConfig struct {
	path        string
	inMemory    bool
	compression seisvol.Compression
}

func parseConfig(config seisvol.StoreConfig) (dbc dbConfig, err error) {
	c := config.Config
	if c == nil {
		c = seisvol.NewConfig()
	}
	if dbc.inMemory, _, err = c.GetBool("inmemory"); err != nil {
		return
	}
	var found bool
	if dbc.path, found, err = c.GetString("path"); err != nil {
		return
	}
	if !found && !dbc.inMemory {
		err = fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
		return
	}
	var compression string
	if compression, _, err = c.GetString("compression"); err != nil {
		return
	}
	if compression == "" {
		compression = "snappy"
	}
	dbc.compression, err = seisvol.ParseCompression(compression)
	return
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func syncPeriodically(db *BadgerDB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			seisvol.Infof("Stopping sync goroutine for badger @ %s\n", db.directory)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				seisvol.Errorf("badger sync @ %s: %v\n", db.directory, err)
			}
		}
	}
}

// newDB returns a Badger backend, creating one at path if it doesn't exist.
func (e Engine) newDB(config seisvol.StoreConfig) (*BadgerDB, bool, error) {
	dbc, err := parseConfig(config)
	if err != nil {
		return nil, false, err
	}

	var created bool
	if !dbc.inMemory {
		if _, err := os.Stat(dbc.path); os.IsNotExist(err) {
			seisvol.Infof("Database not already at path (%s). Creating directory...\n", dbc.path)
			created = true
			if err := os.MkdirAll(dbc.path, 0744); err != nil {
				return nil, true, fmt.Errorf("can't make directory at %s: %v", dbc.path, err)
			}
		}
	} else {
		created = true
	}

	opts, err := getOptions(filepath.Clean(dbc.path), dbc.inMemory, config.Config)
	if err != nil {
		return nil, false, err
	}

	timedLog := seisvol.NewTimeLog()
	bdp, err := badger.Open(*opts)
	if err != nil {
		return nil, false, err
	}
	db := &BadgerDB{
		directory:   dbc.path,
		inMemory:    dbc.inMemory,
		config:      config,
		compression: dbc.compression,
		bdp:         bdp,
		stopSyncCh:  make(chan struct{}),
	}
	if db.volumeSeq, err = bdp.GetSequence(volumeSeqKey, sequenceBandwidth); err != nil {
		bdp.Close()
		return nil, false, err
	}
	if db.surveySeq, err = bdp.GetSequence(surveySeqKey, sequenceBandwidth); err != nil {
		db.volumeSeq.Release()
		bdp.Close()
		return nil, false, err
	}
	if !dbc.inMemory {
		go syncPeriodically(db)
	}
	timedLog.Infof("Opened %s", db)
	return db, created, nil
}

// --- The BadgerDB Implementation must satisfy a storage.MetadataStore interface ----

type BadgerDB struct {
	// Directory of datastore
	directory string
	inMemory  bool

	// Config at time of Open()
	config      seisvol.StoreConfig
	compression seisvol.Compression

	bdp       *badger.DB
	volumeSeq *badger.Sequence
	surveySeq *badger.Sequence

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan struct{}
}

func (db *BadgerDB) String() string {
	if db.inMemory {
		return "badger @ memory"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// Close closes the BadgerDB
func (db *BadgerDB) Close() {
	if db == nil || db.bdp == nil {
		return
	}
	if !db.inMemory {
		close(db.stopSyncCh)
	}
	if err := db.volumeSeq.Release(); err != nil {
		seisvol.Errorf("releasing volume sequence: %v\n", err)
	}
	if err := db.surveySeq.Release(); err != nil {
		seisvol.Errorf("releasing survey sequence: %v\n", err)
	}
	if err := db.bdp.Close(); err != nil {
		seisvol.Errorf("closing %s: %v\n", db, err)
	}
	seisvol.Infof("Closed %s\n", db)
	db.bdp = nil
}

// Equal returns true if the badger matches the given store configuration.
func (db *BadgerDB) Equal(config seisvol.StoreConfig) bool {
	dbc, err := parseConfig(config)
	if err != nil {
		return false
	}
	return db.directory == dbc.path && db.inMemory == dbc.inMemory
}

func idKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func nameKey(prefix []byte, name string) []byte {
	return append(append([]byte{}, prefix...), name...)
}

// getValue returns nil without error when the key is absent.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (db *BadgerDB) nextID(seq *badger.Sequence) (uint64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return n + 1, nil // sequences start at 0, ids at 1
}

// claimName stores the record under its id and claims its name within txn,
// failing with ErrConflict if the name is taken.
func claimName(txn *badger.Txn, namePrefix, idPrefix []byte, name string, id uint64, value []byte) error {
	nk := nameKey(namePrefix, name)
	existing, err := getValue(txn, nk)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%q: %w", name, seisvol.ErrConflict)
	}
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)
	if err := txn.Set(nk, idBytes); err != nil {
		return err
	}
	return txn.Set(idKey(idPrefix, id), value)
}

// update runs fn in a read-write transaction, mapping badger's transaction
// conflict to ErrConflict.
func (db *BadgerDB) update(name string, fn func(txn *badger.Txn) error) error {
	err := db.bdp.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%q written concurrently: %w", name, seisvol.ErrConflict)
	}
	return err
}

// putUnique stores the record under its id and claims its name.
func (db *BadgerDB) putUnique(namePrefix, idPrefix []byte, name string, id uint64, record interface{}) error {
	value, err := seisvol.Serialize(record, db.compression, seisvol.CRC32)
	if err != nil {
		return err
	}
	return db.update(name, func(txn *badger.Txn) error {
		return claimName(txn, namePrefix, idPrefix, name, id, value)
	})
}

// PutVolume stores a new volume.
func (db *BadgerDB) PutVolume(v *storage.Volume) (uint64, error) {
	id, err := db.nextID(db.volumeSeq)
	if err != nil {
		return 0, err
	}
	v.ID = id
	if err := db.putUnique(volumeNamePrefix, volumePrefix, v.Name, id, v); err != nil {
		v.ID = 0
		return 0, err
	}
	return id, nil
}

func (db *BadgerDB) getVolume(txn *badger.Txn, id uint64) (*storage.Volume, error) {
	value, err := getValue(txn, idKey(volumePrefix, id))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("volume %d: %w", id, seisvol.ErrVolumeNotFound)
	}
	var v storage.Volume
	if err := seisvol.Deserialize(value, &v); err != nil {
		return nil, fmt.Errorf("volume %d: %v", id, err)
	}
	return &v, nil
}

// GetVolume returns a volume by id.
func (db *BadgerDB) GetVolume(id uint64) (v *storage.Volume, err error) {
	err = db.bdp.View(func(txn *badger.Txn) error {
		v, err = db.getVolume(txn, id)
		return err
	})
	return
}

// GetVolumeByName returns a volume by its unique name.
func (db *BadgerDB) GetVolumeByName(name string) (v *storage.Volume, err error) {
	err = db.bdp.View(func(txn *badger.Txn) error {
		idBytes, err := getValue(txn, nameKey(volumeNamePrefix, name))
		if err != nil {
			return err
		}
		if idBytes == nil {
			return fmt.Errorf("volume %q: %w", name, seisvol.ErrVolumeNotFound)
		}
		v, err = db.getVolume(txn, binary.BigEndian.Uint64(idBytes))
		return err
	})
	return
}

// ListVolumes returns volumes ordered by name.
func (db *BadgerDB) ListVolumes() ([]*storage.Volume, error) {
	var volumes []*storage.Volume
	err := db.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(volumeNamePrefix); it.ValidForPrefix(volumeNamePrefix); it.Next() {
			idBytes, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			v, err := db.getVolume(txn, binary.BigEndian.Uint64(idBytes))
			if err != nil {
				return err
			}
			volumes = append(volumes, v)
		}
		return nil
	})
	return volumes, err
}

// DeleteVolume removes a volume and releases its name.
func (db *BadgerDB) DeleteVolume(id uint64) error {
	return db.bdp.Update(func(txn *badger.Txn) error {
		return db.deleteVolume(txn, id)
	})
}

func (db *BadgerDB) deleteVolume(txn *badger.Txn, id uint64) error {
	v, err := db.getVolume(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(nameKey(volumeNamePrefix, v.Name)); err != nil {
		return err
	}
	return txn.Delete(idKey(volumePrefix, id))
}

// ReplaceVolume swaps volume oldID and its same-named survey for v in one
// transaction.
func (db *BadgerDB) ReplaceVolume(oldID uint64, v *storage.Volume) (uint64, error) {
	id, err := db.nextID(db.volumeSeq)
	if err != nil {
		return 0, err
	}
	v.ID = id
	value, err := seisvol.Serialize(v, db.compression, seisvol.CRC32)
	if err != nil {
		v.ID = 0
		return 0, err
	}
	err = db.update(v.Name, func(txn *badger.Txn) error {
		if err := db.deleteVolume(txn, oldID); err != nil && !errors.Is(err, seisvol.ErrVolumeNotFound) {
			return err
		}
		if err := deleteSurvey(txn, v.Name); err != nil && !errors.Is(err, seisvol.ErrSurveyNotFound) {
			return err
		}
		return claimName(txn, volumeNamePrefix, volumePrefix, v.Name, id, value)
	})
	if err != nil {
		v.ID = 0
		return 0, err
	}
	return id, nil
}

// PutSurvey stores a new survey.
func (db *BadgerDB) PutSurvey(s *storage.Survey) (uint64, error) {
	id, err := db.nextID(db.surveySeq)
	if err != nil {
		return 0, err
	}
	s.ID = id
	if err := db.putUnique(surveyNamePrefix, surveyPrefix, s.Name, id, s); err != nil {
		s.ID = 0
		return 0, err
	}
	return id, nil
}

func getSurveyID(txn *badger.Txn, name string) (uint64, error) {
	idBytes, err := getValue(txn, nameKey(surveyNamePrefix, name))
	if err != nil {
		return 0, err
	}
	if idBytes == nil {
		return 0, fmt.Errorf("survey %q: %w", name, seisvol.ErrSurveyNotFound)
	}
	return binary.BigEndian.Uint64(idBytes), nil
}

// GetSurvey returns a survey by name.
func (db *BadgerDB) GetSurvey(name string) (*storage.Survey, error) {
	var s storage.Survey
	err := db.bdp.View(func(txn *badger.Txn) error {
		id, err := getSurveyID(txn, name)
		if err != nil {
			return err
		}
		value, err := getValue(txn, idKey(surveyPrefix, id))
		if err != nil {
			return err
		}
		if value == nil {
			return fmt.Errorf("survey %q has dangling id %d: %w", name, id, seisvol.ErrSurveyNotFound)
		}
		return seisvol.Deserialize(value, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSurveys returns surveys ordered by id.
func (db *BadgerDB) ListSurveys() ([]*storage.Survey, error) {
	var surveys []*storage.Survey
	err := db.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(surveyPrefix); it.ValidForPrefix(surveyPrefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var s storage.Survey
			if err := seisvol.Deserialize(value, &s); err != nil {
				return fmt.Errorf("survey key %x: %v", it.Item().Key(), err)
			}
			surveys = append(surveys, &s)
		}
		return nil
	})
	return surveys, err
}

func deleteSurvey(txn *badger.Txn, name string) error {
	id, err := getSurveyID(txn, name)
	if err != nil {
		return err
	}
	if err := txn.Delete(nameKey(surveyNamePrefix, name)); err != nil {
		return err
	}
	return txn.Delete(idKey(surveyPrefix, id))
}

// DeleteSurvey removes a survey by name.
func (db *BadgerDB) DeleteSurvey(name string) error {
	return db.bdp.Update(func(txn *badger.Txn) error {
		return deleteSurvey(txn, name)
	})
}
