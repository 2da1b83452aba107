/*
	Package storage provides a unified interface to the engines that persist
	volume and survey records.  Each engine registers itself in an init()
	function and is selected by name through the [store] section of the
	server configuration.

	Records are simple: a volume is keyed by a unique name and looked up by id,
	a survey is keyed by a unique name.  Values are serialized above the engine
	level with seisvol.Serialize so compression and checksums are shared.
*/
package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver"

	"github.com/openseis/seisvol/seisvol"
)

// VolumeMetadata is the structural summary of a volume computed at import.
type VolumeMetadata struct {
	NumInlines     int     `json:"n_inlines"`
	NumCrosslines  int     `json:"n_crosslines"`
	NumSamples     int     `json:"n_samples"`
	SampleInterval float64 `json:"sample_interval"`
	InlineMin      int     `json:"inline_min"`
	InlineMax      int     `json:"inline_max"`
	CrosslineMin   int     `json:"crossline_min"`
	CrosslineMax   int     `json:"crossline_max"`
	FormatCode     int     `json:"format_code"`
	NumTraces      int     `json:"n_traces"`

	// Geometry names the strategy that resolved the grid.
	Geometry  string `json:"geometry"`
	Gridded   bool   `json:"gridded"`
	Irregular bool   `json:"irregular"`
}

// Volume is an imported SEG-Y file.
type Volume struct {
	ID         uint64         `json:"id"`
	Name       string         `json:"name"`
	FilePath   string         `json:"file_path"`
	Metadata   VolumeMetadata `json:"metadata"`
	ImportedAt time.Time      `json:"imported_at"`
}

// Survey is a named grid with an affine map from grid steps to world coordinates.
type Survey struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	InlineMin     int       `json:"inline_min"`
	InlineMax     int       `json:"inline_max"`
	InlineStep    int       `json:"inline_step"`
	CrosslineMin  int       `json:"crossline_min"`
	CrosslineMax  int       `json:"crossline_max"`
	CrosslineStep int       `json:"crossline_step"`
	OriginX       float64   `json:"origin_x"`
	OriginY       float64   `json:"origin_y"`
	InlineDX      float64   `json:"inline_dx"`
	InlineDY      float64   `json:"inline_dy"`
	CrosslineDX   float64   `json:"crossline_dx"`
	CrosslineDY   float64   `json:"crossline_dy"`
	CreatedAt     time.Time `json:"created_at"`
}

// MetadataStore persists volumes and surveys.  Names are unique within each
// kind; inserting a duplicate name returns an error matching seisvol.ErrConflict.
type MetadataStore interface {
	seisvol.Store

	// PutVolume assigns an id to v, stores it, and returns the id.
	PutVolume(v *Volume) (uint64, error)

	// GetVolume returns the volume or an error matching seisvol.ErrVolumeNotFound.
	GetVolume(id uint64) (*Volume, error)

	// GetVolumeByName returns the volume or an error matching seisvol.ErrVolumeNotFound.
	GetVolumeByName(name string) (*Volume, error)

	// ListVolumes returns all volumes ordered by name.
	ListVolumes() ([]*Volume, error)

	// DeleteVolume removes a volume or returns seisvol.ErrVolumeNotFound.
	DeleteVolume(id uint64) error

	// ReplaceVolume atomically removes volume oldID and any survey named
	// v.Name, then stores v under a new id.  Nothing changes on error.
	ReplaceVolume(oldID uint64, v *Volume) (uint64, error)

	// PutSurvey assigns an id to s, stores it, and returns the id.
	PutSurvey(s *Survey) (uint64, error)

	// GetSurvey returns the named survey or an error matching seisvol.ErrSurveyNotFound.
	GetSurvey(name string) (*Survey, error)

	// ListSurveys returns all surveys ordered by id.
	ListSurveys() ([]*Survey, error)

	// DeleteSurvey removes the named survey or returns seisvol.ErrSurveyNotFound.
	DeleteSurvey(name string) error
}

// Engine is a storage engine that can create a store.
type Engine interface {
	fmt.Stringer
	GetName() string
	GetDescription() string
	IsDistributed() bool
	GetSemVer() semver.Version

	// NewStore returns a store and whether it was newly created.
	NewStore(seisvol.StoreConfig) (MetadataStore, bool, error)
}

// TestableEngine can be used for tests with throwaway stores.
type TestableEngine interface {
	Engine
	TestConfig() seisvol.StoreConfig
}

var (
	enginesMu         sync.RWMutex
	availEngines      map[string]Engine
	defaultTestEngine string
)

// RegisterEngine registers an Engine for use.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if availEngines == nil {
		availEngines = map[string]Engine{e.GetName(): e}
	} else {
		availEngines[e.GetName()] = e
	}
	if _, ok := e.(TestableEngine); ok && defaultTestEngine == "" {
		defaultTestEngine = e.GetName()
	}
}

// GetEngine returns an Engine of the given name.
func GetEngine(name string) Engine {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	if availEngines == nil {
		return nil
	}
	e, found := availEngines[name]
	if !found {
		return nil
	}
	return e
}

// EnginesAvailable returns a description of the available storage engines.
func EnginesAvailable() string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	var engines []string
	for e := range availEngines {
		engines = append(engines, e)
	}
	sort.Strings(engines)
	return strings.Join(engines, "; ")
}

// NewStore opens the store described by config using its named engine.
func NewStore(config seisvol.StoreConfig) (MetadataStore, bool, error) {
	e := GetEngine(config.Engine)
	if e == nil {
		return nil, false, fmt.Errorf("storage engine %q not available (have %s)", config.Engine, EnginesAvailable())
	}
	seisvol.Infof("Opening %s store\n", e)
	return e.NewStore(config)
}

// NewTestStore returns a throwaway store from the named engine, or the
// first testable engine registered when name is empty.
func NewTestStore(name string) (MetadataStore, error) {
	if name == "" {
		enginesMu.RLock()
		name = defaultTestEngine
		enginesMu.RUnlock()
	}
	e, ok := GetEngine(name).(TestableEngine)
	if !ok {
		return nil, fmt.Errorf("no testable storage engine %q", name)
	}
	store, _, err := e.NewStore(e.TestConfig())
	return store, err
}
