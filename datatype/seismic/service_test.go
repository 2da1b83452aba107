package seismic

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
	_ "github.com/openseis/seisvol/storage/badger"
)

type mutationRecorder struct {
	sync.Mutex
	actions []string
}

func (r *mutationRecorder) record(m map[string]interface{}) {
	r.Lock()
	r.actions = append(r.actions, m["action"].(string))
	r.Unlock()
}

func newTestService(t *testing.T, config Config) (*Service, *mutationRecorder) {
	store, err := storage.NewTestStore("badger")
	if err != nil {
		t.Fatalf("can't open test store: %v\n", err)
	}
	t.Cleanup(store.Close)
	s := NewService(store, config)
	rec := new(mutationRecorder)
	s.OnMutation = rec.record
	return s, rec
}

func writeSynthetic(t *testing.T, name string, g segy.SyntheticGrid) string {
	path := filepath.Join(t.TempDir(), name)
	if err := segy.WriteSynthetic(path, g); err != nil {
		t.Fatalf("can't write %s: %v\n", name, err)
	}
	return path
}

func surveyGrid() segy.SyntheticGrid {
	g := basicGrid(4, 6, 8)
	g.OriginX, g.OriginY = 1000, 2000
	g.InlineDY = 25
	g.CrosslineDX = 25
	g.Scalar = -100
	return g
}

func TestImport(t *testing.T) {
	s, rec := newTestService(t, Config{})
	ctx := context.Background()
	path := writeSynthetic(t, "north_sea.sgy", surveyGrid())

	result, err := s.Import(ctx, ImportRequest{FilePath: path})
	if err != nil {
		t.Fatalf("import: %v\n", err)
	}
	v := result.Volume
	if v.Name != "north_sea" || v.ID == 0 || v.FilePath != path {
		t.Errorf("bad imported volume: %+v\n", v)
	}
	md := v.Metadata
	if md.NumInlines != 4 || md.NumCrosslines != 6 || md.NumSamples != 8 || md.SampleInterval != 4 ||
		md.InlineMin != 100 || md.InlineMax != 103 || md.CrosslineMin != 1000 || md.CrosslineMax != 1010 ||
		md.FormatCode != 5 || md.NumTraces != 24 || !md.Gridded || md.Geometry != "standard" {
		t.Errorf("bad metadata: %+v\n", md)
	}
	if result.Survey == nil {
		t.Fatalf("expected survey to be created on import\n")
	}
	sv, err := s.Survey("north_sea")
	if err != nil {
		t.Fatalf("survey not stored: %v\n", err)
	}
	if sv.OriginX != 1000 || sv.OriginY != 2000 || sv.InlineDY != 25 || sv.CrosslineDX != 25 || sv.CrosslineStep != 2 {
		t.Errorf("bad survey: %+v\n", sv)
	}

	stored, err := s.Volume(v.ID)
	if err != nil || stored.Name != "north_sea" {
		t.Errorf("can't get imported volume: %v, %v\n", stored, err)
	}

	if _, err := s.Import(ctx, ImportRequest{FilePath: path, Name: "north_sea"}); !errors.Is(err, seisvol.ErrConflict) {
		t.Errorf("expected ErrConflict on second import, got %v\n", err)
	}

	replaced, err := s.Import(ctx, ImportRequest{FilePath: path, Name: "north_sea", Replace: true})
	if err != nil {
		t.Fatalf("replace import: %v\n", err)
	}
	if replaced.Volume.ID == v.ID {
		t.Errorf("replaced volume kept id %d\n", v.ID)
	}
	if _, err := s.Volume(v.ID); !errors.Is(err, seisvol.ErrVolumeNotFound) {
		t.Errorf("old volume still present after replace: %v\n", err)
	}
	if replaced.Survey == nil {
		t.Errorf("survey not recreated on replace\n")
	}
	volumes, err := s.Volumes()
	if err != nil || len(volumes) != 1 {
		t.Errorf("expected one volume after replace, got %d: %v\n", len(volumes), err)
	}

	if !reflect.DeepEqual(rec.actions, []string{"import", "import"}) {
		t.Errorf("bad mutation log: %v\n", rec.actions)
	}
}

func TestImportErrors(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	if _, err := s.Import(ctx, ImportRequest{}); !errors.Is(err, seisvol.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest without a path, got %v\n", err)
	}
	missing := filepath.Join(t.TempDir(), "missing.sgy")
	if _, err := s.Import(ctx, ImportRequest{FilePath: missing}); !errors.Is(err, seisvol.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v\n", err)
	}
	short := filepath.Join(t.TempDir(), "short.sgy")
	if err := os.WriteFile(short, make([]byte, 1000), 0644); err != nil {
		t.Fatalf("can't write short file: %v\n", err)
	}
	if _, err := s.Import(ctx, ImportRequest{FilePath: short}); !errors.Is(err, seisvol.ErrCorruptOrEmptyVolume) {
		t.Errorf("expected ErrCorruptOrEmptyVolume, got %v\n", err)
	}
	volumes, err := s.Volumes()
	if err != nil || len(volumes) != 0 {
		t.Errorf("failed imports left %d volumes: %v\n", len(volumes), err)
	}

	// A missing file is reported before a name conflict.
	path := writeSynthetic(t, "taken.sgy", basicGrid(2, 2, 4))
	if _, err := s.Import(ctx, ImportRequest{FilePath: path}); err != nil {
		t.Fatalf("import: %v\n", err)
	}
	if _, err := s.Import(ctx, ImportRequest{FilePath: missing, Name: "taken"}); !errors.Is(err, seisvol.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound for missing file under a taken name, got %v\n", err)
	}
}

var errDiskFull = errors.New("disk full")

// failingStore fails every volume write.
type failingStore struct {
	storage.MetadataStore
}

func (fs failingStore) PutVolume(v *storage.Volume) (uint64, error) {
	return 0, errDiskFull
}

func (fs failingStore) ReplaceVolume(oldID uint64, v *storage.Volume) (uint64, error) {
	return 0, errDiskFull
}

func TestImportReplaceFailure(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	path := writeSynthetic(t, "keep.sgy", surveyGrid())
	original, err := s.Import(ctx, ImportRequest{FilePath: path})
	if err != nil {
		t.Fatalf("import: %v\n", err)
	}

	failing := NewService(failingStore{s.Store()}, Config{})
	if _, err := failing.Import(ctx, ImportRequest{FilePath: path, Replace: true}); !errors.Is(err, errDiskFull) {
		t.Fatalf("expected write failure on replace, got %v\n", err)
	}

	volumes, err := s.Volumes()
	if err != nil || len(volumes) != 1 || volumes[0].ID != original.Volume.ID {
		t.Errorf("original volume not kept after failed replace: %v, %v\n", volumes, err)
	}
	surveys, err := s.Surveys()
	if err != nil || len(surveys) != 1 || surveys[0].Name != "keep" {
		t.Errorf("original survey not kept after failed replace: %v, %v\n", surveys, err)
	}
}

func TestImportIrregular(t *testing.T) {
	g := basicGrid(1, 3, 4)
	g.Inlines = []int{10, 20, 40}
	path := writeSynthetic(t, "irregular.sgy", g)
	ctx := context.Background()

	strict, _ := newTestService(t, Config{RejectIrregular: true})
	if _, err := strict.Import(ctx, ImportRequest{FilePath: path}); !errors.Is(err, seisvol.ErrIrregularGeometry) {
		t.Errorf("expected ErrIrregularGeometry, got %v\n", err)
	}

	lenient, _ := newTestService(t, Config{})
	result, err := lenient.Import(ctx, ImportRequest{FilePath: path})
	if err != nil {
		t.Fatalf("import: %v\n", err)
	}
	if !result.Volume.Metadata.Irregular || len(result.Warnings) == 0 {
		t.Errorf("irregular volume not flagged: %+v, warnings %v\n", result.Volume.Metadata, result.Warnings)
	}
}

func TestImportUngridded(t *testing.T) {
	g := basicGrid(3, 3, 4)
	traces := g.Traces()
	traces[3], traces[4] = traces[4], traces[3]
	path := filepath.Join(t.TempDir(), "shuffled.sgy")
	if err := segy.WriteFile(path, "C 1 SHUFFLED", g.BinaryHeader(), traces); err != nil {
		t.Fatalf("can't write: %v\n", err)
	}
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	result, err := s.Import(ctx, ImportRequest{FilePath: path, Name: "shuffled"})
	if err != nil {
		t.Fatalf("import: %v\n", err)
	}
	if result.Volume.Metadata.Gridded || result.Volume.Metadata.Geometry != "scan" || result.Survey != nil {
		t.Errorf("expected ungridded volume without survey: %+v\n", result)
	}
	if _, err := s.Section(ctx, result.Volume.ID, "inline", 100, 1); !errors.Is(err, seisvol.ErrGeometryUnavailable) {
		t.Errorf("expected ErrGeometryUnavailable for section, got %v\n", err)
	}
	if _, err := s.Outline(ctx, result.Volume.ID); !errors.Is(err, seisvol.ErrGeometryUnavailable) {
		t.Errorf("expected ErrGeometryUnavailable for outline, got %v\n", err)
	}
	if _, err := s.SurveyFromVolume(ctx, result.Volume.ID, ""); !errors.Is(err, seisvol.ErrGeometryUnavailable) {
		t.Errorf("expected ErrGeometryUnavailable for survey from volume, got %v\n", err)
	}
}

func TestServiceSection(t *testing.T) {
	for _, cacheBytes := range []int{0, 4 * seisvol.Mega} {
		s, _ := newTestService(t, Config{CacheBytes: cacheBytes, MaxFileJobs: 2})
		ctx := context.Background()
		path := writeSynthetic(t, "section.sgy", surveyGrid())
		result, err := s.Import(ctx, ImportRequest{FilePath: path})
		if err != nil {
			t.Fatalf("import: %v\n", err)
		}
		id := result.Volume.ID

		section, err := s.Section(ctx, id, "crossline", 1004, 2)
		if err != nil {
			t.Fatalf("section: %v\n", err)
		}
		if len(section.Data) != 2 || len(section.Times) != 4 || !reflect.DeepEqual(section.Positions, []int{100, 102}) {
			t.Errorf("bad downsampled section: %d rows, %d times, positions %v\n",
				len(section.Data), len(section.Times), section.Positions)
		}
		if _, err := s.Section(ctx, id, "inline", 9999, 1); !errors.Is(err, seisvol.ErrLineNotFound) {
			t.Errorf("expected ErrLineNotFound, got %v\n", err)
		}
		if _, err := s.Section(ctx, id, "sideways", 100, 1); !errors.Is(err, seisvol.ErrBadRequest) {
			t.Errorf("expected ErrBadRequest, got %v\n", err)
		}
		if _, err := s.Section(ctx, id, "inline", 100, 0); !errors.Is(err, seisvol.ErrBadRequest) {
			t.Errorf("expected ErrBadRequest, got %v\n", err)
		}
		if _, err := s.Section(ctx, id+100, "inline", 100, 1); !errors.Is(err, seisvol.ErrVolumeNotFound) {
			t.Errorf("expected ErrVolumeNotFound, got %v\n", err)
		}

		attempts, hits := s.Cache().Stats()
		if cacheBytes == 0 {
			if s.Cache() != nil || attempts != 0 {
				t.Errorf("disabled cache was used\n")
			}
			continue
		}
		if attempts < 2 || hits < 2 {
			t.Errorf("expected cache hits after import, got %d of %d\n", hits, attempts)
		}

		// A touched file must not be served from the cache.
		later := time.Now().Add(time.Hour)
		if err := os.Chtimes(path, later, later); err != nil {
			t.Fatalf("can't touch file: %v\n", err)
		}
		if _, err := s.Section(ctx, id, "inline", 101, 1); err != nil {
			t.Fatalf("section after touch: %v\n", err)
		}
		_, hitsAfter := s.Cache().Stats()
		if hitsAfter != hits {
			t.Errorf("stale cache entry used after file changed\n")
		}
	}
}

func TestServiceOutlineAndDelete(t *testing.T) {
	s, rec := newTestService(t, Config{})
	ctx := context.Background()
	result, err := s.Import(ctx, ImportRequest{FilePath: writeSynthetic(t, "outline.sgy", surveyGrid())})
	if err != nil {
		t.Fatalf("import: %v\n", err)
	}
	corners, err := s.Outline(ctx, result.Volume.ID)
	if err != nil {
		t.Fatalf("outline: %v\n", err)
	}
	if len(corners) != 4 || corners[2].X != 1125 || corners[2].Y != 2075 {
		t.Errorf("bad outline: %v\n", corners)
	}
	if err := s.DeleteVolume(result.Volume.ID); err != nil {
		t.Fatalf("delete: %v\n", err)
	}
	if err := s.DeleteVolume(result.Volume.ID); !errors.Is(err, seisvol.ErrVolumeNotFound) {
		t.Errorf("expected ErrVolumeNotFound on second delete, got %v\n", err)
	}
	if _, err := s.Outline(ctx, result.Volume.ID); !errors.Is(err, seisvol.ErrVolumeNotFound) {
		t.Errorf("expected ErrVolumeNotFound for deleted volume, got %v\n", err)
	}
	if !reflect.DeepEqual(rec.actions, []string{"import", "delete-volume"}) {
		t.Errorf("bad mutation log: %v\n", rec.actions)
	}
}

func TestSurveys(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()

	if _, err := s.CreateSurvey(SurveyRequest{}); !errors.Is(err, seisvol.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest for unnamed survey, got %v\n", err)
	}
	sv, err := s.CreateSurvey(SurveyRequest{
		Name:         "manual",
		InlineMin:    100,
		InlineMax:    500,
		CrosslineMin: 1000,
		CrosslineMax: 1200,
		OriginX:      1000,
		OriginY:      2000,
		InlineDY:     25,
		CrosslineDX:  25,
	})
	if err != nil {
		t.Fatalf("create survey: %v\n", err)
	}
	if sv.InlineStep != 1 || sv.CrosslineStep != 1 {
		t.Errorf("steps not defaulted: %d, %d\n", sv.InlineStep, sv.CrosslineStep)
	}
	if _, err := s.CreateSurvey(SurveyRequest{Name: "manual"}); !errors.Is(err, seisvol.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v\n", err)
	}

	loc, err := s.LocateLine("manual", 102, 1004)
	if err != nil {
		t.Fatalf("locate line: %v\n", err)
	}
	if loc.X != 1100 || loc.Y != 2050 || !loc.InSurvey {
		t.Errorf("bad location of (102, 1004): %+v\n", loc)
	}
	loc, err = s.LocatePoint("manual", 1110, 2060)
	if err != nil {
		t.Fatalf("locate point: %v\n", err)
	}
	if math.Abs(loc.Inline-102.4) > 1e-9 || math.Abs(loc.Crossline-1004.4) > 1e-9 ||
		loc.NearestInline != 102 || loc.NearestCrossline != 1004 {
		t.Errorf("bad location of (1110, 2060): %+v\n", loc)
	}
	loc, err = s.LocatePoint("manual", 0, 0)
	if err != nil {
		t.Fatalf("locate point: %v\n", err)
	}
	if loc.InSurvey {
		t.Errorf("point far outside survey reported inside: %+v\n", loc)
	}
	if _, err := s.LocateLine("absent", 1, 1); !errors.Is(err, seisvol.ErrSurveyNotFound) {
		t.Errorf("expected ErrSurveyNotFound, got %v\n", err)
	}

	volume, err := s.Import(ctx, ImportRequest{FilePath: writeSynthetic(t, "v.sgy", surveyGrid()), Name: "vol"})
	if err != nil {
		t.Fatalf("import: %v\n", err)
	}
	if _, err := s.SurveyFromVolume(ctx, volume.Volume.ID, ""); !errors.Is(err, seisvol.ErrConflict) {
		t.Errorf("expected ErrConflict deriving survey with the volume's name, got %v\n", err)
	}
	derived, err := s.SurveyFromVolume(ctx, volume.Volume.ID, "derived")
	if err != nil {
		t.Fatalf("survey from volume: %v\n", err)
	}
	if derived.CrosslineStep != 2 || derived.InlineDY != 25 {
		t.Errorf("bad derived survey: %+v\n", derived)
	}

	surveys, err := s.Surveys()
	if err != nil {
		t.Fatalf("list surveys: %v\n", err)
	}
	var names []string
	for _, sv := range surveys {
		names = append(names, sv.Name)
	}
	if !reflect.DeepEqual(names, []string{"manual", "vol", "derived"}) {
		t.Errorf("surveys not in creation order: %v\n", names)
	}
	if err := s.DeleteSurvey("manual"); err != nil {
		t.Errorf("delete survey: %v\n", err)
	}
	if err := s.DeleteSurvey("manual"); !errors.Is(err, seisvol.ErrSurveyNotFound) {
		t.Errorf("expected ErrSurveyNotFound, got %v\n", err)
	}
}

func TestServiceHeaders(t *testing.T) {
	s, _ := newTestService(t, Config{})
	ctx := context.Background()
	summary, err := s.Headers(ctx, writeSynthetic(t, "h.sgy", basicGrid(1, 3, 2)))
	if err != nil {
		t.Fatalf("headers: %v\n", err)
	}
	if summary.TotalTraces != 3 || len(summary.TraceHeaders) != 3 {
		t.Errorf("bad header summary: %d traces, %d previewed\n", summary.TotalTraces, len(summary.TraceHeaders))
	}
	if _, err := s.Headers(ctx, ""); !errors.Is(err, seisvol.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v\n", err)
	}
	if _, err := s.Headers(ctx, filepath.Join(t.TempDir(), "nope.sgy")); !errors.Is(err, seisvol.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v\n", err)
	}
}

func TestGeometryCache(t *testing.T) {
	var disabled *GeometryCache
	if NewGeometryCache(0) != nil {
		t.Errorf("expected nil cache for zero size\n")
	}
	if _, found := disabled.Get(1, 10, time.Now()); found {
		t.Errorf("nil cache should never hit\n")
	}
	disabled.Put(1, 10, time.Now(), &Grid{})
	disabled.Invalidate(1)

	c := NewGeometryCache(2 * seisvol.Mega)
	g := newGrid("standard", CrosslineSorted, []int{5, 6, 7}, []int{20, 10})
	mtime := time.Unix(1700000000, 5)
	c.Put(9, 1234, mtime, g)

	got, found := c.Get(9, 1234, mtime)
	if !found {
		t.Fatalf("cached grid not found\n")
	}
	if !reflect.DeepEqual(got.InlineValues, g.InlineValues) || got.Sorting != CrosslineSorted || got.Strategy != "standard" {
		t.Errorf("bad cached grid: %+v\n", got)
	}
	i, ok := got.TraceIndex(7, 10)
	if !ok || i != 1*3+2 {
		t.Errorf("cached grid not indexed: %d, %t\n", i, ok)
	}
	if _, found := c.Get(9, 1235, mtime); found {
		t.Errorf("cache hit despite size change\n")
	}
	if _, found := c.Get(9, 1234, mtime); found {
		t.Errorf("stale entry not dropped\n")
	}
	c.Put(9, 1234, mtime, g)
	c.Invalidate(9)
	if _, found := c.Get(9, 1234, mtime); found {
		t.Errorf("invalidated entry returned\n")
	}
	attempts, hits := c.Stats()
	if attempts != 4 || hits != 1 {
		t.Errorf("bad stats: %d hits of %d\n", hits, attempts)
	}
}
