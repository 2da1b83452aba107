package seismic

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

// Config holds the service settings taken from the server configuration.
type Config struct {
	// MaxFileJobs bounds the number of files being read at once.  Zero means
	// runtime.NumCPU().
	MaxFileJobs int

	// RejectIrregular makes import fail on non-uniform line spacing instead of
	// only flagging it.
	RejectIrregular bool

	// CacheBytes is the size of the geometry cache.  Zero disables it.
	CacheBytes int

	// Strategies overrides DefaultStrategies when non-empty.
	Strategies []GeometryStrategy
}

// MutationHandler receives a record of each change to volumes or surveys.
type MutationHandler func(mutation map[string]interface{})

// Service implements the seismic operations on top of a metadata store.
type Service struct {
	store           storage.MetadataStore
	cache           *GeometryCache
	sem             *semaphore.Weighted
	rejectIrregular bool
	strategies      []GeometryStrategy

	// OnMutation, if set, is called after each successful change.
	OnMutation MutationHandler
}

// NewService returns a service backed by the given store.
func NewService(store storage.MetadataStore, config Config) *Service {
	jobs := config.MaxFileJobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	strategies := config.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Service{
		store:           store,
		cache:           NewGeometryCache(config.CacheBytes),
		sem:             semaphore.NewWeighted(int64(jobs)),
		rejectIrregular: config.RejectIrregular,
		strategies:      strategies,
	}
}

// Store returns the metadata store used by the service.
func (s *Service) Store() storage.MetadataStore {
	return s.store
}

// Cache returns the geometry cache, which is nil when disabled.
func (s *Service) Cache() *GeometryCache {
	return s.cache
}

// withFile runs fn on the opened file while holding a file job slot.  The
// file is closed on every path.
func (s *Service) withFile(ctx context.Context, path string, fn func(*segy.File) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	f, err := segy.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			seisvol.Errorf("error closing %s: %v\n", path, err)
		}
	}()
	return fn(f)
}

// geometry returns the grid of an imported volume, using the cache when the
// file is unchanged.
func (s *Service) geometry(ctx context.Context, v *storage.Volume, f *segy.File) (*Grid, error) {
	if g, found := s.cache.Get(v.ID, f.Size, f.ModTime); found {
		return g, nil
	}
	g, err := ResolveGeometry(ctx, f, s.strategies)
	if err != nil {
		return nil, err
	}
	s.cache.Put(v.ID, f.Size, f.ModTime, g)
	return g, nil
}

func (s *Service) mutation(action string, fields map[string]interface{}) {
	fields["action"] = action
	fields["time"] = time.Now().Unix()
	if s.OnMutation != nil {
		s.OnMutation(fields)
	}
	storage.LogMutationToKafka(fields)
}

// Volumes returns all imported volumes ordered by name.
func (s *Service) Volumes() ([]*storage.Volume, error) {
	return s.store.ListVolumes()
}

// Volume returns an imported volume.
func (s *Service) Volume(id uint64) (*storage.Volume, error) {
	return s.store.GetVolume(id)
}

// DeleteVolume forgets an imported volume.  The file itself is untouched.
func (s *Service) DeleteVolume(id uint64) error {
	v, err := s.store.GetVolume(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVolume(id); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	s.mutation("delete-volume", map[string]interface{}{"volume_id": id, "name": v.Name})
	return nil
}

// Headers summarizes the headers of any SEG-Y file, imported or not.
func (s *Service) Headers(ctx context.Context, path string) (summary *HeaderSummary, err error) {
	if path == "" {
		return nil, fmt.Errorf("file path required: %w", seisvol.ErrBadRequest)
	}
	err = s.withFile(ctx, path, func(f *segy.File) error {
		summary, err = Headers(f)
		return err
	})
	return
}

// Section reads one inline or crossline of an imported volume.
func (s *Service) Section(ctx context.Context, volumeID uint64, direction string, index, downsample int) (section *Section, err error) {
	dir, err := ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	if downsample < 1 {
		return nil, fmt.Errorf("downsample %d must be at least 1: %w", downsample, seisvol.ErrBadRequest)
	}
	v, err := s.store.GetVolume(volumeID)
	if err != nil {
		return nil, err
	}
	timedLog := seisvol.NewTimeLog()
	err = s.withFile(ctx, v.FilePath, func(f *segy.File) error {
		g, err := s.geometry(ctx, v, f)
		if err != nil {
			return err
		}
		section, err = ReadSection(ctx, f, g, dir, index, downsample)
		return err
	})
	if err != nil {
		return nil, err
	}
	timedLog.Debugf("volume %d %s %d section, %d x %d (~%s)", volumeID, dir, index,
		len(section.Data), len(section.Times), seisvol.SizeOf(section.Data))
	return section, nil
}

// Outline returns the corner coordinates of an imported volume.
func (s *Service) Outline(ctx context.Context, volumeID uint64) (corners []Corner, err error) {
	v, err := s.store.GetVolume(volumeID)
	if err != nil {
		return nil, err
	}
	err = s.withFile(ctx, v.FilePath, func(f *segy.File) error {
		g, err := s.geometry(ctx, v, f)
		if err != nil {
			return err
		}
		corners, err = Outline(f, g)
		return err
	})
	return
}
