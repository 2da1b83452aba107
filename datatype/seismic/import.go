package seismic

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

// ImportRequest names a SEG-Y file to register.
type ImportRequest struct {
	FilePath string `json:"file_path"`

	// Name defaults to the file name without extension.
	Name string `json:"name"`

	// Replace overwrites an existing volume of the same name.
	Replace bool `json:"replace"`
}

// ImportResult is the registered volume and, for gridded volumes with a
// readable transform, the survey created alongside it.
type ImportResult struct {
	Volume   *storage.Volume `json:"volume"`
	Survey   *storage.Survey `json:"survey,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

func defaultName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Import opens the file, resolves its geometry and stores its metadata.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.FilePath == "" {
		return nil, fmt.Errorf("file path required: %w", seisvol.ErrBadRequest)
	}
	name := req.Name
	if name == "" {
		name = defaultName(req.FilePath)
	}

	if _, _, err := seisvol.FileStat(req.FilePath); err != nil {
		return nil, err
	}

	existing, err := s.store.GetVolumeByName(name)
	switch {
	case err == nil && !req.Replace:
		return nil, fmt.Errorf("volume %q already imported as id %d: %w", name, existing.ID, seisvol.ErrConflict)
	case err != nil && !errors.Is(err, seisvol.ErrVolumeNotFound):
		return nil, err
	case err != nil:
		existing = nil
	}

	timedLog := seisvol.NewTimeLog()
	result := &ImportResult{}
	var (
		grid      *Grid
		transform *Transform
		size      int64
		modTime   time.Time
		metadata  storage.VolumeMetadata
	)
	err = s.withFile(ctx, req.FilePath, func(f *segy.File) error {
		var err error
		if grid, err = ResolveGeometry(ctx, f, s.strategies); err != nil {
			return err
		}
		if grid.Irregular {
			if s.rejectIrregular {
				return fmt.Errorf("%s: inline step %d, crossline step %d not uniform: %w",
					req.FilePath, grid.InlineStep, grid.CrosslineStep, seisvol.ErrIrregularGeometry)
			}
			msg := fmt.Sprintf("line spacing is irregular, steps %d and %d are first-pair only", grid.InlineStep, grid.CrosslineStep)
			seisvol.Warningf("%s: %s\n", req.FilePath, msg)
			result.Warnings = append(result.Warnings, msg)
		}
		if grid.Gridded {
			if transform, err = DeriveTransform(f, grid); err != nil {
				seisvol.Infof("%s: no coordinate transform: %v\n", req.FilePath, err)
				transform = nil
			}
		} else {
			result.Warnings = append(result.Warnings, "traces are not on a regular grid, sections are unavailable")
		}
		size, modTime = f.Size, f.ModTime
		metadata = storage.VolumeMetadata{
			NumInlines:     grid.NumInlines(),
			NumCrosslines:  grid.NumCrosslines(),
			NumSamples:     f.NumSamples,
			SampleInterval: f.SampleInterval(),
			InlineMin:      grid.InlineMin(),
			InlineMax:      grid.InlineMax(),
			CrosslineMin:   grid.CrosslineMin(),
			CrosslineMax:   grid.CrosslineMax(),
			FormatCode:     int(f.Format()),
			NumTraces:      f.NumTraces(),
			Geometry:       grid.Strategy,
			Gridded:        grid.Gridded,
			Irregular:      grid.Irregular,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v := &storage.Volume{
		Name:       name,
		FilePath:   req.FilePath,
		Metadata:   metadata,
		ImportedAt: time.Now(),
	}
	if existing != nil {
		if _, err := s.store.ReplaceVolume(existing.ID, v); err != nil {
			return nil, err
		}
		s.cache.Invalidate(existing.ID)
	} else if _, err := s.store.PutVolume(v); err != nil {
		return nil, err
	}
	result.Volume = v

	if transform != nil {
		survey := surveyFromGrid(name, grid, transform)
		if _, err := s.store.PutSurvey(survey); err != nil {
			seisvol.Warningf("volume %q imported but survey not stored: %v\n", name, err)
		} else {
			result.Survey = survey
		}
	}
	s.cache.Put(v.ID, size, modTime, grid)

	timedLog.Infof("Imported volume %q (id %d) from %s, %d x %d x %d, %s geometry",
		name, v.ID, req.FilePath, metadata.NumInlines, metadata.NumCrosslines, metadata.NumSamples, grid.Strategy)
	s.mutation("import", map[string]interface{}{
		"volume_id": v.ID,
		"name":      name,
		"file_path": req.FilePath,
		"replace":   existing != nil,
		"size":      size,
	})
	return result, nil
}
