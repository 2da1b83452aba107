package seismic

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

// SurveyRequest describes a survey created by hand.  Zero steps default to 1.
type SurveyRequest struct {
	Name          string  `json:"name"`
	InlineMin     int     `json:"inline_min"`
	InlineMax     int     `json:"inline_max"`
	InlineStep    int     `json:"inline_step"`
	CrosslineMin  int     `json:"crossline_min"`
	CrosslineMax  int     `json:"crossline_max"`
	CrosslineStep int     `json:"crossline_step"`
	OriginX       float64 `json:"origin_x"`
	OriginY       float64 `json:"origin_y"`
	InlineDX      float64 `json:"inline_dx"`
	InlineDY      float64 `json:"inline_dy"`
	CrosslineDX   float64 `json:"crossline_dx"`
	CrosslineDY   float64 `json:"crossline_dy"`
}

func surveyFromGrid(name string, g *Grid, t *Transform) *storage.Survey {
	return &storage.Survey{
		Name:          name,
		InlineMin:     g.InlineMin(),
		InlineMax:     g.InlineMax(),
		InlineStep:    g.InlineStep,
		CrosslineMin:  g.CrosslineMin(),
		CrosslineMax:  g.CrosslineMax(),
		CrosslineStep: g.CrosslineStep,
		OriginX:       t.Origin.X,
		OriginY:       t.Origin.Y,
		InlineDX:      t.Inline.X,
		InlineDY:      t.Inline.Y,
		CrosslineDX:   t.Crossline.X,
		CrosslineDY:   t.Crossline.Y,
		CreatedAt:     time.Now(),
	}
}

// SurveyTransform returns the coordinate transform stored in a survey.
func SurveyTransform(sv *storage.Survey) Transform {
	return Transform{
		Origin:    r2.Vec{X: sv.OriginX, Y: sv.OriginY},
		Inline:    r2.Vec{X: sv.InlineDX, Y: sv.InlineDY},
		Crossline: r2.Vec{X: sv.CrosslineDX, Y: sv.CrosslineDY},
	}
}

// Surveys returns all surveys in creation order.
func (s *Service) Surveys() ([]*storage.Survey, error) {
	return s.store.ListSurveys()
}

// Survey returns the named survey.
func (s *Service) Survey(name string) (*storage.Survey, error) {
	return s.store.GetSurvey(name)
}

// CreateSurvey stores a survey described by hand.
func (s *Service) CreateSurvey(req SurveyRequest) (*storage.Survey, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("survey name required: %w", seisvol.ErrBadRequest)
	}
	if req.InlineStep == 0 {
		req.InlineStep = 1
	}
	if req.CrosslineStep == 0 {
		req.CrosslineStep = 1
	}
	if req.InlineMax < req.InlineMin || req.CrosslineMax < req.CrosslineMin {
		return nil, fmt.Errorf("survey %q has inverted line range: %w", req.Name, seisvol.ErrBadRequest)
	}
	if req.InlineStep < 0 || req.CrosslineStep < 0 {
		return nil, fmt.Errorf("survey %q has negative step: %w", req.Name, seisvol.ErrBadRequest)
	}
	sv := &storage.Survey{
		Name:          req.Name,
		InlineMin:     req.InlineMin,
		InlineMax:     req.InlineMax,
		InlineStep:    req.InlineStep,
		CrosslineMin:  req.CrosslineMin,
		CrosslineMax:  req.CrosslineMax,
		CrosslineStep: req.CrosslineStep,
		OriginX:       req.OriginX,
		OriginY:       req.OriginY,
		InlineDX:      req.InlineDX,
		InlineDY:      req.InlineDY,
		CrosslineDX:   req.CrosslineDX,
		CrosslineDY:   req.CrosslineDY,
		CreatedAt:     time.Now(),
	}
	if _, err := s.store.PutSurvey(sv); err != nil {
		return nil, err
	}
	s.mutation("create-survey", map[string]interface{}{"survey_id": sv.ID, "name": sv.Name})
	return sv, nil
}

// SurveyFromVolume derives and stores a survey from an imported volume.
// Unlike import, every failure is returned.
func (s *Service) SurveyFromVolume(ctx context.Context, volumeID uint64, name string) (*storage.Survey, error) {
	v, err := s.store.GetVolume(volumeID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = v.Name
	}
	var sv *storage.Survey
	err = s.withFile(ctx, v.FilePath, func(f *segy.File) error {
		g, err := s.geometry(ctx, v, f)
		if err != nil {
			return err
		}
		t, err := DeriveTransform(f, g)
		if err != nil {
			return err
		}
		sv = surveyFromGrid(name, g, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.store.PutSurvey(sv); err != nil {
		return nil, err
	}
	s.mutation("create-survey", map[string]interface{}{"survey_id": sv.ID, "name": sv.Name, "volume_id": volumeID})
	return sv, nil
}

// DeleteSurvey removes the named survey.
func (s *Service) DeleteSurvey(name string) error {
	if err := s.store.DeleteSurvey(name); err != nil {
		return err
	}
	s.mutation("delete-survey", map[string]interface{}{"name": name})
	return nil
}

// Location is a point expressed both in line numbers and world coordinates.
// Inline and Crossline may be fractional when computed from coordinates.
type Location struct {
	Inline    float64 `json:"inline"`
	Crossline float64 `json:"crossline"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`

	// NearestInline and NearestCrossline snap to the survey's line spacing.
	NearestInline    int  `json:"nearest_inline"`
	NearestCrossline int  `json:"nearest_crossline"`
	InSurvey         bool `json:"in_survey"`
}

func nearestLine(v float64, min, step int) int {
	k := math.Round((v - float64(min)) / float64(step))
	return min + int(k)*step
}

func (loc *Location) snap(sv *storage.Survey, ilStep, xlStep int) {
	loc.NearestInline = nearestLine(loc.Inline, sv.InlineMin, ilStep)
	loc.NearestCrossline = nearestLine(loc.Crossline, sv.CrosslineMin, xlStep)
	loc.InSurvey = loc.NearestInline >= sv.InlineMin && loc.NearestInline <= sv.InlineMax &&
		loc.NearestCrossline >= sv.CrosslineMin && loc.NearestCrossline <= sv.CrosslineMax
}

func surveySteps(sv *storage.Survey) (il, xl int) {
	il, xl = sv.InlineStep, sv.CrosslineStep
	if il == 0 {
		il = 1
	}
	if xl == 0 {
		xl = 1
	}
	return
}

// LocateLine returns the world coordinates of an inline/crossline pair.
func (s *Service) LocateLine(name string, inline, crossline float64) (*Location, error) {
	sv, err := s.store.GetSurvey(name)
	if err != nil {
		return nil, err
	}
	ilStep, xlStep := surveySteps(sv)
	t := SurveyTransform(sv)
	p := t.RealXY((inline-float64(sv.InlineMin))/float64(ilStep), (crossline-float64(sv.CrosslineMin))/float64(xlStep))
	loc := &Location{Inline: inline, Crossline: crossline, X: p.X, Y: p.Y}
	loc.snap(sv, ilStep, xlStep)
	return loc, nil
}

// LocatePoint returns the fractional line numbers of a world location.
func (s *Service) LocatePoint(name string, x, y float64) (*Location, error) {
	sv, err := s.store.GetSurvey(name)
	if err != nil {
		return nil, err
	}
	ilStep, xlStep := surveySteps(sv)
	t := SurveyTransform(sv)
	i, j, err := t.Invert(r2.Vec{X: x, Y: y})
	if err != nil {
		return nil, fmt.Errorf("survey %q: %w", name, err)
	}
	loc := &Location{
		Inline:    float64(sv.InlineMin) + i*float64(ilStep),
		Crossline: float64(sv.CrosslineMin) + j*float64(xlStep),
		X:         x,
		Y:         y,
	}
	loc.snap(sv, ilStep, xlStep)
	return loc, nil
}
