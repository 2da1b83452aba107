package seismic

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
)

// Direction selects the axis a section is cut along.
type Direction string

const (
	AlongInline    Direction = "inline"
	AlongCrossline Direction = "crossline"
)

// ParseDirection accepts "inline" or "crossline" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case AlongInline:
		return AlongInline, nil
	case AlongCrossline:
		return AlongCrossline, nil
	default:
		return "", fmt.Errorf("direction %q must be %q or %q: %w", s, AlongInline, AlongCrossline, seisvol.ErrBadRequest)
	}
}

// Section is a 2-D slice of a volume.  Data holds one row per trace in
// ascending order of the other axis; Positions holds those line values and
// Times the sample axis in milliseconds.
type Section struct {
	Direction Direction   `json:"direction"`
	Index     int         `json:"index"`
	Data      [][]float32 `json:"data"`
	Times     []float64   `json:"times"`
	Positions []int       `json:"positions"`
	AmpMin    float32     `json:"amp_min"`
	AmpMax    float32     `json:"amp_max"`
}

// stride returns the elements of values at indices 0, k, 2k, ...
func stride[T any](values []T, k int) []T {
	if k == 1 {
		return values
	}
	out := make([]T, 0, (len(values)+k-1)/k)
	for i := 0; i < len(values); i += k {
		out = append(out, values[i])
	}
	return out
}

// ReadSection reads the line at index along dir, keeping every downsample-th
// trace and sample.  Decimation is a plain stride without filtering, so it
// is a preview approximation that can alias high frequencies.
func ReadSection(ctx context.Context, f *segy.File, g *Grid, dir Direction, index, downsample int) (*Section, error) {
	if downsample < 1 {
		return nil, fmt.Errorf("downsample %d must be at least 1: %w", downsample, seisvol.ErrBadRequest)
	}
	if !g.Gridded {
		return nil, fmt.Errorf("%s has no regular grid, sections unavailable: %w", f.Path, seisvol.ErrGeometryUnavailable)
	}

	var axis, others []int
	switch dir {
	case AlongInline:
		axis, others = g.InlineValues, g.CrosslineValues
	case AlongCrossline:
		axis, others = g.CrosslineValues, g.InlineValues
	default:
		return nil, fmt.Errorf("bad direction %q: %w", dir, seisvol.ErrBadRequest)
	}
	if !contains(axis, index) {
		return nil, &seisvol.LineNotFoundError{
			Direction: string(dir),
			Index:     index,
			Min:       first(axis),
			Max:       last(axis),
		}
	}

	positions := stride(others, downsample)
	times := stride(f.SampleTimes(), downsample)
	section := &Section{
		Direction: dir,
		Index:     index,
		Data:      make([][]float32, len(positions)),
		Times:     times,
		Positions: positions,
	}

	var buf []float32
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for row, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		il, xl := index, pos
		if dir == AlongCrossline {
			il, xl = pos, index
		}
		i, found := g.TraceIndex(il, xl)
		if !found {
			return nil, fmt.Errorf("no trace at inline %d crossline %d: %w", il, xl, seisvol.ErrIoFailure)
		}
		var err error
		if buf, err = f.Samples(i, buf); err != nil {
			return nil, err
		}
		values := make([]float32, len(times))
		for j := range values {
			v := buf[j*downsample]
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				v = 0
			}
			values[j] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		section.Data[row] = values
	}
	if len(positions) == 0 || len(times) == 0 {
		lo, hi = 0, 0
	}
	section.AmpMin, section.AmpMax = lo, hi
	return section, nil
}
