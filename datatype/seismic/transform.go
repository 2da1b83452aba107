package seismic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
)

// Transform maps grid steps to world coordinates.  Inline and Crossline are
// the displacements for one step along each axis.
type Transform struct {
	Origin    r2.Vec `json:"origin"`
	Inline    r2.Vec `json:"inline"`
	Crossline r2.Vec `json:"crossline"`
}

// RealXY returns the world location i inline steps and x crossline steps
// from the origin.
func (t Transform) RealXY(i, x float64) r2.Vec {
	return r2.Add(r2.Add(t.Origin, r2.Scale(i, t.Inline)), r2.Scale(x, t.Crossline))
}

// Invert returns the fractional inline and crossline steps of a world
// location.  It fails when the step vectors are degenerate.
func (t Transform) Invert(p r2.Vec) (i, x float64, err error) {
	a := mat.NewDense(2, 2, []float64{
		t.Inline.X, t.Crossline.X,
		t.Inline.Y, t.Crossline.Y,
	})
	d := r2.Sub(p, t.Origin)
	b := mat.NewVecDense(2, []float64{d.X, d.Y})
	var steps mat.VecDense
	if err := steps.SolveVec(a, b); err != nil {
		return 0, 0, fmt.Errorf("transform is not invertible: %v: %w", err, seisvol.ErrBadRequest)
	}
	return steps.AtVec(0), steps.AtVec(1), nil
}

// cellLocation returns the scaled CDP location of the trace at (il, xl).
func cellLocation(f *segy.File, g *Grid, il, xl int) (r2.Vec, error) {
	i, found := g.TraceIndex(il, xl)
	if !found {
		return r2.Vec{}, fmt.Errorf("no trace at inline %d crossline %d: %w", il, xl, seisvol.ErrGeometryUnavailable)
	}
	h, err := f.Header(i)
	if err != nil {
		return r2.Vec{}, err
	}
	x, y := h.CDPLocation()
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return r2.Vec{}, fmt.Errorf("trace %d has non-finite location: %w", i, seisvol.ErrGeometryUnavailable)
	}
	return r2.Vec{X: x, Y: y}, nil
}

// DeriveTransform reads the first cell and its neighbours along each axis.
// A single line along an axis leaves that step vector zero.
func DeriveTransform(f *segy.File, g *Grid) (*Transform, error) {
	if !g.Gridded || g.NumInlines() == 0 || g.NumCrosslines() == 0 {
		return nil, fmt.Errorf("transform needs a gridded volume: %w", seisvol.ErrGeometryUnavailable)
	}
	il0, xl0 := g.InlineValues[0], g.CrosslineValues[0]
	origin, err := cellLocation(f, g, il0, xl0)
	if err != nil {
		return nil, err
	}
	t := &Transform{Origin: origin}
	if g.NumInlines() > 1 {
		p, err := cellLocation(f, g, g.InlineValues[1], xl0)
		if err != nil {
			return nil, err
		}
		t.Inline = r2.Sub(p, origin)
	}
	if g.NumCrosslines() > 1 {
		p, err := cellLocation(f, g, il0, g.CrosslineValues[1])
		if err != nil {
			return nil, err
		}
		t.Crossline = r2.Sub(p, origin)
	}
	return t, nil
}
