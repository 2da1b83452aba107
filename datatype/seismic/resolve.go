package seismic

import (
	"context"
	"errors"
	"fmt"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
)

// ResolveGeometry returns the grid of the first strategy that succeeds.
func ResolveGeometry(ctx context.Context, f *segy.File, strategies []GeometryStrategy) (*Grid, error) {
	for _, s := range strategies {
		g, err := s.Resolve(ctx, f)
		if err == nil {
			seisvol.Debugf("%s: geometry from %q strategy, %d x %d\n", f.Path, s.Name(), g.NumInlines(), g.NumCrosslines())
			return g, nil
		}
		if !errors.Is(err, seisvol.ErrGeometryUnavailable) {
			return nil, err
		}
		seisvol.Debugf("%s: %v\n", f.Path, err)
	}
	return nil, fmt.Errorf("%s: no strategy of %d produced a geometry: %w", f.Path, len(strategies), seisvol.ErrGeometryUnavailable)
}
