package seismic

import (
	"context"
	"fmt"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
)

// FullScan reads the line fields of every trace and reports the distinct
// values along each axis.  It never fails on layout, so it is the last
// strategy tried, but its grid is not addressable by cell.
type FullScan struct {
	Label          string
	InlineField    segy.TraceField
	CrosslineField segy.TraceField
}

func (s FullScan) Name() string {
	return s.Label
}

func (s FullScan) Resolve(ctx context.Context, f *segy.File) (*Grid, error) {
	n := f.NumTraces()
	if n == 0 {
		return nil, fmt.Errorf("%s: no traces to scan: %w", f.Path, seisvol.ErrCorruptOrEmptyVolume)
	}
	timedLog := seisvol.NewTimeLog()
	inlineSet := make(map[int]struct{})
	crosslineSet := make(map[int]struct{})
	for i := 0; i < n; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		h, err := f.Header(i)
		if err != nil {
			return nil, err
		}
		inlineSet[h.Value(s.InlineField)] = struct{}{}
		crosslineSet[h.Value(s.CrosslineField)] = struct{}{}
	}
	g := newScannedGrid(s.Label, keys(inlineSet), keys(crosslineSet), n)
	timedLog.Debugf("%s: scanned %d trace headers, %d inlines x %d crosslines",
		f.Path, n, g.NumInlines(), g.NumCrosslines())
	return g, nil
}

func keys(set map[int]struct{}) []int {
	values := make([]int, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	return values
}
