package seismic

import (
	"fmt"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
)

// Corner is one corner of a survey footprint.
type Corner struct {
	Inline    int     `json:"inline"`
	Crossline int     `json:"crossline"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Outline returns the four corners of the grid in the order (first, first),
// (first, last), (last, last), (last, first).  A corner whose trace cannot be
// read is reported at (0, 0).
func Outline(f *segy.File, g *Grid) ([]Corner, error) {
	if !g.Gridded || g.NumInlines() == 0 || g.NumCrosslines() == 0 {
		return nil, fmt.Errorf("%s has no regular grid, outline unavailable: %w", f.Path, seisvol.ErrGeometryUnavailable)
	}
	ilFirst, ilLast := g.InlineMin(), g.InlineMax()
	xlFirst, xlLast := g.CrosslineMin(), g.CrosslineMax()
	corners := []Corner{
		{Inline: ilFirst, Crossline: xlFirst},
		{Inline: ilFirst, Crossline: xlLast},
		{Inline: ilLast, Crossline: xlLast},
		{Inline: ilLast, Crossline: xlFirst},
	}
	for i := range corners {
		c := &corners[i]
		p, err := cellLocation(f, g, c.Inline, c.Crossline)
		if err != nil {
			seisvol.Debugf("%s: outline corner (%d, %d): %v\n", f.Path, c.Inline, c.Crossline, err)
			continue
		}
		c.X, c.Y = p.X, p.Y
	}
	return corners, nil
}
