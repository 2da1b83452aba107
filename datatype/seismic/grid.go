package seismic

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Sorting is the order in which traces are stored.
type Sorting uint8

const (
	// InlineSorted files store each inline contiguously, crossline varying fastest.
	InlineSorted Sorting = iota

	// CrosslineSorted files store each crossline contiguously, inline varying fastest.
	CrosslineSorted
)

func (s Sorting) String() string {
	switch s {
	case InlineSorted:
		return "inline"
	case CrosslineSorted:
		return "crossline"
	default:
		return fmt.Sprintf("sorting %d", uint8(s))
	}
}

// Grid is the resolved inline/crossline geometry of a volume.  It is
// immutable once built.
type Grid struct {
	InlineValues    []int   `json:"inline_values"`
	CrosslineValues []int   `json:"crossline_values"`
	InlineStep      int     `json:"inline_step"`
	CrosslineStep   int     `json:"crossline_step"`
	Sorting         Sorting `json:"sorting"`
	NumTraces       int     `json:"n_traces"`

	// Gridded is false when the geometry came from a full header scan and
	// traces cannot be addressed by cell.
	Gridded bool `json:"gridded"`

	// Irregular is set when the spacing along either axis is not uniform.
	Irregular bool `json:"irregular"`

	// Strategy names the geometry strategy that produced the grid.
	Strategy string `json:"strategy"`

	// Line values in file order, used to compute trace indices.
	InlineOrder    []int `json:"inline_order,omitempty"`
	CrosslineOrder []int `json:"crossline_order,omitempty"`

	inlinePos    map[int]int
	crosslinePos map[int]int
}

// newGrid builds a gridded geometry from the file-order line values.
func newGrid(strategy string, sorting Sorting, inlineOrder, crosslineOrder []int) *Grid {
	g := &Grid{
		InlineValues:    sortedCopy(inlineOrder),
		CrosslineValues: sortedCopy(crosslineOrder),
		Sorting:         sorting,
		NumTraces:       len(inlineOrder) * len(crosslineOrder),
		Gridded:         true,
		Strategy:        strategy,
		InlineOrder:     inlineOrder,
		CrosslineOrder:  crosslineOrder,
	}
	g.finish()
	return g
}

// newScannedGrid builds an ungridded geometry from distinct axis values.
func newScannedGrid(strategy string, inlines, crosslines []int, numTraces int) *Grid {
	g := &Grid{
		InlineValues:    sortedCopy(inlines),
		CrosslineValues: sortedCopy(crosslines),
		NumTraces:       numTraces,
		Strategy:        strategy,
	}
	g.finish()
	return g
}

func (g *Grid) finish() {
	g.InlineStep = firstPairStep(g.InlineValues)
	g.CrosslineStep = firstPairStep(g.CrosslineValues)
	g.Irregular = !uniformSpacing(g.InlineValues) || !uniformSpacing(g.CrosslineValues)
	g.index()
}

// index builds the value to file position lookups.  It is also needed after
// a grid is decoded from the cache.
func (g *Grid) index() {
	if !g.Gridded {
		return
	}
	g.inlinePos = make(map[int]int, len(g.InlineOrder))
	for i, v := range g.InlineOrder {
		g.inlinePos[v] = i
	}
	g.crosslinePos = make(map[int]int, len(g.CrosslineOrder))
	for i, v := range g.CrosslineOrder {
		g.crosslinePos[v] = i
	}
}

func sortedCopy(values []int) []int {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	return sorted
}

// firstPairStep is the delta of the first two values, or 1 with fewer values.
func firstPairStep(values []int) int {
	if len(values) < 2 {
		return 1
	}
	return values[1] - values[0]
}

// uniformSpacing reports whether all consecutive deltas of sorted values match.
func uniformSpacing(values []int) bool {
	if len(values) < 3 {
		return true
	}
	deltas := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		deltas[i-1] = float64(values[i] - values[i-1])
	}
	return floats.Min(deltas) == floats.Max(deltas)
}

func (g *Grid) NumInlines() int    { return len(g.InlineValues) }
func (g *Grid) NumCrosslines() int { return len(g.CrosslineValues) }

func (g *Grid) InlineMin() int    { return first(g.InlineValues) }
func (g *Grid) InlineMax() int    { return last(g.InlineValues) }
func (g *Grid) CrosslineMin() int { return first(g.CrosslineValues) }
func (g *Grid) CrosslineMax() int { return last(g.CrosslineValues) }

func first(values []int) int {
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

func last(values []int) int {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// HasInline returns true if the value is a member of the inline axis.
func (g *Grid) HasInline(il int) bool {
	return contains(g.InlineValues, il)
}

// HasCrossline returns true if the value is a member of the crossline axis.
func (g *Grid) HasCrossline(xl int) bool {
	return contains(g.CrosslineValues, xl)
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

// TraceIndex returns the file position of the trace at cell (il, xl).
func (g *Grid) TraceIndex(il, xl int) (int, bool) {
	if !g.Gridded {
		return 0, false
	}
	ip, found := g.inlinePos[il]
	if !found {
		return 0, false
	}
	xp, found := g.crosslinePos[xl]
	if !found {
		return 0, false
	}
	if g.Sorting == InlineSorted {
		return ip*len(g.CrosslineOrder) + xp, true
	}
	return xp*len(g.InlineOrder) + ip, true
}
