package seismic

import (
	"context"
	"fmt"

	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
)

// GeometryStrategy derives a Grid from an open file.  A strategy that cannot
// make sense of the file returns an error matching seisvol.ErrGeometryUnavailable
// so the next strategy is tried; any other error aborts resolution.
type GeometryStrategy interface {
	Name() string
	Resolve(ctx context.Context, f *segy.File) (*Grid, error)
}

// FieldStrategy reads the line numbers of each trace from a pair of header
// fields and accepts the file when they form a complete rectangular grid
// stored in line order.
type FieldStrategy struct {
	Label          string
	InlineField    segy.TraceField
	CrosslineField segy.TraceField
}

var (
	// StandardField uses the SEG-Y rev1 3-D line fields.
	StandardField = FieldStrategy{"standard", segy.Inline3D, segy.Crossline3D}

	// FallbackField takes the crossline from the CDP ensemble number, as many
	// processing tools write it.
	FallbackField = FieldStrategy{"cdp", segy.Inline3D, segy.CDP}
)

// DefaultStrategies is the order in which geometry is attempted on import.
var DefaultStrategies = []GeometryStrategy{
	StandardField,
	FallbackField,
	FullScan{Label: "scan", InlineField: segy.Inline3D, CrosslineField: segy.CDP},
}

func (s FieldStrategy) Name() string {
	return s.Label
}

// checkEvery is how many traces are read between context checks.
const checkEvery = 4096

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), seisvol.ErrGeometryUnavailable)
}

func (s FieldStrategy) lines(f *segy.File, i int) (il, xl int, err error) {
	h, err := f.Header(i)
	if err != nil {
		return 0, 0, err
	}
	return h.Value(s.InlineField), h.Value(s.CrosslineField), nil
}

// Resolve detects the sort order from the first two traces, finds the run
// length of the fast axis, and verifies that the runs tile the whole file.
func (s FieldStrategy) Resolve(ctx context.Context, f *segy.File) (*Grid, error) {
	if !s.InlineField.Valid() || !s.CrosslineField.Valid() {
		return nil, unavailable("%s: invalid fields %d, %d", s.Label, s.InlineField, s.CrosslineField)
	}
	n := f.NumTraces()
	if n == 0 {
		return nil, fmt.Errorf("no traces: %w", seisvol.ErrCorruptOrEmptyVolume)
	}
	il0, xl0, err := s.lines(f, 0)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return newGrid(s.Label, InlineSorted, []int{il0}, []int{xl0}), nil
	}
	il1, xl1, err := s.lines(f, 1)
	if err != nil {
		return nil, err
	}

	// slow(i) and fast(i) pick the line value that changes slowly or quickly.
	var sorting Sorting
	switch {
	case il0 == il1 && xl0 != xl1:
		sorting = InlineSorted
	case xl0 == xl1 && il0 != il1:
		sorting = CrosslineSorted
	default:
		return nil, unavailable("%s: traces 0 and 1 are (%d,%d) and (%d,%d), no sort order",
			s.Label, il0, xl0, il1, xl1)
	}
	pick := func(i int) (slow, fast int, err error) {
		il, xl, err := s.lines(f, i)
		if sorting == InlineSorted {
			return il, xl, err
		}
		return xl, il, err
	}

	slow0 := il0
	if sorting == CrosslineSorted {
		slow0 = xl0
	}
	var fastOrder []int
	seenFast := make(map[int]struct{})
	for i := 0; i < n; i++ {
		slow, fast, err := pick(i)
		if err != nil {
			return nil, err
		}
		if slow != slow0 {
			break
		}
		if _, dup := seenFast[fast]; dup {
			return nil, unavailable("%s: %s line %d repeats value %d", s.Label, sorting, slow0, fast)
		}
		seenFast[fast] = struct{}{}
		fastOrder = append(fastOrder, fast)
	}
	runLen := len(fastOrder)
	if n%runLen != 0 {
		return nil, unavailable("%s: %d traces not a multiple of line length %d", s.Label, n, runLen)
	}

	numSlow := n / runLen
	slowOrder := make([]int, 0, numSlow)
	seenSlow := make(map[int]struct{}, numSlow)
	for k := 0; k < numSlow; k++ {
		if k%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		slow, fast, err := pick(k * runLen)
		if err != nil {
			return nil, err
		}
		if _, dup := seenSlow[slow]; dup {
			return nil, unavailable("%s: %s line %d appears twice", s.Label, sorting, slow)
		}
		if fast != fastOrder[0] {
			return nil, unavailable("%s: %s line %d starts at %d, expected %d", s.Label, sorting, slow, fast, fastOrder[0])
		}
		seenSlow[slow] = struct{}{}
		slowOrder = append(slowOrder, slow)
	}

	slowLast, fastLast, err := pick(n - 1)
	if err != nil {
		return nil, err
	}
	if slowLast != slowOrder[numSlow-1] || fastLast != fastOrder[runLen-1] {
		return nil, unavailable("%s: last trace (%d,%d) does not close the grid", s.Label, slowLast, fastLast)
	}

	if sorting == InlineSorted {
		return newGrid(s.Label, sorting, slowOrder, fastOrder), nil
	}
	return newGrid(s.Label, sorting, fastOrder, slowOrder), nil
}
