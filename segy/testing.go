/*
	This file contains functions useful for testing packages that read SEG-Y files.
	They are exported so test files in other packages can build fixtures.
*/

package segy

import "math"

// SyntheticGrid describes a regular 3-D volume to write as a SEG-Y file.
type SyntheticGrid struct {
	Inlines    []int
	Crosslines []int
	NumSamples int
	Interval   uint16 // microseconds, 0 leaves the binary header field unset
	Delay      int    // delay recording time in ms
	Format     Format // IEEEFloat32 when zero

	// CrosslineSorted writes traces with inline varying fastest instead of
	// the usual crossline-fastest order.
	CrosslineSorted bool

	// OmitStandardCrossline leaves CROSSLINE_3D zero so only CDP carries the
	// crossline number.
	OmitStandardCrossline bool

	// World coordinates of the first cell and per-step vectors along each axis.
	OriginX, OriginY         float64
	InlineDX, InlineDY       float64
	CrosslineDX, CrosslineDY float64
	Scalar                   int

	// Sample returns the amplitude of sample s of trace (il, xl).  When nil,
	// a deterministic ramp is written.
	Sample func(il, xl, s int) float32
}

// DefaultSample is the amplitude written when SyntheticGrid.Sample is nil.
func DefaultSample(il, xl, s int) float32 {
	return float32(il*1000 + xl + s)
}

// rawCoordinate inverts the coordinate scalar convention.
func rawCoordinate(v float64, scalar int) int {
	switch {
	case scalar < 0:
		return int(math.Round(v * math.Abs(float64(scalar))))
	case scalar > 0:
		return int(math.Round(v / float64(scalar)))
	default:
		return int(math.Round(v))
	}
}

// Traces returns the traces of the grid in file order.
func (g SyntheticGrid) Traces() []Trace {
	sample := g.Sample
	if sample == nil {
		sample = DefaultSample
	}
	traces := make([]Trace, 0, len(g.Inlines)*len(g.Crosslines))
	add := func(i, j int) {
		il, xl := g.Inlines[i], g.Crosslines[j]
		h := NewTraceHeader()
		seq := len(traces) + 1
		h.Set(TraceSequenceLine, seq)
		h.Set(TraceSequenceFile, seq)
		h.Set(Inline3D, il)
		if !g.OmitStandardCrossline {
			h.Set(Crossline3D, xl)
		}
		h.Set(CDP, xl)
		h.Set(TraceSampleCount, g.NumSamples)
		h.Set(TraceSampleInterval, int(g.Interval))
		h.Set(DelayRecordingTime, g.Delay)
		h.Set(SourceGroupScalar, g.Scalar)
		x := g.OriginX + float64(i)*g.InlineDX + float64(j)*g.CrosslineDX
		y := g.OriginY + float64(i)*g.InlineDY + float64(j)*g.CrosslineDY
		h.Set(CDPX, rawCoordinate(x, g.Scalar))
		h.Set(CDPY, rawCoordinate(y, g.Scalar))
		h.Set(SourceX, rawCoordinate(x, g.Scalar))
		h.Set(SourceY, rawCoordinate(y, g.Scalar))
		samples := make([]float32, g.NumSamples)
		for s := range samples {
			samples[s] = sample(il, xl, s)
		}
		traces = append(traces, Trace{Header: h, Samples: samples})
	}
	if g.CrosslineSorted {
		for j := range g.Crosslines {
			for i := range g.Inlines {
				add(i, j)
			}
		}
	} else {
		for i := range g.Inlines {
			for j := range g.Crosslines {
				add(i, j)
			}
		}
	}
	return traces
}

// BinaryHeader returns the binary header describing the grid.
func (g SyntheticGrid) BinaryHeader() BinaryHeader {
	format := g.Format
	if format == 0 {
		format = IEEEFloat32
	}
	sorting := int16(2)
	if g.CrosslineSorted {
		sorting = 3
	}
	return BinaryHeader{
		JobID:             1,
		TracesPerEnsemble: int16(len(g.Crosslines)),
		SampleInterval:    g.Interval,
		SamplesPerTrace:   uint16(g.NumSamples),
		Format:            format,
		SortingCode:       sorting,
		MeasurementSystem: 1,
		Revision:          0x0100,
		FixedLength:       1,
	}
}

// WriteSynthetic writes the grid as a SEG-Y file at path.
func WriteSynthetic(path string, g SyntheticGrid) error {
	text := "C 1 SYNTHETIC SEISMIC VOLUME\nC 2 INLINE BYTE 189 CROSSLINE BYTE 193\nC40 END TEXTUAL HEADER"
	return WriteFile(path, text, g.BinaryHeader(), g.Traces())
}

// Range returns n values start, start+step, ...
func Range(start, n, step int) []int {
	values := make([]int, n)
	for i := range values {
		values[i] = start + i*step
	}
	return values
}
