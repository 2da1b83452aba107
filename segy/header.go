package segy

import (
	"encoding/binary"
	"math"
)

const (
	TextHeaderSize   = 3200
	BinaryHeaderSize = 400
	TraceHeaderSize  = 240
)

// TraceHeader is a read-only view of one trace's 240-byte header.  Views
// returned by File alias the mapped file and must not be retained past Close.
type TraceHeader []byte

// NewTraceHeader returns a zeroed, writable header.
func NewTraceHeader() TraceHeader {
	return make(TraceHeader, TraceHeaderSize)
}

func (h TraceHeader) Int32(f TraceField) int32 {
	i := int(f) - 1
	return int32(binary.BigEndian.Uint32(h[i : i+4]))
}

func (h TraceHeader) Int16(f TraceField) int16 {
	i := int(f) - 1
	return int16(binary.BigEndian.Uint16(h[i : i+2]))
}

func (h TraceHeader) Uint16(f TraceField) uint16 {
	i := int(f) - 1
	return binary.BigEndian.Uint16(h[i : i+2])
}

// Value decodes a field according to its width and signedness.
func (h TraceHeader) Value(f TraceField) int {
	if f.Size() == 2 {
		if info, found := fields[f]; found && info.unsigned {
			return int(h.Uint16(f))
		}
		return int(h.Int16(f))
	}
	return int(h.Int32(f))
}

// Set stores v into the field according to its width.
func (h TraceHeader) Set(f TraceField, v int) {
	i := int(f) - 1
	if f.Size() == 2 {
		binary.BigEndian.PutUint16(h[i:i+2], uint16(v))
		return
	}
	binary.BigEndian.PutUint32(h[i:i+4], uint32(int32(v)))
}

// ApplyScalar applies the SEG-Y coordinate scalar convention to a raw value:
// negative scalars divide by their magnitude, positive scalars multiply, and
// zero leaves the value unchanged.
func ApplyScalar(raw int, scalar int) float64 {
	v := float64(raw)
	switch {
	case scalar < 0:
		return v / math.Abs(float64(scalar))
	case scalar > 0:
		return v * float64(scalar)
	default:
		return v
	}
}

// CDPLocation returns the scaled CDP_X and CDP_Y of the trace using the
// source/group scalar at byte 71.
func (h TraceHeader) CDPLocation() (x, y float64) {
	scalar := h.Value(SourceGroupScalar)
	return ApplyScalar(h.Value(CDPX), scalar), ApplyScalar(h.Value(CDPY), scalar)
}
