package segy

import (
	"encoding/binary"
	"fmt"
)

// BinaryHeader holds the named fields of the 400-byte binary file header
// that are needed to lay out and describe the traces.
type BinaryHeader struct {
	JobID                   int32
	LineNumber              int32
	ReelNumber              int32
	TracesPerEnsemble       int16
	AuxTracesPerEnsemble    int16
	SampleInterval          uint16 // microseconds
	SampleIntervalOriginal  uint16
	SamplesPerTrace         uint16
	SamplesPerTraceOriginal uint16
	Format                  Format
	EnsembleFold            int16
	SortingCode             int16
	MeasurementSystem       int16
	Revision                uint16
	FixedLength             int16
	ExtendedHeaders         int16
}

// Byte offsets relative to the start of the binary header.
const (
	binJobID             = 0
	binLineNumber        = 4
	binReelNumber        = 8
	binTracesPerEnsemble = 12
	binAuxTraces         = 14
	binSampleInterval    = 16
	binIntervalOriginal  = 18
	binSamplesPerTrace   = 20
	binSamplesOriginal   = 22
	binFormat            = 24
	binEnsembleFold      = 26
	binSortingCode       = 28
	binMeasurementSystem = 54
	binRevision          = 300
	binFixedLength       = 302
	binExtendedHeaders   = 304
)

// ParseBinaryHeader decodes the 400-byte big-endian binary header.
func ParseBinaryHeader(b []byte) (BinaryHeader, error) {
	if len(b) < BinaryHeaderSize {
		return BinaryHeader{}, fmt.Errorf("binary header needs %d bytes, got %d", BinaryHeaderSize, len(b))
	}
	be := binary.BigEndian
	i16 := func(off int) int16 { return int16(be.Uint16(b[off:])) }
	return BinaryHeader{
		JobID:                   int32(be.Uint32(b[binJobID:])),
		LineNumber:              int32(be.Uint32(b[binLineNumber:])),
		ReelNumber:              int32(be.Uint32(b[binReelNumber:])),
		TracesPerEnsemble:       i16(binTracesPerEnsemble),
		AuxTracesPerEnsemble:    i16(binAuxTraces),
		SampleInterval:          be.Uint16(b[binSampleInterval:]),
		SampleIntervalOriginal:  be.Uint16(b[binIntervalOriginal:]),
		SamplesPerTrace:         be.Uint16(b[binSamplesPerTrace:]),
		SamplesPerTraceOriginal: be.Uint16(b[binSamplesOriginal:]),
		Format:                  Format(i16(binFormat)),
		EnsembleFold:            i16(binEnsembleFold),
		SortingCode:             i16(binSortingCode),
		MeasurementSystem:       i16(binMeasurementSystem),
		Revision:                be.Uint16(b[binRevision:]),
		FixedLength:             i16(binFixedLength),
		ExtendedHeaders:         i16(binExtendedHeaders),
	}, nil
}

// Bytes encodes the header into its 400-byte on-disk form.
func (bh BinaryHeader) Bytes() []byte {
	b := make([]byte, BinaryHeaderSize)
	be := binary.BigEndian
	be.PutUint32(b[binJobID:], uint32(bh.JobID))
	be.PutUint32(b[binLineNumber:], uint32(bh.LineNumber))
	be.PutUint32(b[binReelNumber:], uint32(bh.ReelNumber))
	be.PutUint16(b[binTracesPerEnsemble:], uint16(bh.TracesPerEnsemble))
	be.PutUint16(b[binAuxTraces:], uint16(bh.AuxTracesPerEnsemble))
	be.PutUint16(b[binSampleInterval:], bh.SampleInterval)
	be.PutUint16(b[binIntervalOriginal:], bh.SampleIntervalOriginal)
	be.PutUint16(b[binSamplesPerTrace:], bh.SamplesPerTrace)
	be.PutUint16(b[binSamplesOriginal:], bh.SamplesPerTraceOriginal)
	be.PutUint16(b[binFormat:], uint16(bh.Format))
	be.PutUint16(b[binEnsembleFold:], uint16(bh.EnsembleFold))
	be.PutUint16(b[binSortingCode:], uint16(bh.SortingCode))
	be.PutUint16(b[binMeasurementSystem:], uint16(bh.MeasurementSystem))
	be.PutUint16(b[binRevision:], bh.Revision)
	be.PutUint16(b[binFixedLength:], uint16(bh.FixedLength))
	be.PutUint16(b[binExtendedHeaders:], uint16(bh.ExtendedHeaders))
	return b
}

// Fields returns the header as name/value pairs for display.
func (bh BinaryHeader) Fields() map[string]int {
	return map[string]int{
		"JobID":                int(bh.JobID),
		"LineNumber":           int(bh.LineNumber),
		"ReelNumber":           int(bh.ReelNumber),
		"TracesPerEnsemble":    int(bh.TracesPerEnsemble),
		"AuxTracesPerEnsemble": int(bh.AuxTracesPerEnsemble),
		"Interval":             int(bh.SampleInterval),
		"IntervalOriginal":     int(bh.SampleIntervalOriginal),
		"Samples":              int(bh.SamplesPerTrace),
		"SamplesOriginal":      int(bh.SamplesPerTraceOriginal),
		"Format":               int(bh.Format),
		"EnsembleFold":         int(bh.EnsembleFold),
		"SortingCode":          int(bh.SortingCode),
		"MeasurementSystem":    int(bh.MeasurementSystem),
		"SEGYRevision":         int(bh.Revision),
		"TraceFlag":            int(bh.FixedLength),
		"ExtendedHeaders":      int(bh.ExtendedHeaders),
	}
}
