package segy

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/openseis/seisvol/seisvol"
)

const (
	// DefaultSampleInterval in milliseconds when neither binary nor trace
	// headers give one.
	DefaultSampleInterval = 4.0

	dataStart = TextHeaderSize + BinaryHeaderSize
)

var endText = []byte("((SEG: EndText))")

// File is a read-only, memory-mapped SEG-Y file.  All trace headers and
// samples are read from the mapping; Close releases it.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time

	Text   string
	Binary BinaryHeader

	// NumSamples is the nominal number of samples per trace.
	NumSamples int

	f    *os.File
	data mmap.MMap

	bps        int     // bytes per sample
	traceStart int64   // offset of the first trace header
	traceLen   int64   // bytes per trace when fixed length, else 0
	offsets    []int64 // trace offsets when variable length
	counts     []int   // samples per trace when variable length
	numTraces  int
}

// Open maps the file at path and lays out its traces.  A missing file is
// ErrFileNotFound; a file without a readable header or traces is
// ErrCorruptOrEmptyVolume.
func Open(path string) (*File, error) {
	size, modTime, err := seisvol.FileStat(path)
	if err != nil {
		return nil, err
	}
	if size < dataStart {
		return nil, fmt.Errorf("%s has %d bytes, fewer than the %d header bytes: %w",
			path, size, dataStart, seisvol.ErrCorruptOrEmptyVolume)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, seisvol.ErrFileNotFound)
		}
		return nil, fmt.Errorf("open %s: %v: %w", path, err, seisvol.ErrIoFailure)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %v: %w", path, err, seisvol.ErrIoFailure)
	}
	sf := &File{
		Path:    path,
		Size:    size,
		ModTime: modTime,
		f:       f,
		data:    data,
	}
	if err := sf.layout(); err != nil {
		sf.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sf, nil
}

// Close unmaps and closes the file.  It is safe to call more than once.
func (sf *File) Close() error {
	var err error
	if sf.data != nil {
		err = sf.data.Unmap()
		sf.data = nil
	}
	if sf.f != nil {
		if cerr := sf.f.Close(); err == nil {
			err = cerr
		}
		sf.f = nil
	}
	return err
}

func (sf *File) layout() error {
	bh, err := ParseBinaryHeader(sf.data[TextHeaderSize:dataStart])
	if err != nil {
		return fmt.Errorf("%v: %w", err, seisvol.ErrCorruptOrEmptyVolume)
	}
	sf.Binary = bh
	sf.Text = DecodeTextHeader(sf.data[:TextHeaderSize])

	sf.bps = bh.Format.BytesPerSample()
	if sf.bps == 0 {
		return fmt.Errorf("%s: %w", bh.Format, seisvol.ErrCorruptOrEmptyVolume)
	}
	sf.traceStart, err = sf.skipExtendedHeaders()
	if err != nil {
		return err
	}
	if sf.traceStart+TraceHeaderSize > sf.Size {
		return fmt.Errorf("no traces after headers: %w", seisvol.ErrCorruptOrEmptyVolume)
	}

	sf.NumSamples = int(bh.SamplesPerTrace)
	if sf.NumSamples == 0 {
		sf.NumSamples = TraceHeader(sf.data[sf.traceStart:]).Value(TraceSampleCount)
	}
	if sf.NumSamples == 0 {
		return fmt.Errorf("zero samples per trace: %w", seisvol.ErrCorruptOrEmptyVolume)
	}

	traceData := sf.Size - sf.traceStart
	traceLen := int64(TraceHeaderSize + sf.NumSamples*sf.bps)
	if traceData%traceLen == 0 && sf.nominalLength(traceLen) {
		sf.traceLen = traceLen
		sf.numTraces = int(traceData / traceLen)
		return nil
	}
	return sf.walkTraces()
}

// nominalLength returns true if the traces can be laid out at a fixed
// stride of traceLen bytes.  Either the binary header declares fixed length
// traces or both the first and last trace carry the nominal sample count.
func (sf *File) nominalLength(traceLen int64) bool {
	if sf.Binary.FixedLength != 0 {
		return true
	}
	nominal := func(pos int64) bool {
		ns := TraceHeader(sf.data[pos:]).Value(TraceSampleCount)
		return ns == 0 || ns == sf.NumSamples
	}
	return nominal(sf.traceStart) && nominal(sf.Size-traceLen)
}

// skipExtendedHeaders returns the offset just past any extended textual
// headers.  A negative count means the headers end with an EndText stanza.
func (sf *File) skipExtendedHeaders() (int64, error) {
	n := int(sf.Binary.ExtendedHeaders)
	if n >= 0 {
		start := int64(dataStart) + int64(n)*TextHeaderSize
		if start > sf.Size {
			return 0, fmt.Errorf("%d extended headers exceed file: %w", n, seisvol.ErrCorruptOrEmptyVolume)
		}
		return start, nil
	}
	for pos := int64(dataStart); pos+TextHeaderSize <= sf.Size; pos += TextHeaderSize {
		block := sf.data[pos : pos+TextHeaderSize]
		if isEBCDIC(block) {
			if decoded, err := DecodeEBCDIC(block); err == nil {
				block = decoded
			}
		}
		if bytes.Contains(block, endText) {
			return pos + TextHeaderSize, nil
		}
	}
	return 0, fmt.Errorf("unterminated extended textual headers: %w", seisvol.ErrCorruptOrEmptyVolume)
}

// walkTraces builds the offset table for variable-length traces from each
// trace's sample count.  The walk must end exactly at end of file.
func (sf *File) walkTraces() error {
	pos := sf.traceStart
	for pos+TraceHeaderSize <= sf.Size {
		ns := TraceHeader(sf.data[pos:]).Value(TraceSampleCount)
		if ns == 0 {
			ns = sf.NumSamples
		}
		sf.offsets = append(sf.offsets, pos)
		sf.counts = append(sf.counts, ns)
		pos += int64(TraceHeaderSize + ns*sf.bps)
	}
	if pos != sf.Size {
		return fmt.Errorf("trace walk ended at byte %d of %d: %w", pos, sf.Size, seisvol.ErrCorruptOrEmptyVolume)
	}
	sf.numTraces = len(sf.offsets)
	seisvol.Debugf("%s has %d variable length traces\n", sf.Path, sf.numTraces)
	return nil
}

// NumTraces returns the number of traces in the file.
func (sf *File) NumTraces() int {
	return sf.numTraces
}

// Format returns the sample format code.
func (sf *File) Format() Format {
	return sf.Binary.Format
}

// FixedLength returns true if all traces have the nominal sample count.
func (sf *File) FixedLength() bool {
	return sf.traceLen != 0
}

func (sf *File) traceOffset(i int) (int64, int, error) {
	if sf.data == nil {
		return 0, 0, fmt.Errorf("%s is closed: %w", sf.Path, seisvol.ErrIoFailure)
	}
	if i < 0 || i >= sf.numTraces {
		return 0, 0, fmt.Errorf("trace %d outside [0, %d): %w", i, sf.numTraces, seisvol.ErrIoFailure)
	}
	if sf.traceLen != 0 {
		return sf.traceStart + int64(i)*sf.traceLen, sf.NumSamples, nil
	}
	return sf.offsets[i], sf.counts[i], nil
}

// Header returns a view of the i-th trace header.
func (sf *File) Header(i int) (TraceHeader, error) {
	off, _, err := sf.traceOffset(i)
	if err != nil {
		return nil, err
	}
	return TraceHeader(sf.data[off : off+TraceHeaderSize]), nil
}

// Samples decodes the i-th trace into dst, reusing its storage when large
// enough.  The result always has NumSamples values; shorter variable-length
// traces are zero padded and longer ones truncated.
func (sf *File) Samples(i int, dst []float32) ([]float32, error) {
	off, ns, err := sf.traceOffset(i)
	if err != nil {
		return nil, err
	}
	if cap(dst) < sf.NumSamples {
		dst = make([]float32, sf.NumSamples)
	}
	dst = dst[:sf.NumSamples]
	n := ns
	if n > sf.NumSamples {
		n = sf.NumSamples
	}
	start := off + TraceHeaderSize
	sf.Format().decodeSamples(sf.data[start:start+int64(n*sf.bps)], dst[:n])
	for j := n; j < len(dst); j++ {
		dst[j] = 0
	}
	return dst, nil
}

// SampleInterval returns the sample interval in milliseconds, falling back
// from the binary header to the first trace header and then to 4 ms.
func (sf *File) SampleInterval() float64 {
	if sf.Binary.SampleInterval != 0 {
		return float64(sf.Binary.SampleInterval) / 1000.0
	}
	if h, err := sf.Header(0); err == nil {
		if dt := h.Value(TraceSampleInterval); dt != 0 {
			return float64(dt) / 1000.0
		}
	}
	return DefaultSampleInterval
}

// SampleTimes returns the sample axis t0 + i*dt in milliseconds, where t0 is
// the delay recording time of the first trace.
func (sf *File) SampleTimes() []float64 {
	var t0 float64
	if h, err := sf.Header(0); err == nil {
		t0 = float64(h.Value(DelayRecordingTime))
	}
	dt := sf.SampleInterval()
	times := make([]float64, sf.NumSamples)
	for i := range times {
		times[i] = t0 + float64(i)*dt
	}
	return times
}
