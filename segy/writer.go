package segy

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Writer emits a SEG-Y stream: textual and binary headers followed by traces.
type Writer struct {
	w      *bufio.Writer
	format Format
	buf    []byte
	count  int
}

// NewWriter writes the file headers and returns a Writer for traces of
// bh.SamplesPerTrace samples in bh.Format.
func NewWriter(w io.Writer, text string, bh BinaryHeader) (*Writer, error) {
	if bh.Format.BytesPerSample() == 0 {
		return nil, fmt.Errorf("cannot write %s", bh.Format)
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(EncodeTextHeader(text)); err != nil {
		return nil, err
	}
	if _, err := bw.Write(bh.Bytes()); err != nil {
		return nil, err
	}
	return &Writer{
		w:      bw,
		format: bh.Format,
	}, nil
}

// WriteTrace appends one trace.  The number of samples written is taken from
// len(samples), so variable-length traces are possible when the header's
// sample count is set to match.
func (sw *Writer) WriteTrace(h TraceHeader, samples []float32) error {
	if len(h) != TraceHeaderSize {
		return fmt.Errorf("trace header has %d bytes, expected %d", len(h), TraceHeaderSize)
	}
	if _, err := sw.w.Write(h); err != nil {
		return err
	}
	bps := sw.format.BytesPerSample()
	n := len(samples) * bps
	if cap(sw.buf) < n {
		sw.buf = make([]byte, n)
	}
	buf := sw.buf[:n]
	for i, v := range samples {
		sw.format.encodeSample(buf[i*bps:], v)
	}
	if _, err := sw.w.Write(buf); err != nil {
		return err
	}
	sw.count++
	return nil
}

// Flush writes any buffered data.
func (sw *Writer) Flush() error {
	return sw.w.Flush()
}

// NumTraces returns the number of traces written so far.
func (sw *Writer) NumTraces() int {
	return sw.count
}

// Trace is one header plus samples for WriteFile.
type Trace struct {
	Header  TraceHeader
	Samples []float32
}

// WriteFile creates path and writes a complete SEG-Y file.
func WriteFile(path, text string, bh BinaryHeader, traces []Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	sw, err := NewWriter(f, text, bh)
	if err != nil {
		f.Close()
		return err
	}
	for i, tr := range traces {
		if err := sw.WriteTrace(tr.Header, tr.Samples); err != nil {
			f.Close()
			return fmt.Errorf("trace %d: %v", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
