package seismic

import (
	"github.com/openseis/seisvol/segy"
)

// HeaderPreviewTraces is the number of trace headers included in a summary.
const HeaderPreviewTraces = 5

// previewFields are the trace header fields shown for each previewed trace.
var previewFields = []segy.TraceField{
	segy.Inline3D,
	segy.Crossline3D,
	segy.CDPX,
	segy.CDPY,
	segy.TraceSampleCount,
	segy.SourceX,
	segy.SourceY,
}

// HeaderSummary is a browseable view of a file's headers.
type HeaderSummary struct {
	FilePath     string           `json:"file_path"`
	TextHeader   string           `json:"textual_header"`
	BinaryHeader map[string]int   `json:"binary_header"`
	TraceHeaders []map[string]int `json:"trace_headers"`
	TotalTraces  int              `json:"total_traces"`
}

// Headers summarizes the text, binary and leading trace headers of a file.
func Headers(f *segy.File) (*HeaderSummary, error) {
	n := f.NumTraces()
	if n > HeaderPreviewTraces {
		n = HeaderPreviewTraces
	}
	summary := &HeaderSummary{
		FilePath:     f.Path,
		TextHeader:   f.Text,
		BinaryHeader: f.Binary.Fields(),
		TraceHeaders: make([]map[string]int, 0, n),
		TotalTraces:  f.NumTraces(),
	}
	for i := 0; i < n; i++ {
		h, err := f.Header(i)
		if err != nil {
			return nil, err
		}
		fields := make(map[string]int, len(previewFields))
		for _, field := range previewFields {
			fields[field.String()] = h.Value(field)
		}
		summary.TraceHeaders = append(summary.TraceHeaders, fields)
	}
	return summary, nil
}
