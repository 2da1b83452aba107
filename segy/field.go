package segy

import "fmt"

// TraceField identifies a trace header field by its 1-based byte position
// within the 240-byte trace header, as listed in the SEG-Y standard.
type TraceField int

const (
	TraceSequenceLine       TraceField = 1
	TraceSequenceFile       TraceField = 5
	FieldRecord             TraceField = 9
	TraceNumber             TraceField = 13
	EnergySourcePoint       TraceField = 17
	CDP                     TraceField = 21
	CDPTrace                TraceField = 25
	TraceIdentificationCode TraceField = 29
	Offset                  TraceField = 37
	SourceGroupScalar       TraceField = 71
	SourceX                 TraceField = 73
	SourceY                 TraceField = 77
	GroupX                  TraceField = 81
	GroupY                  TraceField = 85
	CoordinateUnits         TraceField = 89
	DelayRecordingTime      TraceField = 109
	TraceSampleCount        TraceField = 115
	TraceSampleInterval     TraceField = 117
	CDPX                    TraceField = 181
	CDPY                    TraceField = 185
	Inline3D                TraceField = 189
	Crossline3D             TraceField = 193
	ShotPoint               TraceField = 197
	ShotPointScalar         TraceField = 201
)

type fieldInfo struct {
	name     string
	size     int
	unsigned bool
}

var fields = map[TraceField]fieldInfo{
	TraceSequenceLine:       {"TRACE_SEQUENCE_LINE", 4, false},
	TraceSequenceFile:       {"TRACE_SEQUENCE_FILE", 4, false},
	FieldRecord:             {"FieldRecord", 4, false},
	TraceNumber:             {"TraceNumber", 4, false},
	EnergySourcePoint:       {"EnergySourcePoint", 4, false},
	CDP:                     {"CDP", 4, false},
	CDPTrace:                {"CDP_TRACE", 4, false},
	TraceIdentificationCode: {"TraceIdentificationCode", 2, false},
	Offset:                  {"offset", 4, false},
	SourceGroupScalar:       {"SourceGroupScalar", 2, false},
	SourceX:                 {"SourceX", 4, false},
	SourceY:                 {"SourceY", 4, false},
	GroupX:                  {"GroupX", 4, false},
	GroupY:                  {"GroupY", 4, false},
	CoordinateUnits:         {"CoordinateUnits", 2, false},
	DelayRecordingTime:      {"DelayRecordingTime", 2, false},
	TraceSampleCount:        {"TRACE_SAMPLE_COUNT", 2, true},
	TraceSampleInterval:     {"TRACE_SAMPLE_INTERVAL", 2, true},
	CDPX:                    {"CDP_X", 4, false},
	CDPY:                    {"CDP_Y", 4, false},
	Inline3D:                {"INLINE_3D", 4, false},
	Crossline3D:             {"CROSSLINE_3D", 4, false},
	ShotPoint:               {"ShotPoint", 4, false},
	ShotPointScalar:         {"ShotPointScalar", 2, false},
}

// Size returns the width of the field in bytes.  Fields not in the standard
// table are read as 4-byte signed integers.
func (f TraceField) Size() int {
	if info, found := fields[f]; found {
		return info.size
	}
	return 4
}

func (f TraceField) String() string {
	if info, found := fields[f]; found {
		return info.name
	}
	return fmt.Sprintf("byte %d", int(f))
}

// Valid returns true if the field lies within a trace header.
func (f TraceField) Valid() bool {
	return f >= 1 && int(f)-1+f.Size() <= TraceHeaderSize
}

// FieldByName returns the field for a standard name such as "INLINE_3D".
func FieldByName(name string) (TraceField, bool) {
	for f, info := range fields {
		if info.name == name {
			return f, true
		}
	}
	return 0, false
}
