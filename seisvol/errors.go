package seisvol

import (
	"errors"
	"fmt"
)

// Error kinds shared by the trace reader, geometry resolution, section access
// and persistence.  Callers wrap them with %w and test with errors.Is.
var (
	ErrFileNotFound         = errors.New("file not found")
	ErrGeometryUnavailable  = errors.New("geometry unavailable")
	ErrCorruptOrEmptyVolume = errors.New("corrupt or empty volume")
	ErrLineNotFound         = errors.New("line not found")
	ErrConflict             = errors.New("name already exists")
	ErrIoFailure            = errors.New("i/o failure")
	ErrIrregularGeometry    = errors.New("irregular geometry")
	ErrBadRequest           = errors.New("bad request")
	ErrVolumeNotFound       = errors.New("volume not found")
	ErrSurveyNotFound       = errors.New("survey not found")
)

// LineNotFoundError is returned when a requested line value is not a member of
// the resolved axis.  It carries the valid range of that axis.
type LineNotFoundError struct {
	Direction string
	Index     int
	Min, Max  int
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found, valid range is [%d, %d]", e.Direction, e.Index, e.Min, e.Max)
}

// Is lets errors.Is(err, ErrLineNotFound) match.
func (e *LineNotFoundError) Is(target error) bool {
	return target == ErrLineNotFound
}
