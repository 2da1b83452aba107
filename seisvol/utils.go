package seisvol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DmitriyVTitov/size"
	humanize "github.com/dustin/go-humanize"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
	Tera = 1 << 40
)

// ConvertToAbsolute returns the given path made absolute relative to the
// directory holding baseFile.  Empty and already absolute paths are returned as is.
func ConvertToAbsolute(path, baseFile string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(filepath.Dir(baseFile), path)
}

// FileStat returns size and modification time of a file, mapping a missing
// file to ErrFileNotFound.
func FileStat(path string) (int64, time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, time.Time{}, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return 0, time.Time{}, fmt.Errorf("stat %s: %v: %w", path, err, ErrIoFailure)
	}
	if fi.IsDir() {
		return 0, time.Time{}, fmt.Errorf("%s is a directory: %w", path, ErrFileNotFound)
	}
	return fi.Size(), fi.ModTime(), nil
}

// HumanBytes renders a byte count for log messages.
func HumanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// SizeOf estimates the in-memory footprint of v for debug logging.
func SizeOf(v interface{}) string {
	return HumanBytes(int64(size.Of(v)))
}
