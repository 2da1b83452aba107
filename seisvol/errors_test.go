package seisvol

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLineNotFoundError(t *testing.T) {
	var err error = &LineNotFoundError{Direction: "inline", Index: 9999, Min: 100, Max: 500}
	wrapped := fmt.Errorf("section: %w", err)
	if !errors.Is(wrapped, ErrLineNotFound) {
		t.Fatalf("expected wrapped error to match ErrLineNotFound\n")
	}
	var lnf *LineNotFoundError
	if !errors.As(wrapped, &lnf) {
		t.Fatalf("expected errors.As to find LineNotFoundError\n")
	}
	if lnf.Min != 100 || lnf.Max != 500 {
		t.Errorf("bad range in error: %v\n", lnf)
	}
	if !strings.Contains(err.Error(), "[100, 500]") {
		t.Errorf("message should name valid range: %s\n", err)
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Errorf("line error should not match conflict\n")
	}
}

func TestFileStat(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := FileStat(filepath.Join(dir, "missing.sgy")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v\n", err)
	}
	if _, _, err := FileStat(dir); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound for directory, got %v\n", err)
	}
	path := filepath.Join(dir, "x.sgy")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatalf("can't write file: %v\n", err)
	}
	size, _, err := FileStat(path)
	if err != nil || size != 3 {
		t.Errorf("expected size 3, got %d (%v)\n", size, err)
	}
}

func TestConvertToAbsolute(t *testing.T) {
	if got := ConvertToAbsolute("data/db", "/etc/seisvol/config.toml"); got != "/etc/seisvol/data/db" {
		t.Errorf("bad relative conversion: %s\n", got)
	}
	if got := ConvertToAbsolute("/var/db", "/etc/seisvol/config.toml"); got != "/var/db" {
		t.Errorf("absolute path should be unchanged: %s\n", got)
	}
	if got := ConvertToAbsolute("", "/etc/seisvol/config.toml"); got != "" {
		t.Errorf("empty path should stay empty: %s\n", got)
	}
}

func TestConfig(t *testing.T) {
	c := NewConfig()
	c.Set("Path", "/tmp/db")
	c.Set("inmemory", true)
	c.Set("ValueThreshold", int64(1024))

	if s, found, err := c.GetString("path"); err != nil || !found || s != "/tmp/db" {
		t.Errorf("bad string setting: %q %t %v\n", s, found, err)
	}
	if b, found, err := c.GetBool("InMemory"); err != nil || !found || !b {
		t.Errorf("bad bool setting: %t %t %v\n", b, found, err)
	}
	if i, found, err := c.GetInt("valuethreshold"); err != nil || !found || i != 1024 {
		t.Errorf("bad int setting: %d %t %v\n", i, found, err)
	}
	if _, found, _ := c.GetString("missing"); found {
		t.Errorf("expected missing key not to be found\n")
	}
	if _, _, err := c.GetBool("path"); err == nil {
		t.Errorf("expected error reading string as bool\n")
	}
}
