package segy

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	textLines   = 40
	textColumns = 80
)

// isEBCDIC guesses the encoding of a textual header.  EBCDIC text is dominated
// by 0x40 (space) and bytes with the high bit set, while ASCII headers use 0x20.
func isEBCDIC(b []byte) bool {
	var ebcdicSpace, asciiSpace, high int
	for _, c := range b {
		switch {
		case c == 0x40:
			ebcdicSpace++
		case c == 0x20:
			asciiSpace++
		case c >= 0x80:
			high++
		}
	}
	return ebcdicSpace+high > asciiSpace
}

// DecodeTextHeader converts a 3200-byte textual header to a string of
// 40 lines of at most 80 characters, trailing blanks removed.
func DecodeTextHeader(b []byte) string {
	if len(b) > TextHeaderSize {
		b = b[:TextHeaderSize]
	}
	ebcdic := isEBCDIC(b)
	lines := make([]string, 0, textLines)
	for i := 0; i < len(b); i += textColumns {
		end := i + textColumns
		if end > len(b) {
			end = len(b)
		}
		card := b[i:end]
		if ebcdic {
			if decoded, err := charmap.CodePage037.NewDecoder().Bytes(card); err == nil {
				card = decoded
			}
		}
		line := bytes.Map(func(r rune) rune {
			if r < 0x20 || r == 0x7f {
				return ' '
			}
			return r
		}, card)
		lines = append(lines, strings.TrimRight(string(line), " "))
	}
	return strings.Join(lines, "\n")
}

// EncodeTextHeader lays text out as 40 card images of 80 columns and encodes
// it as EBCDIC.  Lines and columns beyond the card layout are dropped.
func EncodeTextHeader(text string) []byte {
	card := bytes.Repeat([]byte{' '}, TextHeaderSize)
	for i, line := range strings.Split(text, "\n") {
		if i >= textLines {
			break
		}
		if len(line) > textColumns {
			line = line[:textColumns]
		}
		copy(card[i*textColumns:], line)
	}
	encoded, err := charmap.CodePage037.NewEncoder().Bytes(card)
	if err != nil || len(encoded) != TextHeaderSize {
		return card
	}
	return encoded
}

// DecodeEBCDIC converts code page 037 bytes to UTF-8.
func DecodeEBCDIC(b []byte) ([]byte, error) {
	return charmap.CodePage037.NewDecoder().Bytes(b)
}
