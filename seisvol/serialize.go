/*
	This file supports serialization/deserialization and compression of stored records.
*/

package seisvol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the format of compression for storing data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = 0
	Snappy       Compression = 1
	Zstd         Compression = 2
)

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "No compression"
	case Snappy:
		return "Go Snappy compression"
	case Zstd:
		return "Zstandard compression"
	default:
		return "Unknown compression"
	}
}

// ParseCompression returns the compression named in a config file.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown compression %q: %w", name, ErrBadRequest)
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = 0
	CRC32      Checksum = 1
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "No checksum"
	case CRC32:
		return "CRC32 checksum"
	default:
		return "Unknown checksum"
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// SerializeData serializes a slice of bytes using optional compression, checksum.
func SerializeData(data []byte, compress Compression, checksum Checksum) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte(byte(EncodeSerializationFormat(compress, checksum)))

	var byteData []byte
	switch compress {
	case Uncompressed:
		byteData = data
	case Snappy:
		byteData = snappy.Encode(nil, data)
	case Zstd:
		byteData = zstdEncoder.EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("illegal compression (%s) during serialization", compress)
	}

	switch checksum {
	case NoChecksum:
	case CRC32:
		if err := binary.Write(&buffer, binary.LittleEndian, crc32.ChecksumIEEE(byteData)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("illegal checksum (%s) during serialization", checksum)
	}

	// Data is written last, after any checksum, so no length is needed on deserialization.
	buffer.Write(byteData)
	return buffer.Bytes(), nil
}

// Serialize encodes an arbitrary Go object as JSON and then applies optional
// compression and checksum.
func Serialize(object interface{}, compress Compression, checksum Checksum) ([]byte, error) {
	data, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return SerializeData(data, compress, checksum)
}

// DeserializeData deserializes a slice of bytes using stored compression, checksum.
func DeserializeData(s []byte) ([]byte, Compression, error) {
	if len(s) == 0 {
		return nil, Uncompressed, fmt.Errorf("cannot deserialize empty data")
	}
	compress, checksum := DecodeSerializationFormat(SerializationFormat(s[0]))
	cdata := s[1:]

	switch checksum {
	case NoChecksum:
	case CRC32:
		if len(cdata) < 4 {
			return nil, compress, fmt.Errorf("serialized data too short for checksum")
		}
		stored := binary.LittleEndian.Uint32(cdata[:4])
		cdata = cdata[4:]
		if got := crc32.ChecksumIEEE(cdata); got != stored {
			return nil, compress, fmt.Errorf("bad checksum.  Stored %x got %x", stored, got)
		}
	default:
		return nil, compress, fmt.Errorf("illegal checksum in deserializing data")
	}

	switch compress {
	case Uncompressed:
		return cdata, compress, nil
	case Snappy:
		data, err := snappy.Decode(nil, cdata)
		return data, compress, err
	case Zstd:
		data, err := zstdDecoder.DecodeAll(cdata, nil)
		return data, compress, err
	default:
		return nil, compress, fmt.Errorf("illegal compression format (%d) in deserialization", compress)
	}
}

// Deserialize reverses Serialize, decoding the JSON payload into object.
func Deserialize(s []byte, object interface{}) error {
	data, _, err := DeserializeData(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, object)
}
