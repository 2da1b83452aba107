package segy

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Format is the data sample format code of the binary header.
type Format int16

const (
	IBMFloat32  Format = 1
	Int32       Format = 2
	Int16       Format = 3
	IEEEFloat32 Format = 5
	IEEEFloat64 Format = 6
	Int8        Format = 8
	Uint32      Format = 10
	Uint16      Format = 11
	Uint8       Format = 16
)

// BytesPerSample returns the sample width, or 0 for unsupported formats.
func (f Format) BytesPerSample() int {
	switch f {
	case IBMFloat32, Int32, IEEEFloat32, Uint32:
		return 4
	case Int16, Uint16:
		return 2
	case IEEEFloat64:
		return 8
	case Int8, Uint8:
		return 1
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case IBMFloat32:
		return "4-byte IBM float"
	case Int32:
		return "4-byte signed integer"
	case Int16:
		return "2-byte signed integer"
	case IEEEFloat32:
		return "4-byte IEEE float"
	case IEEEFloat64:
		return "8-byte IEEE float"
	case Int8:
		return "1-byte signed integer"
	case Uint32:
		return "4-byte unsigned integer"
	case Uint16:
		return "2-byte unsigned integer"
	case Uint8:
		return "1-byte unsigned integer"
	default:
		return fmt.Sprintf("unsupported format %d", int16(f))
	}
}

// decodeSamples converts raw big-endian samples into dst, which must hold
// len(raw)/BytesPerSample values.
func (f Format) decodeSamples(raw []byte, dst []float32) {
	be := binary.BigEndian
	switch f {
	case IBMFloat32:
		for i := range dst {
			dst[i] = ibmToFloat32(be.Uint32(raw[4*i:]))
		}
	case Int32:
		for i := range dst {
			dst[i] = float32(int32(be.Uint32(raw[4*i:])))
		}
	case Int16:
		for i := range dst {
			dst[i] = float32(int16(be.Uint16(raw[2*i:])))
		}
	case IEEEFloat32:
		for i := range dst {
			dst[i] = math.Float32frombits(be.Uint32(raw[4*i:]))
		}
	case IEEEFloat64:
		for i := range dst {
			dst[i] = float32(math.Float64frombits(be.Uint64(raw[8*i:])))
		}
	case Int8:
		for i := range dst {
			dst[i] = float32(int8(raw[i]))
		}
	case Uint32:
		for i := range dst {
			dst[i] = float32(be.Uint32(raw[4*i:]))
		}
	case Uint16:
		for i := range dst {
			dst[i] = float32(be.Uint16(raw[2*i:]))
		}
	case Uint8:
		for i := range dst {
			dst[i] = float32(raw[i])
		}
	}
}

// encodeSample writes one sample in this format into b.
func (f Format) encodeSample(b []byte, v float32) {
	be := binary.BigEndian
	switch f {
	case IBMFloat32:
		be.PutUint32(b, float32ToIBM(v))
	case Int32:
		be.PutUint32(b, uint32(int32(v)))
	case Int16:
		be.PutUint16(b, uint16(int16(v)))
	case IEEEFloat32:
		be.PutUint32(b, math.Float32bits(v))
	case IEEEFloat64:
		be.PutUint64(b, math.Float64bits(float64(v)))
	case Int8:
		b[0] = byte(int8(v))
	case Uint32:
		be.PutUint32(b, uint32(v))
	case Uint16:
		be.PutUint16(b, uint16(v))
	case Uint8:
		b[0] = byte(v)
	}
}

// ibmToFloat32 converts an IBM System/360 hexadecimal float.
func ibmToFloat32(bits uint32) float32 {
	mant := bits & 0x00ffffff
	if mant == 0 {
		return 0
	}
	exp := int((bits >> 24) & 0x7f)
	v := math.Ldexp(float64(mant), 4*(exp-64)-24)
	if bits&0x80000000 != 0 {
		v = -v
	}
	return float32(v)
}

// float32ToIBM is the inverse of ibmToFloat32.  NaN and zero encode as zero.
func float32ToIBM(f float32) uint32 {
	v := float64(f)
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	var sign uint32
	if v < 0 {
		sign = 0x80000000
		v = -v
	}
	if math.IsInf(v, 0) {
		return sign | 0x7fffffff
	}
	frac, e2 := math.Frexp(v)
	e16 := e2 / 4
	if e2 > 0 && e2%4 != 0 {
		e16++
	}
	mant := uint32(math.Ldexp(frac, e2-4*e16+24) + 0.5)
	if mant >= 1<<24 {
		mant >>= 4
		e16++
	}
	exp := e16 + 64
	switch {
	case exp > 127:
		return sign | 0x7fffffff
	case exp < 0:
		return 0
	}
	return sign | uint32(exp)<<24 | mant
}
