package audiodevice

import (
	"encoding/binary"
	"math"
)

const (
	maxInt16 = float32(math.MaxInt16)
	maxInt8  = float32(math.MaxInt8)
)

// Fill buf with the silence pattern of the given encoding.
//
// Silence is all zero bytes, except for unsigned 8 bit PCM which is mid-scale.
func FillSilence(buf []byte, encoding Encoding) {
	var fill byte
	if encoding == EncodingPCM8 {
		fill = 0x80
	}
	for i := range buf {
		buf[i] = fill
	}
}

// Decode len(dst) samples of src in the given encoding into normalised float32 samples.
// Returns the number of samples decoded, limited by the length of src.
func DecodeFloat32(dst []float32, src []byte, encoding Encoding) int {
	bytesPerSample := encoding.BytesPerSample()
	if bytesPerSample == 0 {
		return 0
	}
	n := min(len(dst), len(src)/bytesPerSample)

	switch encoding {
	case EncodingPCM8:
		for i := range n {
			dst[i] = float32(int(src[i])-0x80) / maxInt8
		}
	case EncodingPCM16:
		for i := range n {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:]))) / maxInt16
		}
	case EncodingPCMFloat32:
		for i := range n {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	}
	return n
}

// Encode the float32 samples of src into dst in the given encoding, clamping
// to [-1.0, 1.0] for the integer encodings.
// Returns the number of samples encoded, limited by the length of dst.
func EncodeFloat32(dst []byte, src []float32, encoding Encoding) int {
	bytesPerSample := encoding.BytesPerSample()
	if bytesPerSample == 0 {
		return 0
	}
	n := min(len(src), len(dst)/bytesPerSample)

	switch encoding {
	case EncodingPCM8:
		for i := range n {
			dst[i] = byte(int(clamp(src[i])*maxInt8) + 0x80)
		}
	case EncodingPCM16:
		for i := range n {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(clamp(src[i])*maxInt16)))
		}
	case EncodingPCMFloat32:
		for i := range n {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(src[i]))
		}
	}
	return n
}

func clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
