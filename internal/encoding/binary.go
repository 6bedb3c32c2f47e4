// Package encoding provides the little-endian binary codecs shared by the
// storage and persistence layers.
package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when a vector cannot be encoded or decoded.
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector64 encodes a float64 vector as a length-prefixed little-endian
// byte string: int32 length, then len values of 8 bytes each. This is the
// on-disk representation used by pkg/persistence's vectors file format.
func EncodeVector64(vector []float64) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}
	if len(vector) > math.MaxInt32 {
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", len(vector))
	}

	buf := new(bytes.Buffer)
	buf.Grow(4 + len(vector)*8)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, fmt.Errorf("encode vector length: %w", err)
	}
	for _, v := range vector {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("encode vector value: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeVector64 is the inverse of EncodeVector64.
func DecodeVector64(data []byte) ([]float64, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}
	r := bytes.NewReader(data)

	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("decode vector length: %w", err)
	}
	if length < 0 {
		return nil, ErrInvalidVector
	}
	if length == 0 {
		return []float64{}, nil
	}

	expected := int(length) * 8
	if r.Len() < expected {
		return nil, ErrInvalidVector
	}

	vector := make([]float64, length)
	for i := range vector {
		if err := binary.Read(r, binary.LittleEndian, &vector[i]); err != nil {
			return nil, fmt.Errorf("decode vector value at index %d: %w", i, err)
		}
	}
	return vector, nil
}

// EncodeVector32 is the float32 analogue of EncodeVector64, used by the
// in-memory index packages for their compact node representations.
func EncodeVector32(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}
	buf := new(bytes.Buffer)
	buf.Grow(4 + len(vector)*4)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, fmt.Errorf("encode vector length: %w", err)
	}
	for _, v := range vector {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("encode vector value: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeVector32 is the inverse of EncodeVector32.
func DecodeVector32(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}
	r := bytes.NewReader(data)

	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("decode vector length: %w", err)
	}
	if length < 0 {
		return nil, ErrInvalidVector
	}

	vector := make([]float32, length)
	for i := range vector {
		if err := binary.Read(r, binary.LittleEndian, &vector[i]); err != nil {
			return nil, fmt.Errorf("decode vector value at index %d: %w", i, err)
		}
	}
	return vector, nil
}

// WriteString writes a length-prefixed UTF-8 string: int32 byte length then
// the raw bytes.
func WriteString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxInt32 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

// ReadString is the inverse of WriteString.
func ReadString(r *bytes.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if length < 0 || int(length) > r.Len() {
		return "", errors.New("corrupt string length")
	}
	b := make([]byte, length)
	if _, err := r.Read(b); err != nil {
		return "", fmt.Errorf("read string bytes: %w", err)
	}
	return string(b), nil
}

// ValidateVector rejects vectors containing NaN or infinite components.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	for _, v := range vector {
		f := float64(v)
		if f != f || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}
	return nil
}

// ValidateVector64 is the float64 analogue of ValidateVector.
func ValidateVector64(vector []float64) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	for _, v := range vector {
		if v != v || math.IsInf(v, 0) {
			return ErrInvalidVector
		}
	}
	return nil
}
