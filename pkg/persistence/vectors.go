// Package persistence implements the on-disk vectors file format and the
// versioned state/index snapshot codec described in §4.10.
package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/vortexa-io/annvec/internal/encoding"
)

// vectorsMagic/vectorsVersion identify the binary vectors file format:
// MAGIC(4) | VERSION(2) | ENDIAN(1), followed by a one-byte compression
// flag, the header layout recommended by §9's
// Open Questions for a format the source left otherwise undocumented.
// endianMarker records the byte order the file was written in (always
// little-endian here, but checked on load so a mismatched build fails
// loudly instead of silently misreading).
const (
	vectorsMagic   = "ANNV"
	vectorsVersion = uint16(1)
	endianMarker   = uint8(1)
)

// WriteVectors serializes ids/vectors to the §4.10 binary format: a
// MAGIC|VERSION|ENDIAN header and a one-byte compression flag, then
// num_vectors, dimensions, length-prefixed ids, and row-major f64 values.
// compress wraps everything after the flag byte in snappy block
// compression when true.
func WriteVectors(ids []string, vectors [][]float64, compress bool) ([]byte, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("persistence: %d ids but %d vectors", len(ids), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("persistence: vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	var payload bytes.Buffer
	if err := binary.Write(&payload, binary.LittleEndian, int32(len(ids))); err != nil {
		return nil, fmt.Errorf("persistence: write num_vectors: %w", err)
	}
	if err := binary.Write(&payload, binary.LittleEndian, int32(dim)); err != nil {
		return nil, fmt.Errorf("persistence: write dimensions: %w", err)
	}
	for _, id := range ids {
		if err := encoding.WriteString(&payload, id); err != nil {
			return nil, fmt.Errorf("persistence: write id: %w", err)
		}
	}
	for _, v := range vectors {
		for _, val := range v {
			if err := binary.Write(&payload, binary.LittleEndian, val); err != nil {
				return nil, fmt.Errorf("persistence: write value: %w", err)
			}
		}
	}

	body := payload.Bytes()
	if compress {
		body = snappy.Encode(nil, body)
	}

	var out bytes.Buffer
	out.WriteString(vectorsMagic)
	if err := binary.Write(&out, binary.LittleEndian, vectorsVersion); err != nil {
		return nil, err
	}
	out.WriteByte(byte(endianMarker))
	var compressedFlag uint8
	if compress {
		compressedFlag = 1
	}
	out.WriteByte(compressedFlag)
	out.Write(body)
	return out.Bytes(), nil
}

// ReadVectors parses the §4.10 binary format written by WriteVectors,
// rejecting mismatched magic, version, or endian markers.
func ReadVectors(data []byte) (ids []string, vectors [][]float64, err error) {
	const headerLen = 4 + 2 + 1 + 1
	if len(data) < headerLen {
		return nil, nil, fmt.Errorf("persistence: vectors file too short")
	}
	if string(data[:4]) != vectorsMagic {
		return nil, nil, fmt.Errorf("persistence: bad magic %q", data[:4])
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != vectorsVersion {
		return nil, nil, fmt.Errorf("persistence: unsupported vectors version %d", version)
	}
	endian := uint8(data[6])
	if endian != endianMarker {
		return nil, nil, fmt.Errorf("persistence: endian mismatch in vectors file")
	}
	compressed := data[7] == 1
	body := data[headerLen:]
	if compressed {
		decoded, derr := snappy.Decode(nil, body)
		if derr != nil {
			return nil, nil, fmt.Errorf("persistence: decompress vectors: %w", derr)
		}
		body = decoded
	}

	r := bytes.NewReader(body)
	var numVectors, dim int32
	if err := binary.Read(r, binary.LittleEndian, &numVectors); err != nil {
		return nil, nil, fmt.Errorf("persistence: read num_vectors: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, nil, fmt.Errorf("persistence: read dimensions: %w", err)
	}
	if numVectors < 0 || dim < 0 {
		return nil, nil, fmt.Errorf("persistence: corrupt header")
	}

	ids = make([]string, numVectors)
	for i := range ids {
		id, err := encoding.ReadString(r)
		if err != nil {
			return nil, nil, fmt.Errorf("persistence: read id %d: %w", i, err)
		}
		ids[i] = id
	}

	vectors = make([][]float64, numVectors)
	for i := range vectors {
		v := make([]float64, dim)
		for d := range v {
			if err := binary.Read(r, binary.LittleEndian, &v[d]); err != nil {
				return nil, nil, fmt.Errorf("persistence: read value for vector %d dim %d: %w", i, d, err)
			}
		}
		vectors[i] = v
	}
	return ids, vectors, nil
}
