package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// snapshotVersion is the current envelope format version. Bumped whenever
// the envelope shape itself changes (not when a snapshot Kind's inner
// key set changes — that's the producer's concern).
const snapshotVersion = 1

// Snapshot is the versioned, type-tagged envelope wrapping an index or
// store's serialized state. Kind identifies what produced Data (e.g.
// "hnsw", "ivf", "store"); the exact key set inside Data is determined by
// Kind, per §4.10 (HNSW's example: M, efConstruction, efSearch,
// entry_point_id, per_node_neighbors_by_layer, tombstones).
type Snapshot struct {
	Kind    string          `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// WriteSnapshot marshals data under kind into a versioned envelope, encodes
// it as JSON, and optionally snappy-compresses the result.
func WriteSnapshot(kind string, data interface{}, compress bool) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("persistence: marshal snapshot data: %w", err)
	}
	envelope := Snapshot{Kind: kind, Version: snapshotVersion, Data: raw}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("persistence: marshal snapshot envelope: %w", err)
	}

	var compressedFlag byte
	body := encoded
	if compress {
		body = snappy.Encode(nil, encoded)
		compressedFlag = 1
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, compressedFlag)
	out = append(out, body...)
	return out, nil
}

// ReadSnapshot decodes an envelope written by WriteSnapshot, rejecting any
// Kind other than wantKind or any Version other than the version this
// build understands, and unmarshals Data into out.
func ReadSnapshot(data []byte, wantKind string, out interface{}) error {
	if len(data) < 1 {
		return fmt.Errorf("persistence: snapshot too short")
	}
	compressed := data[0] == 1
	body := data[1:]
	if compressed {
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return fmt.Errorf("persistence: decompress snapshot: %w", err)
		}
		body = decoded
	}

	var envelope Snapshot
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("persistence: unmarshal snapshot envelope: %w", err)
	}
	if envelope.Kind != wantKind {
		return fmt.Errorf("persistence: snapshot kind mismatch: want %q, got %q", wantKind, envelope.Kind)
	}
	if envelope.Version != snapshotVersion {
		return fmt.Errorf("persistence: unsupported snapshot version %d", envelope.Version)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("persistence: unmarshal snapshot data: %w", err)
	}
	return nil
}
