// Package core provides VectorDB, the database facade binding one storage
// backend and one ANN index (plus an optional quantizer) behind a single
// reader-writer lock.
//
// # Key Components
//
//   - VectorDB: the entry point for insert/search/update/delete, pagination,
//     and stats, enforcing the Uninitialized -> Ready -> Closed lifecycle.
//   - Config: per-index and per-storage tagged configuration, validated at
//     construction rather than read out of a loosely-typed map.
//   - Quantizer integration: an optional SQ/PQ quantizer trained alongside
//     the index, exposed for compression stats and quantized distance.
//
// # Observability
//
// The core engine supports pluggable structured logging through the Logger
// interface.
package core
