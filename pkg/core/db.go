package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/vortexa-io/annvec/pkg/distance"
	"github.com/vortexa-io/annvec/pkg/index"
	"github.com/vortexa-io/annvec/pkg/quantization"
	"github.com/vortexa-io/annvec/pkg/storage"
)

// State is VectorDB's lifecycle state machine per §5: Uninitialized ->
// Ready -> Closed. Every operation other than Initialize/Close requires
// Ready.
type State int

const (
	Uninitialized State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// VectorDB binds exactly one storage backend and one index, optionally a
// quantizer, behind a single reader-writer lock (db_lock in §5) that is the
// outer serialization boundary for every operation. Index and storage each
// keep their own finer-grained internal locks; db.mu never inverts that
// ordering.
type VectorDB struct {
	mu    sync.RWMutex
	state State

	config  Config
	storage storage.Backend
	index   index.Index
	logger  Logger

	sqQuantizer *quantization.ScalarQuantizer
	pqQuantizer *quantization.ProductQuantizer
}

// New validates config and constructs a VectorDB in the Uninitialized
// state. Initialize must be called before any other operation.
func New(config Config) (*VectorDB, error) {
	if err := config.Validate(); err != nil {
		return nil, wrapError("new", KindConfiguration, err)
	}
	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}
	return &VectorDB{config: config, logger: logger, state: Uninitialized}, nil
}

// Initialize constructs the configured storage backend and index,
// transitioning Uninitialized -> Ready. Repeat calls in Ready or Closed
// fail with AlreadyInitialized/AlreadyClosed.
func (db *VectorDB) Initialize(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.state == Ready {
		return wrapError("initialize", KindAlreadyInitialized, ErrAlreadyInitialized)
	}
	if db.state == Closed {
		return wrapError("initialize", KindAlreadyClosed, ErrAlreadyClosed)
	}

	backend, err := newStorageBackend(db.config)
	if err != nil {
		return wrapError("initialize", KindConfiguration, err)
	}
	if err := backend.Init(ctx); err != nil {
		return wrapError("initialize", KindStorage, err)
	}

	idx, err := newIndex(db.config)
	if err != nil {
		_ = backend.Close()
		return wrapError("initialize", KindConfiguration, err)
	}

	switch db.config.QuantizerKind {
	case QuantizerSQ:
		q, err := quantization.NewScalarQuantizer(db.config.Dimension, db.config.SQBits, db.config.Metric)
		if err != nil {
			_ = backend.Close()
			return wrapError("initialize", KindQuantization, err)
		}
		db.sqQuantizer = q
	case QuantizerPQ:
		q, err := quantization.NewProductQuantizer(db.config.Dimension, db.config.PQNumSubspaces, db.config.Seed)
		if err != nil {
			_ = backend.Close()
			return wrapError("initialize", KindQuantization, err)
		}
		db.pqQuantizer = q
	}

	if err := rebuildIndexFromStorage(ctx, backend, idx); err != nil {
		_ = backend.Close()
		return wrapError("initialize", KindIndex, err)
	}

	db.storage = backend
	db.index = idx
	db.state = Ready
	db.logger.Info("database initialized", "dimension", db.config.Dimension, "index", db.config.IndexKind, "storage", db.config.StorageKind)
	return nil
}

// indexRebuildBatch is how many stored records rebuildIndexFromStorage pulls
// per ScanPage call while repopulating a freshly constructed index.
const indexRebuildBatch = 512

// rebuildIndexFromStorage repopulates idx from every record already present
// in backend. A fresh Memory backend has nothing to scan; Disk/Hybrid may
// carry records from a prior process, since the index itself is never
// persisted and must be reconstructed from the storage log on every
// Initialize.
func rebuildIndexFromStorage(ctx context.Context, backend storage.Backend, idx index.Index) error {
	cursor := ""
	for {
		page, err := backend.ScanPage(ctx, indexRebuildBatch, cursor)
		if err != nil {
			return err
		}
		for _, rec := range page.Items {
			if err := idx.Insert(rec.ID, toFloat32(rec.Vector)); err != nil {
				return fmt.Errorf("rebuild index: record %q: %w", rec.ID, err)
			}
		}
		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

// Close is idempotent: the first call releases the index and storage, in
// that order (§5); subsequent calls are no-ops and never return an error.
func (db *VectorDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.state == Closed {
		return nil
	}
	if db.state == Uninitialized {
		db.state = Closed
		return nil
	}

	// index first (stops accepting work), then storage.
	if db.index != nil {
		if err := db.index.Close(); err != nil {
			db.logger.Error("failed to close index", "error", err)
		}
	}
	if db.storage != nil {
		if err := db.storage.Close(); err != nil {
			db.logger.Error("failed to close storage", "error", err)
		}
	}
	db.state = Closed
	db.logger.Info("database closed")
	return nil
}

func (db *VectorDB) requireReady(op string) error {
	if db.state == Uninitialized {
		return wrapError(op, KindNotInitialized, ErrNotInitialized)
	}
	if db.state == Closed {
		return wrapError(op, KindAlreadyClosed, ErrAlreadyClosed)
	}
	return nil
}

func newStorageBackend(c Config) (storage.Backend, error) {
	switch c.StorageKind {
	case StorageMemory:
		return storage.NewMemory(), nil
	case StorageDisk:
		return storage.NewDisk(c.DataDir), nil
	case StorageHybrid:
		disk := storage.NewDisk(c.DataDir)
		return storage.NewHybrid(disk, c.CacheSize)
	default:
		return nil, fmt.Errorf("unknown storage kind %v", c.StorageKind)
	}
}

func newIndex(c Config) (index.Index, error) {
	switch c.IndexKind {
	case IndexFlat:
		return index.NewFlat(c.Dimension, c.Flat), nil
	case IndexHNSW:
		return index.NewHNSW(c.HNSW), nil
	case IndexIVF:
		return index.NewIVF(c.Dimension, c.IVF), nil
	case IndexLSH:
		return index.NewLSH(c.Dimension, c.LSH), nil
	case IndexAnnoy:
		return index.NewAnnoy(c.Dimension, c.Annoy), nil
	default:
		return nil, fmt.Errorf("unknown index kind %v", c.IndexKind)
	}
}

// indexMetric returns the distance metric the configured index uses, for
// stats reporting and vector-to-float32 query conversion.
func (db *VectorDB) indexMetric() distance.Metric {
	switch db.config.IndexKind {
	case IndexFlat:
		return db.config.Flat.Metric
	case IndexHNSW:
		return db.config.HNSW.Metric
	case IndexIVF:
		return db.config.IVF.Metric
	case IndexLSH:
		return db.config.LSH.Metric
	case IndexAnnoy:
		return db.config.Annoy.Metric
	default:
		return db.config.Metric
	}
}
