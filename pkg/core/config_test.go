package core

import (
	"testing"

	"github.com/vortexa-io/annvec/pkg/index"
)

func TestConfigValidateDimension(t *testing.T) {
	c := flatConfig(0)
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for dimension 0")
	}
	c = flatConfig(20000)
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for dimension exceeding 10000")
	}
}

func TestConfigValidateDiskRequiresDataDir(t *testing.T) {
	c := flatConfig(4)
	c.StorageKind = StorageDisk
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for disk storage without data_dir")
	}
}

func TestConfigValidateHybridRequiresCacheSize(t *testing.T) {
	c := flatConfig(4)
	c.StorageKind = StorageHybrid
	c.DataDir = "/tmp/whatever"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for hybrid storage without cache_size")
	}
}

func TestConfigValidateHNSWRange(t *testing.T) {
	c := flatConfig(4)
	c.IndexKind = IndexHNSW
	c.HNSW = index.HNSWConfig{M: 1, EfConstruction: 100, EfSearch: 50}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for M below range")
	}
}

func TestConfigValidateSQBits(t *testing.T) {
	c := sqConfig(4, 7)
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for invalid SQ bits")
	}
}

func TestConfigValidatePQDivisibility(t *testing.T) {
	c := flatConfig(10)
	c.QuantizerKind = QuantizerPQ
	c.PQNumSubspaces = 3
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for PQ numSubspaces not dividing dimension")
	}
}
