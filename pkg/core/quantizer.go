package core

import (
	"context"
	"fmt"
)

// quantizerTrainingBatch is how many stored vectors TrainQuantizer pulls
// per ScanPage call while assembling a training set.
const quantizerTrainingBatch = 512

// TrainQuantizer trains the database's attached SQ/PQ quantizer over every
// currently-stored vector. Returns a QuantizationError if no quantizer is
// configured.
func (db *VectorDB) TrainQuantizer(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.requireReady("train_quantizer"); err != nil {
		return err
	}
	if db.config.QuantizerKind == QuantizerNone {
		return wrapError("train_quantizer", KindQuantization, fmt.Errorf("no quantizer configured"))
	}

	var training [][]float32
	cursor := ""
	for {
		page, err := db.storage.ScanPage(ctx, quantizerTrainingBatch, cursor)
		if err != nil {
			return wrapError("train_quantizer", KindStorage, err)
		}
		for _, rec := range page.Items {
			training = append(training, toFloat32(rec.Vector))
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	switch db.config.QuantizerKind {
	case QuantizerSQ:
		if err := db.sqQuantizer.Train(training); err != nil {
			return wrapError("train_quantizer", KindQuantization, err)
		}
	case QuantizerPQ:
		if err := db.pqQuantizer.Train(ctx, training); err != nil {
			return wrapError("train_quantizer", KindQuantization, err)
		}
	}
	return nil
}

// EncodeSQ encodes vector using the attached scalar quantizer. Fails if no
// SQ quantizer is configured or it is untrained.
func (db *VectorDB) EncodeSQ(vector []float64) ([]uint16, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.config.QuantizerKind != QuantizerSQ || db.sqQuantizer == nil {
		return nil, wrapError("encode_sq", KindQuantization, fmt.Errorf("no scalar quantizer configured"))
	}
	codes, err := db.sqQuantizer.Encode(toFloat32(vector))
	if err != nil {
		return nil, wrapError("encode_sq", KindQuantization, err)
	}
	return codes, nil
}

// EncodePQ encodes vector using the attached product quantizer. Fails if no
// PQ quantizer is configured or it is untrained.
func (db *VectorDB) EncodePQ(vector []float64) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.config.QuantizerKind != QuantizerPQ || db.pqQuantizer == nil {
		return nil, wrapError("encode_pq", KindQuantization, fmt.Errorf("no product quantizer configured"))
	}
	codes, err := db.pqQuantizer.Encode(toFloat32(vector))
	if err != nil {
		return nil, wrapError("encode_pq", KindQuantization, err)
	}
	return codes, nil
}
