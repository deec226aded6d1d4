package dataset

import (
	"fmt"
	"math/rand"
)

// ShufflePolicy controls the order in which windows are visited each epoch.
type ShufflePolicy string

const (
	// Sequential visits windows in stored order every epoch.
	Sequential ShufflePolicy = "sequential"
	// ShufflePerEpoch draws a fresh seeded permutation at the start of each epoch.
	ShufflePerEpoch ShufflePolicy = "shuffle"
)

// ParseShufflePolicy maps a config value to a policy.
func ParseShufflePolicy(s string) (ShufflePolicy, error) {
	switch ShufflePolicy(s) {
	case Sequential, ShufflePerEpoch:
		return ShufflePolicy(s), nil
	case "":
		return ShufflePerEpoch, nil
	default:
		return "", fmt.Errorf("unknown shuffle policy %q", s)
	}
}

// Batcher cuts Windows into fixed-size batches. The last batch of an epoch
// may be smaller.
type Batcher struct {
	windows *Windows
	size    int
	policy  ShufflePolicy
	seed    int64
}

// NewBatcher creates a batcher. With ShufflePerEpoch the permutation for a
// given epoch depends only on seed and the epoch index.
func NewBatcher(w *Windows, size int, policy ShufflePolicy, seed int64) (*Batcher, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size %d: %w", size, ErrInvalidBatchSize)
	}
	if policy != Sequential && policy != ShufflePerEpoch {
		return nil, fmt.Errorf("unknown shuffle policy %q", policy)
	}
	return &Batcher{windows: w, size: size, policy: policy, seed: seed}, nil
}

// Order returns the window visiting order for an epoch.
func (b *Batcher) Order(epoch int) []int {
	n := b.windows.Len()
	if b.policy == ShufflePerEpoch {
		return rand.New(rand.NewSource(b.seed + int64(epoch))).Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// Epoch returns the batches for one epoch.
func (b *Batcher) Epoch(epoch int) ([]*Batch, error) {
	order := b.Order(epoch)
	out := make([]*Batch, 0, (len(order)+b.size-1)/b.size)
	for start := 0; start < len(order); start += b.size {
		end := start + b.size
		if end > len(order) {
			end = len(order)
		}
		batch, err := b.windows.Batch(order[start:end])
		if err != nil {
			return nil, fmt.Errorf("epoch %d batch at %d: %w", epoch, start, err)
		}
		out = append(out, batch)
	}
	return out, nil
}
