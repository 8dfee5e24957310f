package batch

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/dataset"
)

// BucketIterator sorts instances by the configured length keys before
// batching, so each batch holds instances of similar length and padding
// stays small. PaddingNoise jitters the sort keys so consecutive epochs do
// not see identical batches.
type BucketIterator struct {
	batchSize    int
	sortingKeys  [][2]string
	paddingNoise float64
	rng          *rand.Rand
}

func newBucketFromSpec(spec config.Iterator) (Iterator, error) {
	if len(spec.SortingKeys) == 0 {
		return nil, fmt.Errorf("bucket iterator requires sorting_keys")
	}

	noise := 0.0
	if spec.PaddingNoise != nil {
		noise = *spec.PaddingNoise
	}

	return &BucketIterator{
		batchSize:    spec.BatchSize,
		sortingKeys:  spec.SortingKeys,
		paddingNoise: noise,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (it *BucketIterator) Name() string {
	return "bucket"
}

func (it *BucketIterator) Batches(instances []*dataset.Instance) ([]Batch, error) {
	type keyed struct {
		inst *dataset.Instance
		keys []float64
	}

	keyedInstances := make([]keyed, 0, len(instances))
	for _, inst := range instances {
		keys := make([]float64, 0, len(it.sortingKeys))
		for _, sk := range it.sortingKeys {
			n, err := fieldLength(inst, sk)
			if err != nil {
				return nil, err
			}
			keys = append(keys, it.addNoise(float64(n)))
		}
		keyedInstances = append(keyedInstances, keyed{inst: inst, keys: keys})
	}

	sort.SliceStable(keyedInstances, func(a, b int) bool {
		for i := range keyedInstances[a].keys {
			if keyedInstances[a].keys[i] != keyedInstances[b].keys[i] {
				return keyedInstances[a].keys[i] < keyedInstances[b].keys[i]
			}
		}
		return false
	})

	sorted := make([]*dataset.Instance, len(keyedInstances))
	for i, k := range keyedInstances {
		sorted[i] = k.inst
	}

	return chunk(sorted, it.batchSize), nil
}

func (it *BucketIterator) addNoise(value float64) float64 {
	if it.paddingNoise == 0 {
		return value
	}
	return value * (1 + (it.rng.Float64()*2-1)*it.paddingNoise)
}
