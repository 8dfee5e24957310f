package batch

import (
	"fmt"
	"testing"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func instancesWithPassageLengths(lengths ...int) []*dataset.Instance {
	instances := make([]*dataset.Instance, len(lengths))
	for i, n := range lengths {
		tokens := make([]string, n)
		for j := range tokens {
			tokens[j] = "tok"
		}
		instances[i] = &dataset.Instance{
			UtteranceID:   fmt.Sprintf("ut-%d", i),
			PassageTokens: tokens,
		}
	}
	return instances
}

func TestBasicIterator(t *testing.T) {
	it, err := NewIterator(config.Iterator{Type: "basic", BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, "basic", it.Name())

	instances := instancesWithPassageLengths(5, 3, 8, 1, 4)
	batches, err := it.Batches(instances)
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Size())
	assert.Equal(t, 2, batches[1].Size())
	assert.Equal(t, 1, batches[2].Size())

	// Arrival order is preserved.
	assert.Equal(t, "ut-0", batches[0].Instances[0].UtteranceID)
	assert.Equal(t, "ut-4", batches[2].Instances[0].UtteranceID)
}

func TestBucketIterator_SortsByLength(t *testing.T) {
	it, err := NewIterator(config.Iterator{
		Type:        "bucket",
		BatchSize:   2,
		SortingKeys: [][2]string{{"passage", "num_tokens"}},
		// Zero noise keeps the sort deterministic.
	})
	require.NoError(t, err)
	assert.Equal(t, "bucket", it.Name())

	instances := instancesWithPassageLengths(5, 3, 8, 1, 4)
	batches, err := it.Batches(instances)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	var lengths []int
	for _, b := range batches {
		for _, inst := range b.Instances {
			lengths = append(lengths, len(inst.PassageTokens))
		}
	}
	assert.Equal(t, []int{1, 3, 4, 5, 8}, lengths)
}

func TestBucketIterator_RequiresSortingKeys(t *testing.T) {
	_, err := NewIterator(config.Iterator{Type: "bucket", BatchSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sorting_keys")
}

func TestBucketIterator_UnknownSortingField(t *testing.T) {
	it, err := NewIterator(config.Iterator{
		Type:        "bucket",
		BatchSize:   2,
		SortingKeys: [][2]string{{"paragraph", "num_tokens"}},
	})
	require.NoError(t, err)

	_, err = it.Batches(instancesWithPassageLengths(1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paragraph")
}

func TestBucketIterator_NoiseStillBatchesEverything(t *testing.T) {
	it, err := NewIterator(config.Iterator{
		Type:         "bucket",
		BatchSize:    3,
		SortingKeys:  [][2]string{{"passage", "num_tokens"}},
		PaddingNoise: floatPtr(0.1),
	})
	require.NoError(t, err)

	instances := instancesWithPassageLengths(10, 2, 7, 5, 1, 9, 4)
	batches, err := it.Batches(instances)
	require.NoError(t, err)

	total := 0
	for _, b := range batches {
		total += b.Size()
	}
	assert.Equal(t, len(instances), total)
}

func TestPaddingCost_BucketBeatsBasic(t *testing.T) {
	instances := instancesWithPassageLengths(100, 1, 95, 2, 90, 3, 85, 4)
	key := [2]string{"passage", "num_tokens"}

	basic, err := NewBasic(2).Batches(instances)
	require.NoError(t, err)
	basicCost, err := PaddingCost(basic, key)
	require.NoError(t, err)

	bucket, err := NewIterator(config.Iterator{
		Type:        "bucket",
		BatchSize:   2,
		SortingKeys: [][2]string{key},
	})
	require.NoError(t, err)
	bucketBatches, err := bucket.Batches(instances)
	require.NoError(t, err)
	bucketCost, err := PaddingCost(bucketBatches, key)
	require.NoError(t, err)

	assert.Less(t, bucketCost, basicCost)
}

func TestPaddingCost_Exact(t *testing.T) {
	instances := instancesWithPassageLengths(4, 2, 3, 3)
	batches, err := NewBasic(2).Batches(instances)
	require.NoError(t, err)

	cost, err := PaddingCost(batches, [2]string{"passage", "num_tokens"})
	require.NoError(t, err)
	// Batch one pads 2 -> 4, batch two pads nothing.
	assert.Equal(t, 2, cost)
}
