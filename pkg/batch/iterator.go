// Package batch groups prepared instances into training batches.
package batch

import (
	"fmt"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/dataset"
	"github.com/mertkara/sharcprep/pkg/registry"
)

type Batch struct {
	Instances []*dataset.Instance
}

func (b Batch) Size() int {
	return len(b.Instances)
}

type Iterator interface {
	Batches(instances []*dataset.Instance) ([]Batch, error)
	Name() string
}

type IteratorCtor func(spec config.Iterator) (Iterator, error)

var Iterators = registry.New[IteratorCtor]("iterator")

func init() {
	Iterators.Register("basic", func(spec config.Iterator) (Iterator, error) {
		return &BasicIterator{batchSize: spec.BatchSize}, nil
	})
	Iterators.Register("bucket", newBucketFromSpec)
}

func NewIterator(spec config.Iterator) (Iterator, error) {
	ctor, err := Iterators.Lookup(spec.Type)
	if err != nil {
		return nil, err
	}
	return ctor(spec)
}

// BasicIterator slices instances into fixed-size batches in arrival order.
type BasicIterator struct {
	batchSize int
}

func NewBasic(batchSize int) *BasicIterator {
	return &BasicIterator{batchSize: batchSize}
}

func (it *BasicIterator) Name() string {
	return "basic"
}

func (it *BasicIterator) Batches(instances []*dataset.Instance) ([]Batch, error) {
	return chunk(instances, it.batchSize), nil
}

func chunk(instances []*dataset.Instance, size int) []Batch {
	var batches []Batch
	for start := 0; start < len(instances); start += size {
		end := start + size
		if end > len(instances) {
			end = len(instances)
		}
		batches = append(batches, Batch{Instances: instances[start:end]})
	}
	return batches
}

// fieldLength resolves a sorting key like ["passage", "num_tokens"] against
// an instance.
func fieldLength(inst *dataset.Instance, key [2]string) (int, error) {
	if key[1] != "num_tokens" {
		return 0, fmt.Errorf("unsupported padding key %q (only num_tokens is supported)", key[1])
	}

	switch key[0] {
	case "passage":
		return len(inst.PassageTokens), nil
	case "question":
		return len(inst.QuestionTokens), nil
	case "source_tokens":
		return len(inst.SourceTokens), nil
	case "target_tokens":
		return len(inst.TargetTokens), nil
	default:
		return 0, fmt.Errorf("unknown sorting field %q", key[0])
	}
}

// PaddingCost is the number of pad positions batching would introduce for
// the given field: each instance pads up to the longest one in its batch.
func PaddingCost(batches []Batch, key [2]string) (int, error) {
	total := 0
	for _, b := range batches {
		maxLen := 0
		lengths := make([]int, 0, len(b.Instances))
		for _, inst := range b.Instances {
			n, err := fieldLength(inst, key)
			if err != nil {
				return 0, err
			}
			lengths = append(lengths, n)
			if n > maxLen {
				maxLen = n
			}
		}
		for _, n := range lengths {
			total += maxLen - n
		}
	}
	return total, nil
}
