package train

import (
	"fmt"
	"strings"
)

// Metric is a parsed validation_metric spec: the metric name and whether
// larger values are better ("+name") or worse ("-name").
type Metric struct {
	Name     string
	Maximize bool
}

func ParseMetric(spec string) (Metric, error) {
	if len(spec) < 2 {
		return Metric{}, fmt.Errorf("validation_metric %q is too short", spec)
	}

	name := strings.TrimSpace(spec[1:])
	switch spec[0] {
	case '+':
		return Metric{Name: name, Maximize: true}, nil
	case '-':
		return Metric{Name: name, Maximize: false}, nil
	default:
		return Metric{}, fmt.Errorf("validation_metric %q must start with + or -", spec)
	}
}

// EarlyStopper tracks per-epoch validation metrics and signals when training
// should stop: patience epochs have passed without improvement over the best
// value. Zero patience disables early stopping.
type EarlyStopper struct {
	metric   Metric
	patience int

	best       float64
	bestEpoch  int
	epochsSeen int
	sinceBest  int
}

func NewEarlyStopper(metric Metric, patience int) *EarlyStopper {
	return &EarlyStopper{
		metric:    metric,
		patience:  patience,
		bestEpoch: -1,
	}
}

// Record feeds one epoch's validation value and reports whether it improved
// on the best so far.
func (s *EarlyStopper) Record(value float64) bool {
	improved := s.epochsSeen == 0 ||
		(s.metric.Maximize && value > s.best) ||
		(!s.metric.Maximize && value < s.best)

	if improved {
		s.best = value
		s.bestEpoch = s.epochsSeen
		s.sinceBest = 0
	} else {
		s.sinceBest++
	}

	s.epochsSeen++
	return improved
}

func (s *EarlyStopper) ShouldStop() bool {
	return s.patience > 0 && s.sinceBest >= s.patience
}

func (s *EarlyStopper) Best() (value float64, epoch int) {
	return s.best, s.bestEpoch
}
