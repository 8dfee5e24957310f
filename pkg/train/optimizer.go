// Package train resolves the trainer section of an experiment file:
// parameter groups, warmup schedules, metric direction and early stopping.
// It never runs an optimizer; that is the consuming framework's job.
package train

import (
	"fmt"
	"regexp"

	"github.com/mertkara/sharcprep/pkg/config"
)

// ResolvedGroup is one optimizer parameter group after pattern matching,
// with overrides folded over the base optimizer settings.
type ResolvedGroup struct {
	Params      []string
	LR          float64
	WeightDecay float64
}

// ResolveParameterGroups assigns each parameter name to the group whose
// pattern matches it; unmatched names land in a trailing default group with
// the base settings. A name matching more than one group is an error: the
// experiment file is ambiguous about which overrides apply.
func ResolveParameterGroups(paramNames []string, opt config.Optimizer) ([]ResolvedGroup, error) {
	groups := make([]ResolvedGroup, len(opt.ParameterGroups)+1)

	regexes := make([][]*regexp.Regexp, len(opt.ParameterGroups))
	for i, g := range opt.ParameterGroups {
		groups[i].LR = opt.LR
		groups[i].WeightDecay = opt.WeightDecay
		if g.Overrides.LR != nil {
			groups[i].LR = *g.Overrides.LR
		}
		if g.Overrides.WeightDecay != nil {
			groups[i].WeightDecay = *g.Overrides.WeightDecay
		}

		for _, pattern := range g.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("parameter_groups[%d]: bad pattern %q: %w", i, pattern, err)
			}
			regexes[i] = append(regexes[i], re)
		}
	}

	defaultGroup := len(opt.ParameterGroups)
	groups[defaultGroup].LR = opt.LR
	groups[defaultGroup].WeightDecay = opt.WeightDecay

	for _, name := range paramNames {
		assigned := -1
		for i, res := range regexes {
			for _, re := range res {
				if re.MatchString(name) {
					if assigned >= 0 && assigned != i {
						return nil, fmt.Errorf("parameter %q matches groups %d and %d", name, assigned, i)
					}
					assigned = i
					break
				}
			}
		}
		if assigned == -1 {
			assigned = defaultGroup
		}
		groups[assigned].Params = append(groups[assigned].Params, name)
	}

	return groups, nil
}

// ResolveTTotal computes the total number of optimizer steps: explicit in
// the file, or derived from dataset size when the file leaves it at -1.
func ResolveTTotal(opt config.Optimizer, numInstances, batchSize, numEpochs int) (int, error) {
	if opt.TTotal > 0 {
		return opt.TTotal, nil
	}

	if numInstances <= 0 || batchSize <= 0 || numEpochs <= 0 {
		return 0, fmt.Errorf("cannot derive t_total from %d instances, batch size %d, %d epochs",
			numInstances, batchSize, numEpochs)
	}

	stepsPerEpoch := (numInstances + batchSize - 1) / batchSize
	return stepsPerEpoch * numEpochs, nil
}

// WarmupSteps converts a warmup fraction into a step count against t_total.
func WarmupSteps(warmup float64, tTotal int) int {
	if warmup <= 0 || tTotal <= 0 {
		return 0
	}
	return int(warmup * float64(tTotal))
}
