package train

import (
	"testing"

	"github.com/mertkara/sharcprep/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestResolveParameterGroups(t *testing.T) {
	opt := config.Optimizer{
		Type:        "bert_adam",
		LR:          2e-5,
		WeightDecay: 0.01,
		ParameterGroups: []config.ParameterGroup{
			{
				Patterns:  []string{"bias", `LayerNorm\.weight`},
				Overrides: config.GroupOverrides{WeightDecay: floatPtr(0)},
			},
		},
	}

	params := []string{
		"encoder.layer.0.attention.bias",
		"encoder.layer.0.LayerNorm.weight",
		"encoder.layer.0.attention.weight",
		"classifier.weight",
	}

	groups, err := ResolveParameterGroups(params, opt)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	noDecay := groups[0]
	assert.ElementsMatch(t, []string{
		"encoder.layer.0.attention.bias",
		"encoder.layer.0.LayerNorm.weight",
	}, noDecay.Params)
	assert.Equal(t, 2e-5, noDecay.LR)
	assert.Equal(t, float64(0), noDecay.WeightDecay)

	rest := groups[1]
	assert.ElementsMatch(t, []string{
		"encoder.layer.0.attention.weight",
		"classifier.weight",
	}, rest.Params)
	assert.Equal(t, 2e-5, rest.LR)
	assert.Equal(t, 0.01, rest.WeightDecay)
}

func TestResolveParameterGroups_LROverride(t *testing.T) {
	opt := config.Optimizer{
		LR: 2e-5,
		ParameterGroups: []config.ParameterGroup{
			{
				Patterns:  []string{"classifier"},
				Overrides: config.GroupOverrides{LR: floatPtr(1e-3)},
			},
		},
	}

	groups, err := ResolveParameterGroups([]string{"classifier.weight", "encoder.weight"}, opt)
	require.NoError(t, err)

	assert.Equal(t, 1e-3, groups[0].LR)
	assert.Equal(t, 2e-5, groups[1].LR)
}

func TestResolveParameterGroups_AmbiguousMatch(t *testing.T) {
	opt := config.Optimizer{
		LR: 2e-5,
		ParameterGroups: []config.ParameterGroup{
			{Patterns: []string{"bias"}},
			{Patterns: []string{"encoder"}},
		},
	}

	_, err := ResolveParameterGroups([]string{"encoder.bias"}, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder.bias")
}

func TestResolveParameterGroups_BadPattern(t *testing.T) {
	opt := config.Optimizer{
		LR: 2e-5,
		ParameterGroups: []config.ParameterGroup{
			{Patterns: []string{"("}},
		},
	}

	_, err := ResolveParameterGroups([]string{"encoder.weight"}, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad pattern")
}

func TestResolveTTotal(t *testing.T) {
	explicit := config.Optimizer{TTotal: 1000}
	got, err := ResolveTTotal(explicit, 50, 16, 20)
	require.NoError(t, err)
	assert.Equal(t, 1000, got)

	derived := config.Optimizer{TTotal: -1}
	got, err = ResolveTTotal(derived, 100, 16, 20)
	require.NoError(t, err)
	// ceil(100/16) = 7 steps per epoch.
	assert.Equal(t, 140, got)

	_, err = ResolveTTotal(derived, 0, 16, 20)
	require.Error(t, err)
}

func TestWarmupSteps(t *testing.T) {
	assert.Equal(t, 14, WarmupSteps(0.1, 140))
	assert.Equal(t, 0, WarmupSteps(0, 140))
	assert.Equal(t, 0, WarmupSteps(0.1, -1))
}
