package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("+macro_accuracy")
	require.NoError(t, err)
	assert.Equal(t, Metric{Name: "macro_accuracy", Maximize: true}, m)

	m, err = ParseMetric("-loss")
	require.NoError(t, err)
	assert.Equal(t, Metric{Name: "loss", Maximize: false}, m)

	_, err = ParseMetric("accuracy")
	require.Error(t, err)

	_, err = ParseMetric("+")
	require.Error(t, err)
}

func TestEarlyStopper_Maximize(t *testing.T) {
	s := NewEarlyStopper(Metric{Name: "macro_accuracy", Maximize: true}, 2)

	assert.True(t, s.Record(0.50))
	assert.True(t, s.Record(0.60))
	assert.False(t, s.ShouldStop())

	assert.False(t, s.Record(0.58))
	assert.False(t, s.ShouldStop())

	assert.False(t, s.Record(0.55))
	assert.True(t, s.ShouldStop())

	best, epoch := s.Best()
	assert.Equal(t, 0.60, best)
	assert.Equal(t, 1, epoch)
}

func TestEarlyStopper_Minimize(t *testing.T) {
	s := NewEarlyStopper(Metric{Name: "loss", Maximize: false}, 1)

	assert.True(t, s.Record(2.0))
	assert.True(t, s.Record(1.5))
	assert.False(t, s.ShouldStop())

	assert.False(t, s.Record(1.6))
	assert.True(t, s.ShouldStop())
}

func TestEarlyStopper_ZeroPatienceNeverStops(t *testing.T) {
	s := NewEarlyStopper(Metric{Name: "loss", Maximize: false}, 0)

	s.Record(2.0)
	s.Record(3.0)
	s.Record(4.0)
	assert.False(t, s.ShouldStop())
}
