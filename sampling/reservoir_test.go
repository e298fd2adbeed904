package sampling_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/gwdata/sampling"
	"github.com/sevigo/gwdata/schema"
)

func TestReservoir_UnboundedKeepsEverythingInOrder(t *testing.T) {
	r := sampling.New[int](0, 1)
	for i := range 1000 {
		r.Add(i)
	}

	items := r.Items()
	require.Len(t, items, 1000)
	for i, v := range items {
		assert.Equal(t, i, v)
	}
	assert.True(t, r.Unbounded())
	assert.Equal(t, 1000, r.Seen())
}

func TestReservoir_BoundedKeepsExactlySize(t *testing.T) {
	r := sampling.New[int](10, 42)
	for i := range 500 {
		r.Add(i)
	}

	items := r.Items()
	require.Len(t, items, 10)
	assert.Equal(t, 500, r.Seen())

	seen := make(map[int]bool)
	for _, v := range items {
		assert.False(t, seen[v], "duplicate item %d in sample", v)
		seen[v] = true
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 500)
	}
}

func TestReservoir_BoundedShortStream(t *testing.T) {
	r := sampling.New[string](10, 7)
	r.Add("a")
	r.Add("b")

	assert.Equal(t, []string{"a", "b"}, r.Items())
}

func TestReservoir_SameSeedSameSample(t *testing.T) {
	a := sampling.New[int](5, 99)
	b := sampling.New[int](5, 99)
	for i := range 100 {
		a.Add(i)
		b.Add(i)
	}
	assert.Equal(t, a.Items(), b.Items())
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       schema.SamplingConfig
		unbounded bool
	}{
		{"full scan", schema.SamplingConfig{Mode: schema.SamplingFull, Size: 10}, true},
		{"reservoir without size", schema.SamplingConfig{Mode: schema.SamplingReservoir}, true},
		{"reservoir with size", schema.SamplingConfig{Mode: schema.SamplingReservoir, Size: 3}, false},
		{"zero value", schema.SamplingConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampling.FromConfig[int](tt.cfg)
			assert.Equal(t, tt.unbounded, r.Unbounded())
		})
	}
}
