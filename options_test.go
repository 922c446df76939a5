package profileengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.False(t, o.ThrowOnError)
	assert.Equal(t, 32, o.MaxRecursionDepth)
	assert.True(t, o.EnablePooling)
	assert.Nil(t, o.Metrics)
}

func TestApplyOptions(t *testing.T) {
	m := NewMetrics()
	o := Apply(WithThrowOnError(true), WithMaxRecursionDepth(8), WithMetrics(m))
	assert.True(t, o.ThrowOnError)
	assert.Equal(t, 8, o.MaxRecursionDepth)
	assert.Same(t, m, o.Metrics)
}

func TestWithMaxRecursionDepthIgnoresNonPositive(t *testing.T) {
	o := Apply(WithMaxRecursionDepth(0))
	assert.Equal(t, 32, o.MaxRecursionDepth)
}

func TestStrictOptionsPreset(t *testing.T) {
	o := Apply(StrictOptions()...)
	assert.True(t, o.ThrowOnError)
	assert.True(t, o.StrictUnconsumedDifferential)
}

func TestFastOptionsPreset(t *testing.T) {
	o := Apply(FastOptions()...)
	assert.False(t, o.ThrowOnError)
	assert.Equal(t, 1000, o.DatatypeCacheSize)
}
