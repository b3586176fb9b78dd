package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	m, err = ParseMetric("l2")
	require.NoError(t, err)
	assert.Equal(t, L2, m)

	_, err = ParseMetric("dot")
	assert.Error(t, err)
}
