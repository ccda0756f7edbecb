package usecase

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixWriter(t *testing.T) {
	// Setup
	var buf bytes.Buffer
	var mu sync.Mutex
	a := newPrefixWriter(&buf, &mu, "[1.1] ")
	b := newPrefixWriter(&buf, &mu, "[1.2] ")

	// Execute
	_, err := a.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = b.Write([]byte("other\nsecond\n"))
	require.NoError(t, err)
	_, err = a.Write([]byte("world\npartial"))
	require.NoError(t, err)
	require.NoError(t, a.Flush())
	require.NoError(t, b.Flush())

	// Assert
	assert.Equal(t, "[1.2] other\n[1.2] second\n[1.1] hello world\n[1.1] partial\n", buf.String())
}
