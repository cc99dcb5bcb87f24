package dump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrabberKeepsMostRecentBytes(t *testing.T) {
	g := NewGrabber(4)
	g.Push([]byte{1, 2})
	g.Push([]byte{3, 4})
	g.Push([]byte{5, 6})

	path := filepath.Join(t.TempDir(), "grab.cu8")
	require.NoError(t, g.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5, 6}, data)
}

func TestGrabberPartialFill(t *testing.T) {
	g := NewGrabber(8)
	g.Push([]byte{1, 2, 3})
	assert.Equal(t, 3, g.Len())

	path := filepath.Join(t.TempDir(), "grab.cu8")
	require.NoError(t, g.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestGrabberOversizeBlockKeepsTail(t *testing.T) {
	g := NewGrabber(3)
	g.Push([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 3, g.Len())

	path := filepath.Join(t.TempDir(), "grab.cu8")
	require.NoError(t, g.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5}, data)
}
