//go:build unix

package transport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}

func TestFetchInsufficientSpace(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "huge.mp4")

	err := NewFile(Options{}).Fetch(context.Background(),
		&memHandle{data: []byte("tiny"), size: 1 << 62}, dest, nil)

	assert.ErrorIs(t, err, ErrInsufficientSpace)
	assert.NoFileExists(t, dest+partSuffix)
}
