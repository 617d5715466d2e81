package fio

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMap_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmap-a.data")

	// empty file
	mmapIO, err := NewMMapIOManager(path)
	require.NoError(t, err)
	size, err := mmapIO.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
	require.NoError(t, mmapIO.Close())

	fio, err := NewFileIOManager(path)
	require.NoError(t, err)
	_, err = fio.Write([]byte("aa"))
	require.NoError(t, err)
	_, err = fio.Write([]byte("bb"))
	require.NoError(t, err)
	_, err = fio.Write([]byte("cc"))
	require.NoError(t, err)
	require.NoError(t, fio.Close())

	mmapIO2, err := NewMMapIOManager(path)
	require.NoError(t, err)
	defer mmapIO2.Close()

	size, err = mmapIO2.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	b := make([]byte, 2)
	n, err := mmapIO2.Read(b, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("bb"), b)

	_, err = mmapIO2.Read(make([]byte, 4), 4)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMMap_ReadOnly(t *testing.T) {
	mmapIO, err := NewIOManager(filepath.Join(t.TempDir(), "mmap-b.data"), MemoryMap)
	require.NoError(t, err)
	defer mmapIO.Close()

	_, err = mmapIO.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, mmapIO.Sync(), ErrReadOnly)
}
