package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikv"
	"minikv/logger"
)

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Log
	logger.Log = zerolog.New(&buf)
	t.Cleanup(func() { logger.Log = prev })

	reportError(errors.New("listen tcp: address already in use"))

	output := buf.String()
	assert.Contains(t, output, `"level":"error"`)
	assert.Contains(t, output, "minikv-server exited with error")
	assert.Contains(t, output, "address already in use")
}

func TestApp_ServeMissingConfig(t *testing.T) {
	err := newApp().Run(context.Background(), []string{
		"minikv-server", "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"),
	})
	assert.Error(t, err)
}

func TestApp_Destroy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	db, err := minikv.OpenDefault(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("my key"), []byte("my value")))
	require.NoError(t, db.Close())

	err = newApp().Run(context.Background(), []string{"minikv-server", "destroy", "--dir", dir})
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
