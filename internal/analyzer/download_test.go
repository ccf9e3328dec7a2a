package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownloaderWritesExecutableFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("#!/bin/sh\necho hi\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "fossa")
	d := NewHTTPDownloader(srv.URL)
	require.NoError(t, d.Download(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)
}

func TestHTTPDownloaderFailsOnNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "fossa")
	d := NewHTTPDownloader(srv.URL)
	require.Error(t, d.Download(context.Background(), dest))
}
