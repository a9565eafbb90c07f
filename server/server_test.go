package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/marcopiovanello/ytdl-eta/server/config"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerRoutes(t *testing.T) {
	conf := &config.Config{}
	conf.Paths.DownloadPath = t.TempDir()
	conf.Source.Backend = source.BackendYouTube
	conf.Download.ChunkSize = "64KiB"
	conf.Archive.BucketURL = "mem://"

	frontend := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>ytdl-eta</html>")},
	}

	scfg, err := newServerConfig(context.Background(), conf, frontend)
	require.NoError(t, err)
	defer scfg.release()

	srv := httptest.NewServer(newServer(scfg).Handler)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "ytdl-eta")

	res, err = http.Get(srv.URL + "/status/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/api/v1/download")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestNewServerConfigRejectsBackend(t *testing.T) {
	conf := &config.Config{}
	conf.Paths.DownloadPath = t.TempDir()
	conf.Source.Backend = "vimeo"
	conf.Download.ChunkSize = "1MiB"

	_, err := newServerConfig(context.Background(), conf, fstest.MapFS{})
	assert.Error(t, err)
}
