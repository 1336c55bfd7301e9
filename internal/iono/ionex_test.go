package iono

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), "jplg1210.22i.Z"},
		{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), "jplg0010.23i.Z"},
		{time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), "jplg3660.20i.Z"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FileName(tc.date))
	}
}

func testServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "IONEX")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchSkipsExisting(t *testing.T) {
	var hits atomic.Int64
	server := testServer(t, &hits)
	dir := t.TempDir()
	t.Setenv("CSLC_TEC_ARCHIVE_URL", server.URL)
	t.Setenv("CSLC_TEC_TOKEN_URL", "")

	client, err := NewClient(context.Background(), dir)
	require.NoError(t, err)

	date := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	path, err := client.Fetch(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "jplg1210.22i.Z"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "IONEX", string(data))

	// Second fetch finds the file on disk.
	_, err = client.Fetch(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestPrefetchDeduplicatesByDate(t *testing.T) {
	var hits atomic.Int64
	server := testServer(t, &hits)
	dir := t.TempDir()
	t.Setenv("CSLC_TEC_ARCHIVE_URL", server.URL)
	t.Setenv("CSLC_TEC_TOKEN_URL", "")

	client, err := NewClient(context.Background(), dir)
	require.NoError(t, err)

	dates := []time.Time{
		time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC),
	}
	paths, err := client.Prefetch(context.Background(), dates)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, "20220501")
	assert.Contains(t, paths, "20220502")
}

func TestNewClientRequiresArchiveURL(t *testing.T) {
	t.Setenv("CSLC_TEC_ARCHIVE_URL", "")

	_, err := NewClient(context.Background(), t.TempDir())
	assert.Error(t, err)
}
