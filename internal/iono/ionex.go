// Package iono fetches IONEX total electron content archives used for
// ionosphere delay corrections.
package iono

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/properties"
	"github.com/gammazero/workerpool"
	"golang.org/x/oauth2/clientcredentials"
)

const downloadWorkers = 4

// FileName derives the IONEX archive name for a sensing date, e.g.
// jplg1210.22i.Z for 2022-05-01.
func FileName(date time.Time) string {
	return fmt.Sprintf("jplg%03d0.%02di.Z", date.YearDay(), date.Year()%100)
}

// Client downloads IONEX archives into a local directory.
type Client struct {
	archiveURL string
	outputDir  string
	httpClient *http.Client
}

// NewClient builds a downloader from the environment. The token endpoint is
// optional; without it requests go out unauthenticated.
func NewClient(ctx context.Context, outputDir string) (*Client, error) {
	archiveURL := properties.TecArchiveUrl()
	if archiveURL == "" {
		return nil, fmt.Errorf("failed to configure TEC download: CSLC_TEC_ARCHIVE_URL not set")
	}

	httpClient := http.DefaultClient
	if tokenURL := properties.TecTokenUrl(); tokenURL != "" {
		conf := &clientcredentials.Config{
			ClientID:     properties.TecClientId(),
			ClientSecret: properties.TecClientSecret(),
			TokenURL:     tokenURL,
		}
		httpClient = conf.Client(ctx)
	}

	return &Client{
		archiveURL: strings.TrimRight(archiveURL, "/"),
		outputDir:  outputDir,
		httpClient: httpClient,
	}, nil
}

// Fetch downloads the IONEX file for one date, skipping files already on
// disk, and returns the local path.
func (c *Client) Fetch(ctx context.Context, date time.Time) (string, error) {
	name := FileName(date)
	localPath := filepath.Join(c.outputDir, name)
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	url := fmt.Sprintf("%s/%d/%03d/%s", c.archiveURL, date.Year(), date.YearDay(), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build TEC request: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download TEC file %s: %v", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download TEC file %s: status %d", name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.outputDir, name+".part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp TEC file: %v", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write TEC file %s: %v", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close TEC file %s: %v", name, err)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move TEC file %s: %v", name, err)
	}
	return localPath, nil
}

// Prefetch downloads the IONEX files for a set of dates concurrently and
// returns local paths keyed by date string.
func (c *Client) Prefetch(ctx context.Context, dates []time.Time) (map[string]string, error) {
	wp := workerpool.New(downloadWorkers)
	var mu sync.Mutex
	paths := make(map[string]string, len(dates))
	var firstErr error

	for _, date := range dates {
		date := date
		wp.Submit(func() {
			path, err := c.Fetch(ctx, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			paths[date.Format("20060102")] = path
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return paths, nil
}
