// Package fetch resolves data-file references that may be local paths or
// URLs. Remote files are downloaded once into the per-user cache directory
// and reused on later runs.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mertkara/sharcprep/pkg/config"
)

var DebugLog func(string, ...interface{})

type Client struct {
	http     *http.Client
	cacheDir string
}

type LoggingTransport struct {
	Transport http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if DebugLog != nil {
		DebugLog("requesting url: %s", req.URL.String())
	}

	resp, err := t.Transport.RoundTrip(req)

	if DebugLog != nil {
		if err != nil {
			DebugLog("request for %s failed: %v", req.URL.String(), err)
		} else {
			DebugLog("response for %s: status code %d", req.URL.String(), resp.StatusCode)

			if resp.StatusCode >= 400 && resp.Body != nil {
				bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 500))
				if readErr == nil && len(bodyBytes) > 0 {
					DebugLog("error response body: %s", string(bodyBytes))
				}
			}
		}
	}

	return resp, err
}

func New(cacheDir string) *Client {
	if cacheDir == "" {
		cacheDir = config.GetDatasetCacheDir()
	}

	baseTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	var transport http.RoundTripper = baseTransport
	if DebugLog != nil {
		transport = &LoggingTransport{Transport: baseTransport}
	}

	return &Client{
		http: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: transport,
		},
		cacheDir: cacheDir,
	}
}

func IsURL(pathOrURL string) bool {
	return strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://")
}

// CachedPath returns a local filesystem path for pathOrURL. Local paths pass
// through untouched; URLs are downloaded into the cache keyed by a hash of
// the URL so distinct files with the same base name do not collide.
func (c *Client) CachedPath(ctx context.Context, pathOrURL string) (string, error) {
	if !IsURL(pathOrURL) {
		if _, err := os.Stat(pathOrURL); err != nil {
			return "", fmt.Errorf("file not found at %s", pathOrURL)
		}
		return pathOrURL, nil
	}

	dest := c.cachePathFor(pathOrURL)
	if fileExists(dest) {
		if DebugLog != nil {
			DebugLog("cache hit for %s at %s", pathOrURL, dest)
		}
		return dest, nil
	}

	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := c.download(ctx, pathOrURL, dest); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", pathOrURL, err)
	}

	return dest, nil
}

// cachePathFor derives the cache file name: short URL hash plus the original
// base name, so cached files stay recognizable.
func (c *Client) cachePathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	base := path.Base(url)
	if base == "/" || base == "." {
		base = "download"
	}
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:8])+"_"+base)
}

func (c *Client) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Download to a temp file first so a cancelled run never leaves a
	// truncated file behind in the cache.
	tmp, err := os.CreateTemp(c.cacheDir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dest)
}

// VocabPath resolves a pretrained model reference to a local vocab file. The
// reference may already be a path or an URL; bare model names map to the
// hub's published vocab file.
func (c *Client) VocabPath(ctx context.Context, pretrainedModel string) (string, error) {
	if pretrainedModel == "" {
		return "", fmt.Errorf("pretrained_model is required")
	}

	if !IsURL(pretrainedModel) {
		if fileExists(pretrainedModel) {
			return pretrainedModel, nil
		}
		pretrainedModel = fmt.Sprintf("https://huggingface.co/%s/resolve/main/vocab.txt", pretrainedModel)
	}

	return c.CachedPath(ctx, pretrainedModel)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
