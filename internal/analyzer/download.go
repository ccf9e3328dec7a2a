package analyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
)

// HTTPDownloader fetches the analyzer CLI for the current OS/arch from
// <ReleaseBaseURL>/fossa_<os>_<arch> and writes the response body to
// destPath as is; an archive is not unpacked.
type HTTPDownloader struct {
	// ReleaseBaseURL points at the release host, e.g.
	// "https://github.com/fossas/fossa-cli/releases/latest/download".
	ReleaseBaseURL string
	Client         *http.Client
}

func NewHTTPDownloader(releaseBaseURL string) *HTTPDownloader {
	return &HTTPDownloader{
		ReleaseBaseURL: releaseBaseURL,
		Client:         &http.Client{},
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, destPath string) error {
	assetURL := fmt.Sprintf("%s/fossa_%s_%s", d.ReleaseBaseURL, runtime.GOOS, runtime.GOARCH)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", assetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("downloading %s: server returned %d", assetURL, resp.StatusCode)
	}

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	return nil
}
