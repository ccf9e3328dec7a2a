// Package analyzer wraps the external analysis CLI: resolving its
// binary (PATH, then the data root), invoking it against a clone, and
// collecting its structured output and debug bundle.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"
)

const binaryName = "fossa"

// Adapter invokes the analyzer CLI.
type Adapter struct {
	// DataRoot is where a downloaded copy of the analyzer binary lives
	// when it isn't found on PATH.
	DataRoot string
	// Timeout bounds each analyzer invocation.
	Timeout time.Duration
	// Downloader fetches a pinned analyzer release into DataRoot when
	// resolution fails on both PATH and DataRoot. Nil disables download.
	Downloader Downloader
}

// Downloader fetches the analyzer binary to destPath.
type Downloader interface {
	Download(ctx context.Context, destPath string) error
}

// New returns an Adapter using dataRoot as its binary cache and the
// given per-invocation timeout.
func New(dataRoot string, timeout time.Duration, downloader Downloader) *Adapter {
	return &Adapter{DataRoot: dataRoot, Timeout: timeout, Downloader: downloader}
}

// Resolve returns the path to the analyzer binary, consulting PATH
// first and falling back to a version downloaded into the data root.
func (a *Adapter) Resolve(ctx context.Context) (string, error) {
	if p, err := exec.LookPath(binaryName); err == nil {
		return p, nil
	}

	cached := filepath.Join(a.DataRoot, binaryName)
	if info, err := os.Stat(cached); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
		return cached, nil
	}

	if a.Downloader == nil {
		return "", fmt.Errorf("analyzer binary %q not found on PATH or in data root, and no downloader configured", binaryName)
	}
	if err := os.MkdirAll(a.DataRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating data root: %w", err)
	}
	if err := a.Downloader.Download(ctx, cached); err != nil {
		return "", fmt.Errorf("downloading analyzer binary: %w", err)
	}
	if err := os.Chmod(cached, 0o755); err != nil {
		return "", fmt.Errorf("making analyzer binary executable: %w", err)
	}
	return cached, nil
}

// Analyze runs the analyzer against cloneDir and returns its output as
// an opaque artifact. A non-zero exit status is a non-fatal warning
// (AnalyzerError), never a fatal error.
func (a *Adapter) Analyze(ctx context.Context, cloneDir, debugBundleDir string) (domain.AnalysisArtifact, error) {
	bin, err := a.Resolve(ctx)
	if err != nil {
		return domain.AnalysisArtifact{}, brokererr.New(brokererr.KindAnalyzer, "analyzer.resolve", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	if err := os.MkdirAll(debugBundleDir, 0o755); err != nil {
		return domain.AnalysisArtifact{}, brokererr.New(brokererr.KindAnalyzer, "analyzer.debug_dir", err)
	}
	resultPath := filepath.Join(debugBundleDir, "fossa-analysis.json")

	// nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command
	cmd := exec.CommandContext(ctx, bin, "analyze", "--output", resultPath)
	cmd.Dir = cloneDir

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()

	debugBundlePath := filepath.Join(debugBundleDir, "debug.json.gz")
	if _, statErr := os.Stat(debugBundlePath); statErr != nil {
		debugBundlePath = ""
	}

	if runErr != nil {
		return domain.AnalysisArtifact{}, brokererr.New(brokererr.KindAnalyzer, "analyzer.run",
			fmt.Errorf("%w: %s", runErr, combined.String()))
	}

	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return domain.AnalysisArtifact{}, brokererr.New(brokererr.KindAnalyzer, "analyzer.read_output", err)
	}

	return domain.AnalysisArtifact{
		Path:            resultPath,
		DebugBundlePath: debugBundlePath,
		Raw:             raw,
	}, nil
}
