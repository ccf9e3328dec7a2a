// Package scanpool runs the Scan Pipeline: a global semaphore-bounded
// work pool that clones a reference, analyzes it, and hands the result
// off to that integration's Dispatcher.
package scanpool

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"
	"github.com/fossas/broker/internal/config"
)

// GitAdapter is the subset of gitcli.Adapter the Scan Pool depends on.
type GitAdapter interface {
	CloneBlobless(ctx context.Context, integration config.Integration, revision, destDir string) error
}

// Analyzer is the subset of analyzer.Adapter the Scan Pool depends on.
type Analyzer interface {
	Analyze(ctx context.Context, cloneDir, debugBundleDir string) (domain.AnalysisArtifact, error)
}

// Dispatcher is the subset of dispatcher.Dispatcher the Scan Pool
// depends on: one instance per integration.
type Dispatcher interface {
	Enqueue(ctx context.Context, task domain.UploadTask) error
}

// Pool gates concurrent scans across all integrations behind a single
// global semaphore.
type Pool struct {
	git      GitAdapter
	analyzer Analyzer
	tmpRoot  string
	debugDir string

	sem chan struct{}
	wg  sync.WaitGroup
}

// New returns a Pool with capacity concurrency, rooting scratch clones
// under tmpRoot and debug bundles under debugDir.
func New(concurrency int, git GitAdapter, an Analyzer, tmpRoot, debugDir string) *Pool {
	return &Pool{
		git:      git,
		analyzer: an,
		tmpRoot:  tmpRoot,
		debugDir: debugDir,
		sem:      make(chan struct{}, concurrency),
	}
}

// Submit acquires a pool slot for ref, blocking until one is free or
// ctx is cancelled, then runs the clone → analyze → dispatch pipeline
// in the background and returns as soon as it has been started. A
// caller is only blocked by pool capacity, never by how long an
// individual scan takes: submission and completion are decoupled, so
// one slow reference cannot stall the poll cycle that queued it.
func (p *Pool) Submit(ctx context.Context, integration config.Integration, ref domain.Reference, dispatch Dispatcher) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		p.run(ctx, integration, ref, dispatch)
	}()
	return nil
}

// Wait blocks until every scan started by Submit has finished, used
// during graceful shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// run executes the clone/analyze/dispatch pipeline for one reference.
// Failures at the clone/analyze stage are transient: the reference is
// dropped without being recorded, so it is retried on the next poll
// cycle that still sees it as unscanned.
func (p *Pool) run(ctx context.Context, integration config.Integration, ref domain.Reference, dispatch Dispatcher) {
	workspace, err := os.MkdirTemp(p.tmpRoot, "broker-scan-*")
	if err != nil {
		slog.Error("workspace creation failed, reference will be retried",
			"integration_id", integration.ID, "reference", ref.String(), "error", err)
		return
	}
	defer os.RemoveAll(workspace)

	cloneDir := filepath.Join(workspace, "clone")
	if err := p.git.CloneBlobless(ctx, integration, ref.Revision, cloneDir); err != nil {
		slog.Warn("clone failed, reference will be retried next cycle",
			"integration_id", integration.ID, "reference", ref.String(), "error", err)
		return
	}

	debugBundleDir := filepath.Join(p.debugDir, integration.ID, string(ref.Kind), ref.Revision)
	artifact, err := p.analyzer.Analyze(ctx, cloneDir, debugBundleDir)
	if err != nil {
		if brokererr.Is(err, brokererr.KindAnalyzer) {
			slog.Warn("analyzer failed, reference dropped for this cycle",
				"integration_id", integration.ID, "reference", ref.String(), "error", err)
			return
		}
		slog.Error("analyzer invocation failed unexpectedly, reference dropped for this cycle",
			"integration_id", integration.ID, "reference", ref.String(), "error", err)
		return
	}

	task := domain.UploadTask{
		Reference: ref,
		Artifact:  artifact,
		Team:      integration.Team,
		Title:     integration.Title,
	}
	if err := dispatch.Enqueue(ctx, task); err != nil {
		slog.Error("enqueueing scan result failed, reference will be retried next cycle",
			"integration_id", integration.ID, "reference", ref.String(), "error", err)
	}
}
