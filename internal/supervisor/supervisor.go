// Package supervisor owns Broker's process lifecycle: boot (construct
// components from a config already loaded and validated by
// config.Load and a store already migrated by store.Open), spawn (one
// Poller and one Dispatcher per integration, a shared Scan Pool), and
// shutdown (cancel, drain dispatchers for a bounded grace period, then
// force-close).
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/analyzer"
	"github.com/fossas/broker/internal/config"
	"github.com/fossas/broker/internal/discovery"
	"github.com/fossas/broker/internal/dispatcher"
	"github.com/fossas/broker/internal/gitcli"
	"github.com/fossas/broker/internal/poller"
	"github.com/fossas/broker/internal/scanpool"
	"github.com/fossas/broker/internal/store"
	"github.com/fossas/broker/internal/uploader"
)

// drainTimeout bounds how long dispatchers get to flush their queues
// after shutdown is signalled.
const drainTimeout = 30 * time.Second

// gitTimeout and analyzeTimeout bound each subprocess invocation.
const (
	gitTimeout     = 2 * time.Minute
	analyzeTimeout = 10 * time.Minute
)

// Supervisor owns every long-lived component Broker spawns.
type Supervisor struct {
	cfg      *config.Config
	store    store.Store
	dataRoot string
	tmpRoot  string

	pollers     []*poller.Poller
	dispatchers []*dispatcher.Dispatcher
	pool        *scanpool.Pool
	sweeper     *retentionSweeper
}

// New constructs a Supervisor, wiring one Poller and one Dispatcher
// per configured integration around a shared Scan Pool and Reference
// Store.
func New(cfg *config.Config, st store.Store, dataRoot, tmpRoot string) *Supervisor {
	s := &Supervisor{cfg: cfg, store: st, dataRoot: dataRoot, tmpRoot: tmpRoot}

	git := gitcli.New(gitTimeout, tmpRoot)
	downloader := analyzer.NewHTTPDownloader(cfg.FossaEndpoint + "/cli")
	an := analyzer.New(dataRoot, analyzeTimeout, downloader)
	up := uploader.New(cfg.FossaEndpoint, cfg.FossaIntegrationKey)
	pool := scanpool.New(cfg.Concurrency, git, an, tmpRoot, cfg.Debugging.Location)
	s.pool = pool
	disc := discovery.New(git, st)

	for _, integration := range cfg.Integrations {
		disp := dispatcher.New(integration.ID, integration.Team, integration.Title, up, st)
		s.dispatchers = append(s.dispatchers, disp)

		sub := &poolSubmitter{pool: pool, dispatch: disp}
		s.pollers = append(s.pollers, poller.New(integration, disc, sub))
	}

	s.sweeper = newRetentionSweeper(cfg.Debugging.Location, time.Duration(cfg.Debugging.Retention.Days)*24*time.Hour)

	return s
}

// poolSubmitter adapts a shared scanpool.Pool plus one integration's
// Dispatcher into the poller.Submitter interface.
type poolSubmitter struct {
	pool     *scanpool.Pool
	dispatch *dispatcher.Dispatcher
}

func (s *poolSubmitter) Submit(ctx context.Context, integration config.Integration, ref domain.Reference) error {
	return s.pool.Submit(ctx, integration, ref, s.dispatch)
}

// Run spawns every Poller, Dispatcher, and the retention sweeper, then
// blocks until ctx is cancelled. On cancellation it waits up to
// drainTimeout for dispatchers to flush before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.tmpRoot, 0o755); err != nil {
		return fmt.Errorf("creating temp root: %w", err)
	}

	var wg sync.WaitGroup

	for _, disp := range s.dispatchers {
		wg.Add(1)
		go func(d *dispatcher.Dispatcher) {
			defer wg.Done()
			d.Run(ctx)
		}(disp)
	}

	for _, p := range s.pollers {
		wg.Add(1)
		go func(p *poller.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sweeper.run(ctx)
	}()

	// The Scan Pool runs scans in the background relative to Submit, so
	// shutdown must also wait for any in-flight scan to finish before
	// considering the supervisor drained.
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pool.Wait()
	}()

	slog.Info("supervisor started", "integrations", len(s.pollers), "concurrency", s.cfg.Concurrency)

	<-ctx.Done()
	slog.Info("supervisor received shutdown signal, draining dispatchers", "timeout", drainTimeout)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		// The pool.Wait goroutine above usually returns at startup, before
		// any scan is submitted. The pollers have returned by now, so no
		// new scan can start, and this wait covers every scan in flight.
		s.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("supervisor shutdown complete")
	case <-time.After(drainTimeout):
		slog.Warn("supervisor shutdown grace period elapsed, forcing exit",
			"outstanding_dispatchers", s.outstandingQueueDepth())
	}

	return nil
}

func (s *Supervisor) outstandingQueueDepth() int {
	total := 0
	for _, d := range s.dispatchers {
		total += d.QueueDepth()
	}
	return total
}
