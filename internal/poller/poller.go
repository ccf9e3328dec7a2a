// Package poller runs the per-integration poll loop: discover, submit,
// sleep, repeat. The loop is a timer-select over each integration's
// own poll_interval rather than a single fixed check interval; the
// timer is reset after each cycle, so a slow cycle never queues extra
// wakeups.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"
	"github.com/fossas/broker/internal/config"
)

// Discovery is the subset of discovery.Discovery a Poller depends on.
type Discovery interface {
	Run(ctx context.Context, integration config.Integration) ([]domain.Reference, error)
}

// Submitter hands a discovered reference to the Scan Pool. Submission
// may block on pool capacity or dispatcher backpressure; the poller
// waits.
type Submitter interface {
	Submit(ctx context.Context, integration config.Integration, ref domain.Reference) error
}

// Poller drives one integration's Idle → Discovering → Scheduling →
// Sleeping → Idle cycle.
type Poller struct {
	integration config.Integration
	discovery   Discovery
	submitter   Submitter
}

// New returns a Poller for one integration.
func New(integration config.Integration, discovery Discovery, submitter Submitter) *Poller {
	return &Poller{integration: integration, discovery: discovery, submitter: submitter}
}

// Run blocks, executing poll cycles until ctx is cancelled. The first
// cycle runs immediately, with no initial delay.
func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stopping", "integration_id", p.integration.ID)
			return
		case <-timer.C:
			p.runCycle(ctx)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(p.integration.PollInterval.Duration())
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	refs, err := p.discovery.Run(ctx, p.integration)
	if err != nil {
		if brokererr.Is(err, brokererr.KindAuth) || brokererr.Is(err, brokererr.KindTransport) {
			slog.Warn("discovery failed, skipping this cycle",
				"integration_id", p.integration.ID, "error", err)
			return
		}
		slog.Error("discovery failed unexpectedly, skipping this cycle",
			"integration_id", p.integration.ID, "error", err)
		return
	}

	for _, ref := range refs {
		if err := p.submitter.Submit(ctx, p.integration, ref); err != nil {
			if ctx.Err() != nil {
				// Shutdown: abandon any unsubmitted references.
				return
			}
			slog.Error("submitting reference failed, it will be retried next cycle",
				"integration_id", p.integration.ID, "reference", ref.String(), "error", err)
		}
	}
}
