// Package dispatcher queues uploads for a single integration and
// drains them at a rate the analysis service tolerates, smoothing
// bursts of newly-discovered references into a steady trickle.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/store"
	"github.com/fossas/broker/internal/uploader"
)

// Uploader is the subset of uploader.Uploader a Dispatcher depends on.
type Uploader interface {
	Upload(ctx context.Context, meta uploader.Metadata, artifact domain.AnalysisArtifact) error
}

// Dispatcher serializes and rate-limits uploads for one integration.
// Each integration gets its own Dispatcher so a slow or throttled
// integration never starves another.
type Dispatcher struct {
	integrationID string
	team          string
	title         string

	uploader Uploader
	store    store.Store
	limiter  *rate.Limiter

	tasks chan domain.UploadTask
	done  chan struct{}
}

// defaultQueueDepth bounds how many discovered-but-unsent references a
// Dispatcher buffers before Enqueue starts blocking (backpressure into
// the scan pool).
const defaultQueueDepth = 64

// drainTimeout bounds how long drain gets to flush the buffered queue
// once the Dispatcher's own context has already been cancelled.
const drainTimeout = 30 * time.Second

// New returns a Dispatcher for one integration. The limiter enforces
// one upload per minute with a burst of one.
func New(integrationID, team, title string, up Uploader, st store.Store) *Dispatcher {
	return &Dispatcher{
		integrationID: integrationID,
		team:          team,
		title:         title,
		uploader:      up,
		store:         st,
		limiter:       rate.NewLimiter(rate.Every(time.Minute), 1),
		tasks:         make(chan domain.UploadTask, defaultQueueDepth),
		done:          make(chan struct{}),
	}
}

// Enqueue adds task to the queue, blocking if it is full. Blocking
// here is the backpressure mechanism: a saturated Dispatcher slows the
// Scan Pool producing work for it.
func (d *Dispatcher) Enqueue(ctx context.Context, task domain.UploadTask) error {
	select {
	case d.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled, waiting on the rate
// limiter before each upload attempt. It returns once the queue is
// drained after cancellation or the context is done, whichever is
// observed first by the caller via Wait.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		// Check cancellation first so a task still buffered at shutdown
		// goes through drain instead of a cancelled limiter wait.
		if ctx.Err() != nil {
			d.drain()
			return
		}
		select {
		case task := <-d.tasks:
			d.process(ctx, task)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

// drain flushes whatever is already buffered without waiting for new
// work, used during graceful shutdown. It attempts each upload against
// a fresh, independently-bounded context rather than the Dispatcher's
// own (already cancelled) one, so queued uploads do not fail
// immediately with context canceled. Each upload still waits on the
// rate limiter: at one token per minute, no more than one buffered
// task can be uploaded inside the drainTimeout window, and the
// remaining tasks are dropped at the limiter without an upload.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case task := <-d.tasks:
			d.process(ctx, task)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, task domain.UploadTask) {
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	meta := uploader.Metadata{
		IntegrationID: d.integrationID,
		Reference:     task.Reference,
		Team:          d.team,
		Title:         d.title,
	}
	if err := d.uploader.Upload(ctx, meta, task.Artifact); err != nil {
		slog.Error("upload failed, reference will be retried on a future discovery cycle",
			"integration_id", d.integrationID, "reference", task.Reference.String(), "error", err)
		return
	}

	rec := domain.ScanRecord{
		IntegrationID: task.Reference.IntegrationID,
		Kind:          task.Reference.Kind,
		Name:          task.Reference.Name,
		Revision:      task.Reference.Revision,
		UploadedAt:    time.Now().UTC(),
	}
	if err := d.store.RecordScanned(ctx, rec); err != nil {
		slog.Error("recording scanned reference failed; it may be uploaded again",
			"integration_id", d.integrationID, "reference", task.Reference.String(), "error", err)
	}
}

// Wait blocks until Run has returned and any buffered drain completed.
func (d *Dispatcher) Wait() {
	<-d.done
}

// QueueDepth reports how many tasks are currently buffered, for
// observability.
func (d *Dispatcher) QueueDepth() int {
	return len(d.tasks)
}
