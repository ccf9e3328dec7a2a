package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"
	"github.com/fossas/broker/internal/config"
)

type fakeDiscovery struct {
	mu    sync.Mutex
	calls int
	refs  []domain.Reference
	err   error
}

func (f *fakeDiscovery) Run(ctx context.Context, integration config.Integration) ([]domain.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.refs, f.err
}

func (f *fakeDiscovery) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSubmitter struct {
	mu   sync.Mutex
	refs []domain.Reference
}

func (f *fakeSubmitter) Submit(ctx context.Context, integration config.Integration, ref domain.Reference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refs)
}

func TestPollerRunsImmediatelyOnStartup(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscovery{refs: []domain.Reference{{Name: "refs/heads/main"}}}
	sub := &fakeSubmitter{}
	integration := config.Integration{ID: "int1", PollInterval: config.Duration(time.Hour)}
	p := New(integration, disc, sub)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	require.Eventually(t, func() bool { return disc.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestPollerSkipsCycleOnAuthError(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscovery{err: brokererr.New(brokererr.KindAuth, "git.list_refs", assertErr("denied"))}
	sub := &fakeSubmitter{}
	integration := config.Integration{ID: "int1", PollInterval: config.Duration(time.Hour)}
	p := New(integration, disc, sub)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	require.Eventually(t, func() bool { return disc.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sub.count())
	cancel()
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
