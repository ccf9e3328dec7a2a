package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchDir(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestSweepRemovesOnlyExpiredDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	now := time.Now()

	expired := filepath.Join(root, "int1")
	touchDir(t, expired, now.Add(-48*time.Hour))

	fresh := filepath.Join(root, "int2")
	touchDir(t, fresh, now)

	sweeper := newRetentionSweeper(root, 24*time.Hour)
	sweeper.sweep()

	_, err := os.Stat(expired)
	assert.True(t, os.IsNotExist(err), "expired directory should have been removed")

	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh directory must survive the sweep")
}

func TestSweepIgnoresRegularFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	stray := filepath.Join(root, "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(stray, time.Now().Add(-48*time.Hour), time.Now().Add(-48*time.Hour)))

	sweeper := newRetentionSweeper(root, 24*time.Hour)
	sweeper.sweep()

	_, err := os.Stat(stray)
	assert.NoError(t, err, "sweep must only remove directories, never files")
}

func TestSweepToleratesMissingLocation(t *testing.T) {
	t.Parallel()

	sweeper := newRetentionSweeper(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour)
	assert.NotPanics(t, func() { sweeper.sweep() })
}

func TestRunSkipsEntirelyWhenLocationEmpty(t *testing.T) {
	t.Parallel()

	sweeper := newRetentionSweeper("", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.run(ctx)
}
