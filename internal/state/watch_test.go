package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatchSeesExternalWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := newTestStore(t)
	require.NoError(t, fs.Load())
	fs.Ensure("seed", 1)
	require.NoError(t, fs.Save())

	ctx, cancel := context.WithCancel(context.Background())
	ticks, err := fs.Watch(ctx)
	require.NoError(t, err)

	// Another session writes the same file.
	other := NewFileStore(fs.Path(), nil)
	require.NoError(t, other.Load())
	other.Ensure("seed", 2)
	require.NoError(t, other.Save())

	select {
	case _, ok := <-ticks:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for external write")
	}

	cancel()
	// Channel closes once the watcher goroutine exits.
	for range ticks {
	}
}
