package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds waits on background work in tests: queue
// workers, scheduled jobs and event consumers.
const DefaultTestTimeout = 5 * time.Second

// WaitForChannel blocks until ch yields or is closed, failing the test with
// msg when timeout passes first.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		require.FailNowf(t, msg, "nothing received within %s", timeout)
	}
}
