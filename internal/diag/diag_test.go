package diag

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meerk40t/galvo/internal/galvo/engine"
)

func openTemp(t *testing.T) *Recorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diag.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func waitForEvents(t *testing.T, r *Recorder, want int) []SessionEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := r.Events("", time.Unix(0, 0))
		require.NoError(t, err)
		if len(events) >= want {
			return events
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", want)
	return nil
}

func TestHookPersistsJobLifecycleEvents(t *testing.T) {
	r := openTemp(t)
	hook := r.Hook("serial-123")

	hook(engine.Event{Kind: engine.EventJobStart})
	hook(engine.Event{Kind: engine.EventJobFinish, Detail: "Completed"})

	events := waitForEvents(t, r, 2)
	assert.Equal(t, "serial-123", events[0].SerialNumber)
	assert.Equal(t, string(engine.EventJobStart), events[0].Kind)
	assert.Equal(t, string(engine.EventJobFinish), events[1].Kind)
	assert.Equal(t, "Completed", events[1].Detail)
}

func TestHookPersistsStatusSamplesSeparately(t *testing.T) {
	r := openTemp(t)
	hook := r.Hook("serial-xyz")
	hook(engine.Event{Kind: engine.EventStatus, Status: 0x0020})

	var samples []StatusSample
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		samples, err = r.StatusSamples("", time.Unix(0, 0))
		require.NoError(t, err)
		if len(samples) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Len(t, samples, 1)
	assert.Equal(t, "serial-xyz", samples[0].SerialNumber)
	assert.Equal(t, uint16(0x0020), samples[0].StatusWord)

	events, err := r.Events("", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Empty(t, events, "status samples must not leak into session_event")
}

func TestEventsFilterBySerialNumber(t *testing.T) {
	r := openTemp(t)
	r.Hook("a")(engine.Event{Kind: engine.EventAbort})
	r.Hook("b")(engine.Event{Kind: engine.EventAbort})
	waitForEvents(t, r, 2)

	onlyA, err := r.Events("a", time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, "a", onlyA[0].SerialNumber)
}

func TestEventRoundTripFieldsSurviveStorage(t *testing.T) {
	r := openTemp(t)
	r.Hook("round-trip")(engine.Event{Kind: engine.EventFootswitch, Detail: "pressed"})
	events := waitForEvents(t, r, 1)

	want := SessionEvent{
		SerialNumber: "round-trip",
		Kind:         string(engine.EventFootswitch),
		Detail:       "pressed",
	}
	got := events[0]
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(SessionEvent{}, "ID", "AtUnixNanos")); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenIsIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.db")
	r1, err := Open(path)
	require.NoError(t, err)
	r1.Hook("s")(engine.Event{Kind: engine.EventAbort})
	waitForEvents(t, r1, 1)
	require.NoError(t, r1.Close())

	r2, err := Open(path)
	require.NoError(t, err)
	defer r2.Close()
	events, err := r2.Events("", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Len(t, events, 1, "reopening must not re-run migrations destructively")
}
