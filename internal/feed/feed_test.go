package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration) model.ChatMessage {
	return model.ChatMessage{ID: id, Content: "msg " + id, Timestamp: t0.Add(offset)}
}

func ids(msgs []model.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

type fakeHist struct {
	msgs []model.ChatMessage
	err  error
}

func (f *fakeHist) FetchHistorical(context.Context) ([]model.ChatMessage, error) {
	return f.msgs, f.err
}

// fakeLive hands out one batch of new events per FetchLive call and can be
// switched into failure mode or blocked to simulate a slow fetch.
type fakeLive struct {
	mu      sync.Mutex
	batches [][]model.ChatMessage
	err     error
	calls   int
	cursor  uint32
	block   chan struct{} // when set, FetchLive waits on it
}

func (f *fakeLive) StartCursor(context.Context, uint32) (uint32, error) {
	return 100, nil
}

func (f *fakeLive) FetchLive(ctx context.Context, existing []model.ChatMessage, since uint32) ([]model.ChatMessage, uint32, error) {
	f.mu.Lock()
	f.calls++
	blocked := f.block
	err := f.err
	var batch []model.ChatMessage
	if err == nil && len(f.batches) > 0 {
		batch = f.batches[0]
		f.batches = f.batches[1:]
	}
	f.mu.Unlock()

	if blocked != nil {
		<-blocked
	}
	if err != nil {
		return existing, since, err
	}
	f.mu.Lock()
	f.cursor = since + 1
	next := f.cursor
	f.mu.Unlock()
	return append(existing, batch...), next, nil
}

func (f *fakeLive) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLive) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newTestFeed(hist *fakeHist, live *fakeLive) *Feed {
	// Hour-long interval: ticks in these tests are driven by hand.
	return New(hist, live, Options{Interval: time.Hour, Lookback: 50})
}

func TestStartSeedsHistoricalThenLive(t *testing.T) {
	hist := &fakeHist{msgs: []model.ChatMessage{msg("1", 0), msg("2", time.Minute), msg("3", 2*time.Minute)}}
	live := &fakeLive{batches: [][]model.ChatMessage{{msg("3", 2*time.Minute), msg("4", 3*time.Minute)}}}
	f := newTestFeed(hist, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))

	assert.Equal(t, Running, f.State())
	got := f.Snapshot()
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(got))

	st := f.Status()
	assert.False(t, st.Degraded)
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastSync.IsZero())
}

func TestStartTwiceFails(t *testing.T) {
	f := newTestFeed(&fakeHist{}, &fakeLive{})
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))
	err := f.Start(context.Background())
	assert.ErrorContains(t, err, "running")
}

func TestHistoricalFailureStillComesUp(t *testing.T) {
	hist := &fakeHist{err: errors.New("indexer unavailable: 503")}
	live := &fakeLive{batches: [][]model.ChatMessage{{msg("a", 0)}}}
	f := newTestFeed(hist, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))

	// The live seed succeeded, so the feed is healthy with live data only.
	assert.Equal(t, []string{"a"}, ids(f.Snapshot()))
	assert.False(t, f.Status().Degraded)
}

func TestFailedTickLeavesListIntact(t *testing.T) {
	hist := &fakeHist{msgs: []model.ChatMessage{msg("1", 0), msg("2", time.Minute)}}
	live := &fakeLive{}
	f := newTestFeed(hist, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))
	before := f.Snapshot()

	live.setErr(errors.New("rpc unavailable: connection refused"))
	f.tick(context.Background())

	assert.Equal(t, before, f.Snapshot())
	st := f.Status()
	assert.True(t, st.Degraded)
	assert.Contains(t, st.LastError, "rpc unavailable")
}

func TestTickRecoversAfterFailure(t *testing.T) {
	live := &fakeLive{batches: [][]model.ChatMessage{{}, {msg("new", time.Minute)}}}
	f := newTestFeed(&fakeHist{}, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))

	live.setErr(errors.New("boom"))
	f.tick(context.Background())
	assert.True(t, f.Status().Degraded)

	live.setErr(nil)
	f.tick(context.Background())
	assert.False(t, f.Status().Degraded)
	assert.Equal(t, []string{"new"}, ids(f.Snapshot()))
}

func TestTickMergesWithoutDuplicates(t *testing.T) {
	hist := &fakeHist{msgs: []model.ChatMessage{msg("1", 0)}}
	live := &fakeLive{batches: [][]model.ChatMessage{
		{msg("2", time.Minute)},
		{msg("2", time.Minute), msg("3", 2 * time.Minute)},
	}}
	f := newTestFeed(hist, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))
	f.tick(context.Background())

	assert.Equal(t, []string{"1", "2", "3"}, ids(f.Snapshot()))
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	live := &fakeLive{}
	f := New(&fakeHist{}, live, Options{Interval: 10 * time.Millisecond, Lookback: 50})

	require.NoError(t, f.Start(context.Background()))
	require.Eventually(t, func() bool { return live.callCount() >= 2 }, time.Second, time.Millisecond)

	f.Stop()
	assert.Equal(t, Stopped, f.State())

	// Let any tick that raced the cancel finish before sampling.
	time.Sleep(20 * time.Millisecond)
	calls := live.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, live.callCount())

	// No restart from Stopped.
	err := f.Start(context.Background())
	assert.ErrorContains(t, err, "stopped")
}

func TestStopIsIdempotentAndSafeWhenIdle(t *testing.T) {
	f := newTestFeed(&fakeHist{}, &fakeLive{})
	f.Stop() // never started
	assert.Equal(t, Idle, f.State())

	require.NoError(t, f.Start(context.Background()))
	f.Stop()
	f.Stop()
	assert.Equal(t, Stopped, f.State())
}

func TestStopWithInFlightFetchStaysConsistent(t *testing.T) {
	hist := &fakeHist{msgs: []model.ChatMessage{msg("1", 0)}}
	release := make(chan struct{})
	live := &fakeLive{batches: [][]model.ChatMessage{{}, {msg("1", 0), msg("2", time.Minute)}}}
	f := newTestFeed(hist, live)

	require.NoError(t, f.Start(context.Background()))

	live.mu.Lock()
	live.block = release
	live.mu.Unlock()

	tickDone := make(chan struct{})
	go func() {
		f.tick(context.Background())
		close(tickDone)
	}()
	require.Eventually(t, func() bool { return live.callCount() == 2 }, time.Second, time.Millisecond)

	f.Stop() // must not wait for the in-flight fetch
	assert.Equal(t, Stopped, f.State())

	close(release)
	<-tickDone

	// The late result merged harmlessly: still sorted, still duplicate-free.
	got := f.Snapshot()
	assert.Equal(t, []string{"1", "2"}, ids(got))

	calls := live.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, live.callCount())
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	release := make(chan struct{})
	live := &fakeLive{batches: [][]model.ChatMessage{{}, {}}}
	f := newTestFeed(&fakeHist{}, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))

	live.mu.Lock()
	live.block = release
	live.mu.Unlock()

	tickDone := make(chan struct{})
	go func() {
		f.tick(context.Background())
		close(tickDone)
	}()
	require.Eventually(t, func() bool { return live.callCount() == 2 }, time.Second, time.Millisecond)

	f.tick(context.Background()) // should be skipped, not queued
	assert.Equal(t, 2, live.callCount())

	close(release)
	<-tickDone
}

func TestSubscribeSignalsOnPublish(t *testing.T) {
	live := &fakeLive{batches: [][]model.ChatMessage{{}, {msg("x", 0)}}}
	f := newTestFeed(&fakeHist{}, live)
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))

	ch, cancel := f.Subscribe()
	defer cancel()

	f.tick(context.Background())

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a publish signal")
	}
	assert.Equal(t, []string{"x"}, ids(f.Snapshot()))
}

func TestSnapshotIsACopy(t *testing.T) {
	hist := &fakeHist{msgs: []model.ChatMessage{msg("1", 0), msg("2", time.Minute)}}
	f := newTestFeed(hist, &fakeLive{})
	defer f.Stop()

	require.NoError(t, f.Start(context.Background()))

	snap := f.Snapshot()
	snap[0].Content = "tampered"

	assert.Equal(t, "msg 1", f.Snapshot()[0].Content)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
}
