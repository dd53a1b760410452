// Package feed owns the reconciled message list: it seeds from the indexer,
// polls Soroban RPC on a fixed cadence, and republishes an immutable snapshot
// after every merge.
package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/metrics"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/reconcile"
)

// State is the feed lifecycle. There is no way back from Stopped; build a
// new Feed to restart.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Status is the degradation surface exposed to the UI: when Degraded is set
// the list may be stale, but it is still served.
type Status struct {
	Degraded  bool      `json:"degraded"`
	LastError string    `json:"lastError,omitempty"`
	LastSync  time.Time `json:"lastSync"`
}

type historicalSource interface {
	FetchHistorical(ctx context.Context) ([]model.ChatMessage, error)
}

type liveSource interface {
	StartCursor(ctx context.Context, lookback uint32) (uint32, error)
	FetchLive(ctx context.Context, existing []model.ChatMessage, sinceSeq uint32) ([]model.ChatMessage, uint32, error)
}

type Options struct {
	Interval time.Duration // poll period
	Lookback uint32        // initial live window, in ledger sequences
}

type Feed struct {
	hist     historicalSource
	live     liveSource
	interval time.Duration
	lookback uint32

	mu     sync.RWMutex
	state  State
	msgs   []model.ChatMessage
	status Status
	cursor uint32 // next startLedger; 0 means not yet established

	subs    map[int]chan struct{}
	nextSub int

	cancel   context.CancelFunc
	inFlight atomic.Bool
}

func New(hist historicalSource, live liveSource, opts Options) *Feed {
	if opts.Interval <= 0 {
		opts.Interval = 12 * time.Second
	}
	return &Feed{
		hist:     hist,
		live:     live,
		interval: opts.Interval,
		lookback: opts.Lookback,
		subs:     make(map[int]chan struct{}),
	}
}

// Start seeds the list (historical backlog, then one live fetch over the
// look-back window) and launches the poll loop. It is an error to start a
// feed twice; a stopped feed stays stopped.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state != Idle {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("feed is %s, cannot start", state)
	}
	f.state = Running
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	f.seed(ctx)
	go f.run(ctx)
	return nil
}

// Stop halts future ticks. An in-flight fetch is not waited for; its result
// merges harmlessly or is discarded (reconciliation is idempotent).
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.state != Running {
		f.mu.Unlock()
		return
	}
	f.state = Stopped
	cancel := f.cancel
	f.mu.Unlock()
	cancel()
	logrus.Info("feed stopped")
}

func (f *Feed) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Snapshot returns a copy of the current merged, sorted message list.
func (f *Feed) Snapshot() []model.ChatMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.ChatMessage, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *Feed) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

// Subscribe returns a channel that receives a (coalesced) signal after each
// publish, plus a cancel func. Read the new list with Snapshot.
func (f *Feed) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan struct{}, 1)
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Feed) seed(ctx context.Context) {
	backlog, err := f.hist.FetchHistorical(ctx)
	if err != nil {
		logrus.WithError(err).Warn("historical backlog unavailable, starting empty")
	} else {
		logrus.WithField("messages", len(backlog)).Info("seeded from indexer")
	}
	f.publish(reconcile.Merge(nil, backlog), err)

	cursor, err := f.live.StartCursor(ctx, f.lookback)
	if err != nil {
		// No cursor yet; the first healthy tick establishes it.
		logrus.WithError(err).Warn("could not establish live cursor")
		f.publish(f.Snapshot(), err)
		return
	}
	f.setCursor(cursor)
	f.tick(ctx)
}

func (f *Feed) run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

// tick performs one live fetch + merge. Ticks never block each other: if the
// previous fetch is still in flight the tick is skipped (merging the late
// result stays correct either way, this just avoids piling up requests).
func (f *Feed) tick(ctx context.Context) {
	if !f.inFlight.CompareAndSwap(false, true) {
		logrus.Debug("fetch still in flight, skipping tick")
		return
	}
	defer f.inFlight.Store(false)

	f.mu.RLock()
	current := f.msgs
	cursor := f.cursor
	f.mu.RUnlock()

	if cursor == 0 {
		c, err := f.live.StartCursor(ctx, f.lookback)
		if err != nil {
			if ctx.Err() == nil {
				f.publish(current, err)
			}
			return
		}
		cursor = c
	}

	fetched, next, err := f.live.FetchLive(ctx, current, cursor)
	if err != nil && ctx.Err() != nil {
		// Shutdown race: the fetch lost its context, not the network.
		return
	}
	f.setCursor(next)
	f.publish(reconcile.Merge(current, fetched), err)
}

func (f *Feed) setCursor(c uint32) {
	f.mu.Lock()
	f.cursor = c
	f.mu.Unlock()
}

// publish swaps in the new list and updates the degradation surface, then
// signals subscribers. Full-list replacement keeps readers from ever seeing
// a partial update.
func (f *Feed) publish(msgs []model.ChatMessage, fetchErr error) {
	f.mu.Lock()
	f.msgs = msgs
	if fetchErr != nil {
		f.status.Degraded = true
		f.status.LastError = fetchErr.Error()
	} else {
		f.status.Degraded = false
		f.status.LastError = ""
		f.status.LastSync = time.Now().UTC()
		metrics.MarkSynced(f.status.LastSync)
	}
	metrics.SetDegraded(f.status.Degraded)
	metrics.SetMessageCount(len(msgs))
	notify := make([]chan struct{}, 0, len(f.subs))
	for _, ch := range f.subs {
		notify = append(notify, ch)
	}
	f.mu.Unlock()

	for _, ch := range notify {
		select {
		case ch <- struct{}{}:
		default: // subscriber hasn't drained the last signal; coalesce
		}
	}
}
