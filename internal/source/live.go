package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/ledger"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/metrics"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
)

// ErrRPCUnavailable marks a transport-level failure against Soroban RPC.
// The caller still receives usable (unchanged) data alongside it.
var ErrRPCUnavailable = errors.New("rpc unavailable")

// Live pulls contract events straight from Soroban RPC and decodes them.
type Live struct {
	rpc      *ledger.Client
	contract string
	limit    int
}

func NewLive(rpc *ledger.Client, contract string, pageLimit int) *Live {
	return &Live{rpc: rpc, contract: contract, limit: pageLimit}
}

// StartCursor computes the initial fetch cursor: lookback ledgers behind the
// current tip, floored at the genesis sequence.
func (l *Live) StartCursor(ctx context.Context, lookback uint32) (uint32, error) {
	latest, err := l.rpc.LatestSequence(ctx)
	if err != nil {
		metrics.FetchFail("rpc")
		return 0, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	if lookback >= latest {
		return 1, nil
	}
	return latest - lookback, nil
}

// FetchLive queries events at or after sinceSeq and appends newly discovered
// messages to existing. Events already present in existing are dropped here,
// before the merge even sees them. The returned cursor is the latest ledger
// the RPC reported, for the next poll.
//
// On RPC failure the accumulator and cursor come back unchanged together
// with ErrRPCUnavailable; the feed keeps serving what it already has.
func (l *Live) FetchLive(ctx context.Context, existing []model.ChatMessage, sinceSeq uint32) ([]model.ChatMessage, uint32, error) {
	res, err := l.rpc.Events(ctx, l.contract, sinceSeq, l.limit)
	if err != nil {
		metrics.FetchFail("rpc")
		return existing, sinceSeq, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	metrics.FetchOK("rpc")

	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	out := existing
	for _, ev := range res.Events {
		if ev.Type != "contract" {
			metrics.EventSkipped("category")
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		msg, err := decodeEvent(ev)
		if err != nil {
			metrics.EventSkipped("malformed")
			logrus.WithError(err).WithField("event_id", ev.ID).Debug("skipping malformed event")
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}

	next := res.LatestLedger
	if next < sinceSeq {
		next = sinceSeq
	}
	logrus.WithFields(logrus.Fields{
		"fetched": len(res.Events),
		"new":     len(out) - len(existing),
		"cursor":  next,
	}).Debug("live fetch complete")
	return out, next, nil
}
