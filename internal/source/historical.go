package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/indexer"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/metrics"
	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
)

// ErrIndexerUnavailable marks an unreachable or misbehaving indexer.
var ErrIndexerUnavailable = errors.New("indexer unavailable")

// Historical pulls the pre-decoded event backlog from the indexer.
type Historical struct {
	idx      *indexer.Client
	contract string
}

// NewHistorical wraps an indexer client; idx may be nil when no indexer is
// configured, in which case FetchHistorical always returns an empty backlog.
func NewHistorical(idx *indexer.Client, contract string) *Historical {
	return &Historical{idx: idx, contract: contract}
}

// FetchHistorical returns all indexed messages for the contract. On any
// failure it returns an empty slice and ErrIndexerUnavailable — the UI must
// still come up with zero history.
func (h *Historical) FetchHistorical(ctx context.Context) ([]model.ChatMessage, error) {
	if h.idx == nil {
		return nil, nil
	}
	rows, err := h.idx.ContractEvents(ctx, h.contract)
	if err != nil {
		metrics.FetchFail("indexer")
		return nil, fmt.Errorf("%w: %v", ErrIndexerUnavailable, err)
	}
	metrics.FetchOK("indexer")

	out := make([]model.ChatMessage, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" {
			metrics.EventSkipped("malformed")
			continue
		}
		ts, err := parseTimeFlexible(r.Timestamp)
		if err != nil {
			metrics.EventSkipped("malformed")
			logrus.WithField("event_id", r.ID).WithError(err).Debug("skipping indexer row")
			continue
		}
		sender := r.Sender
		if sender == "" {
			sender = SenderUnknown
		}
		out = append(out, model.ChatMessage{
			ID:        r.ID,
			Sender:    sender,
			Content:   r.Content,
			Timestamp: ts,
			TxHash:    r.TxHash,
		})
	}
	return out, nil
}
