package reconcile

import (
	"sort"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
)

// Merge combines two message slices into one deduplicated list sorted
// ascending by timestamp. Duplicates are resolved by ID with the first
// occurrence winning (current before incoming), so when the same event
// arrives from both the indexer and the RPC the copy already held is kept.
//
// Ties on equal timestamps keep their merge insertion order (stable sort,
// no secondary key). Merge never mutates its inputs and is idempotent:
// Merge(x, nil) and Merge(x, x) both return x sorted.
func Merge(current, incoming []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(current)+len(incoming))
	seen := make(map[string]struct{}, len(current)+len(incoming))

	for _, batch := range [][]model.ChatMessage{current, incoming} {
		for _, m := range batch {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
