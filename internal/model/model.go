package model

import "time"

// ChatMessage is the normalized representation of one chat event,
// regardless of which source (RPC or indexer) produced it.
type ChatMessage struct {
	ID        string    `json:"id"`        // unique event id from the ledger; dedup key
	Sender    string    `json:"sender"`    // strkey address (G... account, C... contract) or "unknown"
	Content   string    `json:"content"`   // decoded message text
	Timestamp time.Time `json:"timestamp"` // ledger close time
	TxHash    string    `json:"txHash"`    // originating transaction, for explorer links only
}
