package source

import (
	"fmt"
	"strings"
	"time"
)

// parseTimeFlexible accepts the timestamp shapes the two backends produce:
// RFC3339 from Soroban RPC, and either RFC3339 or epoch seconds from the
// indexer, depending on its schema version.
func parseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	allDigits := true
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			allDigits = false
			break
		}
	}
	if allDigits && len(s) >= 9 {
		var sec int64
		for i := 0; i < len(s); i++ {
			sec = sec*10 + int64(s[i]-'0')
		}
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp: %s", s)
}
