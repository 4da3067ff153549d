package risk

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/signalrouter/types"
)

// Stats are the router's running counters. DailyPnL and OpenPositions
// reset daily; the rest accumulate for the process lifetime.
type Stats struct {
	Received     int64
	Executed     int64
	Rejected     int64
	Failed       int64
	DryRun       int64
	QueueDropped int64

	DailyPnL      decimal.Decimal
	OpenPositions int

	RejectionReasons map[string]int64
}

// copyStats returns a defensive copy safe to hand to callers
func copyStats(s Stats) Stats {
	out := s
	out.RejectionReasons = make(map[string]int64, len(s.RejectionReasons))
	for k, v := range s.RejectionReasons {
		out.RejectionReasons[k] = v
	}
	return out
}

// auditLog is a bounded append-only execution log, oldest evicted first
type auditLog struct {
	records  []types.ExecutionRecord
	capacity int
}

func newAuditLog(capacity int) *auditLog {
	if capacity <= 0 {
		capacity = 500
	}
	return &auditLog{
		records:  make([]types.ExecutionRecord, 0, capacity),
		capacity: capacity,
	}
}

func (a *auditLog) append(rec types.ExecutionRecord) {
	if len(a.records) >= a.capacity {
		copy(a.records, a.records[1:])
		a.records = a.records[:len(a.records)-1]
	}
	a.records = append(a.records, rec)
}

// recent returns up to limit records, most-recent-first
func (a *auditLog) recent(limit int) []types.ExecutionRecord {
	if limit <= 0 || limit > len(a.records) {
		limit = len(a.records)
	}

	out := make([]types.ExecutionRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = a.records[len(a.records)-1-i]
	}
	return out
}
