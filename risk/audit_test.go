package risk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/signalrouter/types"
)

func auditRec(id string) types.ExecutionRecord {
	return types.ExecutionRecord{ID: id, Status: types.StatusRejected}
}

func TestAuditLogEvictsOldest(t *testing.T) {
	a := newAuditLog(3)

	for i := 0; i < 5; i++ {
		a.append(auditRec(fmt.Sprintf("r%d", i)))
	}

	recs := a.recent(0)
	require.Len(t, recs, 3)
	assert.Equal(t, "r4", recs[0].ID)
	assert.Equal(t, "r3", recs[1].ID)
	assert.Equal(t, "r2", recs[2].ID)
}

func TestAuditLogRecentLimit(t *testing.T) {
	a := newAuditLog(10)
	for i := 0; i < 4; i++ {
		a.append(auditRec(fmt.Sprintf("r%d", i)))
	}

	recs := a.recent(2)
	require.Len(t, recs, 2)
	assert.Equal(t, "r3", recs[0].ID)

	// limit past the stored count returns everything
	assert.Len(t, a.recent(100), 4)
	assert.Empty(t, newAuditLog(10).recent(5))
}

func TestAuditLogDefaultCapacity(t *testing.T) {
	a := newAuditLog(0)
	assert.Equal(t, 500, a.capacity)
}

func TestCopyStatsIsolatesHistogram(t *testing.T) {
	orig := Stats{Received: 2, RejectionReasons: map[string]int64{"neutral direction": 1}}

	cp := copyStats(orig)
	cp.RejectionReasons["neutral direction"] = 42

	assert.Equal(t, int64(1), orig.RejectionReasons["neutral direction"])
}
