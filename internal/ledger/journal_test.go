package ledger

import (
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalAppend(t *testing.T) {
	journal, err := OpenJournal("sqlite3", ":memory:")
	require.NoError(t, err)
	defer journal.Close()

	// Test case 1: Entries accumulate
	assert.NoError(t, journal.Append("player-registered", "1", "forest"))
	assert.NoError(t, journal.Append("action-submitted", "1", ""))
	assert.NoError(t, journal.Append("request-issued", "req-1", "action-resolution"))

	count, err := journal.Count()
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Test case 2: Counting by kind
	count, err = journal.CountKind("player-registered")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = journal.CountKind("request-resolved")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestManagerJournaling(t *testing.T) {
	manager, pc, orc := newTestManager(t)

	journal, err := OpenJournal("sqlite3", ":memory:")
	require.NoError(t, err)
	defer journal.Close()
	manager.SetJournal(journal)

	playerID, ownerToken := registerPlayer(t, manager, pc, "forest")
	requestID := submitMoveNorth(t, manager, pc, playerID, ownerToken)
	require.NoError(t, orc.Deliver(requestID, manager))

	// One entry per state transition along the register/submit/resolve path
	for kind, want := range map[string]int64{
		"player-registered": 1,
		"zone-initialized":  1,
		"action-submitted":  1,
		"request-issued":    1,
		"request-resolved":  1,
	} {
		count, err := journal.CountKind(kind)
		assert.NoError(t, err)
		assert.Equal(t, want, count, kind)
	}
}
