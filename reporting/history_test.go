package reporting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHistoryStore verifies reports are recorded, listed most recent first and retrievable by run id.
func TestHistoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".abirunner", "history.db")
	store, err := OpenHistoryStore(path)
	require.NoError(t, err)

	first := testReport()
	second := testReport()
	second.RunID = uuid.New()
	second.StartedAt = first.StartedAt.Add(time.Hour)
	second.Outcomes = second.Outcomes[:1]

	require.NoError(t, store.Write(second))
	require.NoError(t, store.Write(first))

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.RunID, all[0].RunID)
	assert.Equal(t, first.RunID, all[1].RunID)

	limited, err := store.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.RunID, limited[0].RunID)

	fetched, err := store.Get(first.RunID)
	require.NoError(t, err)
	assertReportsEqual(t, first, fetched)

	_, err = store.Get(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, store.Close())

	// Reopening keeps previously recorded runs.
	store, err = OpenHistoryStore(path)
	require.NoError(t, err)
	defer store.Close()
	all, err = store.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
