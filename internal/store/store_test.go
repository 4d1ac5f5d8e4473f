package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestState(t *testing.T) {
	db := openTemp(t)

	v, err := db.GetState(KeyUserName)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetState(KeyUserName, "Ana"))
	require.NoError(t, db.SetState(KeyUserName, "Ana B"))
	v, err = db.GetState(KeyUserName)
	require.NoError(t, err)
	assert.Equal(t, "Ana B", v)

	assert.False(t, db.SignedIn())
	require.NoError(t, db.SetSignedIn(true))
	assert.True(t, db.SignedIn())
	require.NoError(t, db.SetSignedIn(false))
	assert.False(t, db.SignedIn())
}

func TestImports(t *testing.T) {
	db := openTemp(t)
	first := NewBatchID()
	second := NewBatchID()
	require.NotEqual(t, first, second)

	require.NoError(t, db.RecordImports([]Import{
		{BatchID: first, CalendarID: "work", EventID: "e1", Date: "2025-08-18", StartTime: "09:00", EndTime: "17:00", Location: "Store", Status: StatusImported},
		{BatchID: first, CalendarID: "work", Date: "2025-08-19", StartTime: "09:00", EndTime: "17:00", Location: "Store", Status: StatusFailed, Error: "boom"},
	}))
	require.NoError(t, db.RecordImports([]Import{
		{BatchID: second, CalendarID: "work", EventID: "e3", Date: "2025-08-25", StartTime: "10:00", EndTime: "14:00", Location: "Depot", Status: StatusImported},
	}))

	recent, err := db.RecentImports(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second, recent[0].BatchID)
	assert.Equal(t, "boom", recent[1].Error)
	assert.Empty(t, recent[1].EventID)
	assert.False(t, recent[0].CreatedAt.IsZero())

	batch, err := db.BatchImports(first)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "e1", batch[0].EventID)
	assert.Equal(t, StatusFailed, batch[1].Status)

	short, err := db.BatchImports(second[:8])
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, "e3", short[0].EventID)

	_, err = db.BatchImports("")
	assert.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.SetState(KeyCalendarID, "work"))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.GetState(KeyCalendarID)
	require.NoError(t, err)
	assert.Equal(t, "work", v)
}
