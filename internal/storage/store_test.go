package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoharvest/ghfetch/pkg/search"
)

func testStore(t *testing.T) *RepoStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id int64, name string) search.RepositoryRecord {
	return search.RepositoryRecord{
		ID:               id,
		NameWithOwner:    name,
		Stars:            42,
		Kilobytes:        128,
		CreatedAt:        time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		Description:      "a test repository",
		ClosedIssueCount: 7,
		CommitCount:      310,
		Topics:           []string{"go", "cli"},
		TopicCount:       2,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestSaveRecords_RoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	records := []search.RepositoryRecord{
		testRecord(1001, "octo/alpha"),
		testRecord(1002, "octo/beta"),
	}
	require.NoError(t, store.SaveRecords(ctx, records))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := store.GetRecord(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "octo/alpha", got.NameWithOwner)
	assert.Equal(t, 42, got.Stars)
	assert.Equal(t, []string{"go", "cli"}, got.Topics)
	assert.Equal(t, 2, got.TopicCount)
	assert.True(t, got.CreatedAt.Equal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)))
}

func TestSaveRecords_UpsertOverwrites(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	r := testRecord(2001, "octo/gamma")
	require.NoError(t, store.SaveRecords(ctx, []search.RepositoryRecord{r}))

	r.Stars = 99
	r.Topics = []string{"go"}
	r.TopicCount = 1
	require.NoError(t, store.SaveRecords(ctx, []search.RepositoryRecord{r}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetRecord(ctx, 2001)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 99, got.Stars)
	assert.Equal(t, []string{"go"}, got.Topics)
}

func TestSaveRecords_EmptyBatch(t *testing.T) {
	store := testStore(t)
	assert.NoError(t, store.SaveRecords(context.Background(), nil))
}

func TestGetRecord_Absent(t *testing.T) {
	store := testStore(t)

	got, err := store.GetRecord(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	cp := Checkpoint{
		Query:        "language:go stars:>100",
		WindowMin:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		WindowMax:    time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		TotalFetched: 350,
	}
	require.NoError(t, store.SaveCheckpoint(ctx, cp))

	got, err := store.LoadCheckpoint(ctx, cp.Query)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cp.Query, got.Query)
	assert.True(t, got.WindowMin.Equal(cp.WindowMin))
	assert.True(t, got.WindowMax.Equal(cp.WindowMax))
	assert.Equal(t, 350, got.TotalFetched)
	assert.False(t, got.Completed)

	// Advancing the sweep overwrites the same row.
	cp.WindowMin = cp.WindowMax
	cp.WindowMax = cp.WindowMax.Add(48 * time.Hour)
	cp.TotalFetched = 700
	cp.Completed = true
	require.NoError(t, store.SaveCheckpoint(ctx, cp))

	got, err = store.LoadCheckpoint(ctx, cp.Query)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 700, got.TotalFetched)
	assert.True(t, got.Completed)
}

func TestLoadCheckpoint_Absent(t *testing.T) {
	store := testStore(t)

	got, err := store.LoadCheckpoint(context.Background(), "language:zig")
	require.NoError(t, err)
	assert.Nil(t, got)
}
