package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
	sqliteStore "github.com/jarvis-labs/neuromem-go/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) storage.FragmentStore {
	t.Helper()

	store, err := sqliteStore.NewClient(&sqliteStore.Config{
		DBPath: filepath.Join(t.TempDir(), "test_neuromem.db"),
	})
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testFragment(userID, content string) *storage.Fragment {
	now := time.Now().UTC()
	return &storage.Fragment{
		UserID:             userID,
		Content:            content,
		MemoryType:         storage.TypeEpisodic,
		Emotion:            emotion.NewContext(0.4, 0.5, "satisfaction", 0.7),
		ImportanceScore:    0.6,
		ConsolidationLevel: storage.LevelVolatile,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
}

func TestSQLiteClient_InsertAssignsID(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	first, err := store.Insert(ctx, testFragment("test_user", "first memory"))
	require.NoError(t, err)
	assert.NotZero(t, first)

	second, err := store.Insert(ctx, testFragment("test_user", "second memory"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSQLiteClient_Get(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	f := testFragment("test_user", "remember the milk")
	id, err := store.Insert(ctx, f)
	require.NoError(t, err)

	got, err := store.Get(ctx, "test_user", id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "test_user", got.UserID)
	assert.Equal(t, "remember the milk", got.Content)
	assert.Equal(t, storage.TypeEpisodic, got.MemoryType)
	assert.InDelta(t, 0.4, got.Emotion.Valence, 1e-9)
	assert.Equal(t, "satisfaction", got.Emotion.DetectedEmotion)
	assert.Equal(t, storage.LevelVolatile, got.ConsolidationLevel)

	// Lookups are scoped by owner.
	_, err = store.Get(ctx, "someone_else", id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSQLiteClient_GetVolatile(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	volatileID, err := store.Insert(ctx, testFragment("test_user", "fresh"))
	require.NoError(t, err)

	settled := testFragment("test_user", "settled")
	settled.ConsolidationLevel = storage.LevelConsolidated
	_, err = store.Insert(ctx, settled)
	require.NoError(t, err)

	rows, err := store.GetVolatile(ctx, "test_user")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, volatileID, rows[0].ID)
}

func TestSQLiteClient_UpdateConsolidationLevelForwardOnly(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, testFragment("test_user", "promotable"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateConsolidationLevel(ctx, id, storage.LevelConsolidated, false))
	got, err := store.Get(ctx, "test_user", id)
	require.NoError(t, err)
	assert.Equal(t, storage.LevelConsolidated, got.ConsolidationLevel)

	// A backward write without force is silently ignored.
	require.NoError(t, store.UpdateConsolidationLevel(ctx, id, storage.LevelVolatile, false))
	got, err = store.Get(ctx, "test_user", id)
	require.NoError(t, err)
	assert.Equal(t, storage.LevelConsolidated, got.ConsolidationLevel)

	// Revival uses force and is allowed to go backward.
	require.NoError(t, store.UpdateConsolidationLevel(ctx, id, storage.LevelArchived, false))
	require.NoError(t, store.UpdateConsolidationLevel(ctx, id, storage.LevelConsolidated, true))
	got, err = store.Get(ctx, "test_user", id)
	require.NoError(t, err)
	assert.Equal(t, storage.LevelConsolidated, got.ConsolidationLevel)
}

func TestSQLiteClient_SearchByKeyword(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, testFragment("test_user", "the dentist appointment is monday"))
	require.NoError(t, err)
	_, err = store.Insert(ctx, testFragment("test_user", "pizza for dinner"))
	require.NoError(t, err)
	_, err = store.Insert(ctx, testFragment("other_user", "dentist on friday"))
	require.NoError(t, err)

	rows, err := store.SearchByKeyword(ctx, "test_user", "dentist", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Content, "monday")
	assert.Greater(t, rows[0].Relevance, 0.0)
}

func TestSQLiteClient_TouchAccess(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, testFragment("test_user", "touched"))
	require.NoError(t, err)

	require.NoError(t, store.TouchAccess(ctx, []int64{id}))
	require.NoError(t, store.TouchAccess(ctx, []int64{id}))

	got, err := store.Get(ctx, "test_user", id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.AccessCount)
	assert.False(t, got.LastAccessedAt.Before(got.CreatedAt))

	// Touching no rows is a no-op, not an error.
	require.NoError(t, store.TouchAccess(ctx, nil))
}

func TestSQLiteClient_DeleteIdempotent(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, testFragment("test_user", "doomed"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id), "deleting an absent fragment is not an error")

	_, err = store.Get(ctx, "test_user", id)
	assert.Error(t, err)
}

func TestSQLiteClient_ListUsers(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob", "alice"} {
		_, err := store.Insert(ctx, testFragment(user, "hello"))
		require.NoError(t, err)
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}

func TestSQLiteClient_GetRecentWindow(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	old := testFragment("test_user", "ancient history")
	old.CreatedAt = time.Now().UTC().Add(-72 * time.Hour)
	old.LastAccessedAt = old.CreatedAt
	_, err := store.Insert(ctx, old)
	require.NoError(t, err)

	_, err = store.Insert(ctx, testFragment("test_user", "just now"))
	require.NoError(t, err)

	rows, err := store.GetRecent(ctx, "test_user", time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "just now", rows[0].Content)
}
