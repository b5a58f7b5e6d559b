package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"memosync/internal/local"
	"memosync/internal/memo"
	"memosync/internal/remote"
	"memosync/internal/remote/memstore"
	"memosync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingStore wraps a memstore, records every write and fails the
// failAt-th create.
type recordingStore struct {
	*memstore.Store

	mu      sync.Mutex
	writes  []string
	creates int
	failAt  int
	failErr error
}

func (s *recordingStore) Create(ctx context.Context, collection string, data remote.Data) (remote.Record, error) {
	s.mu.Lock()
	s.creates++
	n := s.creates
	s.writes = append(s.writes, "create:"+collection)
	s.mu.Unlock()
	if s.failAt > 0 && n == s.failAt {
		return remote.Record{}, s.failErr
	}
	return s.Store.Create(ctx, collection, data)
}

func (s *recordingStore) Update(ctx context.Context, collection, id string, data remote.Data) (remote.Record, error) {
	s.mu.Lock()
	s.writes = append(s.writes, "update:"+collection)
	s.mu.Unlock()
	return s.Store.Update(ctx, collection, id, data)
}

func (s *recordingStore) wrote(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w == "create:"+collection || w == "update:"+collection {
			n++
		}
	}
	return n
}

func newOrchestrator(store remote.Store, state local.Store) *Orchestrator {
	return New(repository.New(store, zap.NewNop()), state, zap.NewNop())
}

func seedMemos(t *testing.T, st local.Store, n int) []memo.Memo {
	t.Helper()
	memos := make([]memo.Memo, 0, n)
	for i := 0; i < n; i++ {
		m := memo.Memo{
			ID:        string(rune('a' + i)),
			Content:   "memo #" + string(rune('a'+i)),
			Tags:      []string{string(rune('a' + i))},
			CreatedAt: int64(1000 + i),
			UpdatedAt: int64(1000 + i),
		}
		memos = append(memos, m)
	}
	require.NoError(t, local.SaveMemos(context.Background(), st, memos))
	return memos
}

func TestSyncUserData_PushesMemosAndSettings(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	state := local.NewMemory()
	seedMemos(t, state, 3)
	require.NoError(t, state.Set(ctx, "themeColor", "#123456"))
	require.NoError(t, state.Set(ctx, "darkMode", "true"))

	res, err := newOrchestrator(store, state).SyncUserData(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Memos)
	assert.Equal(t, len(memo.Blocks), res.SettingsBlocks)
	assert.Equal(t, 3, store.Len(remote.CollectionMemos))
	assert.Equal(t, 1, store.Len(remote.CollectionUserSettings))

	rec, err := store.LookupFirst(ctx, remote.CollectionUserSettings, memo.SettingsKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, "#123456", rec.Data["theme_color"])
	assert.Equal(t, true, rec.Data["dark_mode"])
	// absent blocks are pushed with their defaults
	assert.Equal(t, []any{}, rec.Data["pinned_memos"])
}

func TestSyncUserData_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	state := local.NewMemory()
	seedMemos(t, state, 2)
	o := newOrchestrator(store, state)

	_, err := o.SyncUserData(ctx, "u1")
	require.NoError(t, err)
	_, err = o.SyncUserData(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len(remote.CollectionMemos))
	assert.Equal(t, 1, store.Len(remote.CollectionUserSettings))
}

func TestSyncUserData_AbortsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	store := &recordingStore{Store: memstore.New(), failAt: 3, failErr: boom}
	state := local.NewMemory()
	seedMemos(t, state, 6)

	res, err := newOrchestrator(store, state).SyncUserData(ctx, "u1")
	assert.Same(t, boom, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Memos)

	// memos before the failure stay written, nothing after it was attempted
	assert.Equal(t, 2, store.Len(remote.CollectionMemos))
	assert.Equal(t, 3, store.wrote(remote.CollectionMemos))
	assert.Zero(t, store.wrote(remote.CollectionUserSettings))
}

func TestSyncUserData_RejectsBadLocalDataBeforeWriting(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{Store: memstore.New()}
	state := local.NewMemory()
	seedMemos(t, state, 2)
	require.NoError(t, state.Set(ctx, "fontConfig", "{not json"))

	_, err := newOrchestrator(store, state).SyncUserData(ctx, "u1")
	require.Error(t, err)
	assert.Zero(t, store.wrote(remote.CollectionMemos))
}

func TestSyncUserData_NoUser(t *testing.T) {
	_, err := newOrchestrator(memstore.New(), local.NewMemory()).SyncUserData(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestRestoreUserData_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	device1 := local.NewMemory()
	pushed := seedMemos(t, device1, 3)
	require.NoError(t, device1.Set(ctx, "pinnedMemos", `["a"]`))
	_, err := newOrchestrator(store, device1).SyncUserData(ctx, "u1")
	require.NoError(t, err)

	device2 := local.NewMemory()
	require.NoError(t, local.SaveMemos(ctx, device2, []memo.Memo{{ID: "stale", Content: "gone"}}))

	res, err := newOrchestrator(store, device2).RestoreUserData(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Memos)
	// canvas_config defaults to null, which reads back as absent
	assert.Equal(t, len(memo.Blocks)-1, res.SettingsBlocks)

	got, err := local.LoadMemos(ctx, device2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// newest created first
	assert.Equal(t, pushed[2].ID, got[0].ID)
	assert.Equal(t, pushed[0].ID, got[2].ID)
	assert.Equal(t, pushed[1].Content, got[1].Content)
	assert.Equal(t, pushed[1].CreatedAt, got[1].Timestamp)

	pinned, ok, err := device2.Get(ctx, "pinnedMemos")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["a"]`, pinned)
}

func TestRestoreUserData_PartialSettings(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	_, err := store.Create(ctx, remote.CollectionUserSettings, remote.Data{
		"user":        "u1",
		"theme_color": "#000000",
		"dark_mode":   true,
	})
	require.NoError(t, err)

	state := local.NewMemory()
	require.NoError(t, state.Set(ctx, "themeColor", "#ffffff"))
	require.NoError(t, state.Set(ctx, "fontConfig", `{"selectedFont":"serif"}`))

	res, err := newOrchestrator(store, state).RestoreUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.SettingsBlocks)

	v, _, _ := state.Get(ctx, "themeColor")
	assert.Equal(t, "#000000", v)
	v, _, _ = state.Get(ctx, "darkMode")
	assert.Equal(t, "true", v)
	v, _, _ = state.Get(ctx, "fontConfig")
	assert.Equal(t, `{"selectedFont":"serif"}`, v)
	_, ok, _ := state.Get(ctx, "musicConfig")
	assert.False(t, ok)
}

func TestRestoreUserData_EmptyRemoteClearsMemos(t *testing.T) {
	ctx := context.Background()
	state := local.NewMemory()
	seedMemos(t, state, 2)
	require.NoError(t, state.Set(ctx, "themeColor", "#ffffff"))

	res, err := newOrchestrator(memstore.New(), state).RestoreUserData(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.SettingsBlocks)

	got, err := local.LoadMemos(ctx, state)
	require.NoError(t, err)
	assert.Empty(t, got)
	v, _, _ := state.Get(ctx, "themeColor")
	assert.Equal(t, "#ffffff", v)
}

func TestRestoreUserData_OnlyOwnRecords(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	_, err := store.Create(ctx, remote.CollectionMemos, memo.Memo{ID: "x", Content: "theirs"}.Remote("u2"))
	require.NoError(t, err)
	_, err = store.Create(ctx, remote.CollectionMemos, memo.Memo{ID: "y", Content: "mine"}.Remote("u1"))
	require.NoError(t, err)

	state := local.NewMemory()
	_, err = newOrchestrator(store, state).RestoreUserData(ctx, "u1")
	require.NoError(t, err)

	got, err := local.LoadMemos(ctx, state)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].ID)
}
