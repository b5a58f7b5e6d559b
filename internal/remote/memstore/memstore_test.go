package memstore

import (
	"context"
	"testing"

	"memosync/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateLookupUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec, err := s.Create(ctx, remote.CollectionMemos, remote.Data{"memo_id": "m1", "content": "a", "n": int64(3)})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, float64(3), rec.Data["n"])

	got, err := s.LookupFirst(ctx, remote.CollectionMemos, remote.Eq("memo_id", "m1"))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	upd, err := s.Update(ctx, remote.CollectionMemos, rec.ID, remote.Data{"content": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", upd.Data["content"])
	assert.Equal(t, "m1", upd.Data["memo_id"])

	byID, err := s.Get(ctx, remote.CollectionMemos, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", byID.Data["content"])

	require.NoError(t, s.Delete(ctx, remote.CollectionMemos, rec.ID))
	assert.True(t, remote.IsNotFound(s.Delete(ctx, remote.CollectionMemos, rec.ID)))
	_, err = s.Update(ctx, remote.CollectionMemos, rec.ID, remote.Data{})
	assert.True(t, remote.IsNotFound(err))
	_, err = s.Get(ctx, remote.CollectionMemos, rec.ID)
	assert.True(t, remote.IsNotFound(err))
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec, err := s.Create(ctx, remote.CollectionMemos, remote.Data{"tags": []string{"a"}})
	require.NoError(t, err)

	rec.Data["tags"].([]any)[0] = "mutated"
	got, err := s.Get(ctx, remote.CollectionMemos, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got.Data["tags"])
}

func TestStore_ListAllFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, d := range []remote.Data{
		{"user": "u1", "created_at": 9},
		{"user": "u2", "created_at": 50},
		{"user": "u1", "created_at": 100},
		{"user": "u1", "created_at": 20},
	} {
		_, err := s.Create(ctx, remote.CollectionMemos, d)
		require.NoError(t, err)
	}

	recs, err := s.ListAll(ctx, remote.CollectionMemos, remote.Eq("user", "u1"), remote.ByNewest)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []any{100.0, 20.0, 9.0}, []any{recs[0].Data["created_at"], recs[1].Data["created_at"], recs[2].Data["created_at"]})

	empty, err := s.ListAll(ctx, remote.CollectionUserSettings, nil, remote.Sort{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Create(ctx, remote.CollectionMemos, remote.Data{})
	var re *remote.RemoteError
	assert.ErrorAs(t, err, &re)
}
