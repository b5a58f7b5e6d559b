package repository

import (
	"context"
	"fmt"

	"memosync/internal/memo"
	"memosync/internal/remote"
)

// UpsertMemo writes m for userID keyed by the memo's natural id.
func (r *Repository) UpsertMemo(ctx context.Context, userID string, m memo.Memo) (remote.Record, error) {
	return r.Upsert(ctx, remote.CollectionMemos, memo.NaturalKey(m.ID), m.Remote(userID))
}

// DeleteMemo removes the memo with natural id memoID.
func (r *Repository) DeleteMemo(ctx context.Context, memoID string) error {
	return r.DeleteByNaturalKey(ctx, remote.CollectionMemos, memo.NaturalKey(memoID))
}

// UserMemos returns every memo owned by userID, newest created first, in the
// local shape.
func (r *Repository) UserMemos(ctx context.Context, userID string) ([]memo.Memo, error) {
	recs, err := r.QueryAll(ctx, remote.CollectionMemos, memo.OwnedBy(userID), remote.ByNewest)
	if err != nil {
		return nil, err
	}
	out := make([]memo.Memo, 0, len(recs))
	for _, rec := range recs {
		m, err := memo.FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("decode memo record %s: %w", rec.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// UpsertUserSettings merges every block of s into the user's single settings
// record.
func (r *Repository) UpsertUserSettings(ctx context.Context, userID string, s memo.Settings) (remote.Record, error) {
	data, err := s.Remote(userID)
	if err != nil {
		return remote.Record{}, err
	}
	return r.Upsert(ctx, remote.CollectionUserSettings, memo.SettingsKey(userID), data)
}

// UserSettings returns the blocks present in the user's settings record.
// ok is false when the user has no settings record yet.
func (r *Repository) UserSettings(ctx context.Context, userID string) (memo.Settings, bool, error) {
	rec, err := r.FindOneOrAbsent(ctx, remote.CollectionUserSettings, memo.SettingsKey(userID))
	if err != nil || rec == nil {
		return nil, false, err
	}
	s, err := memo.SettingsFromRecord(*rec)
	if err != nil {
		return nil, false, fmt.Errorf("decode settings record %s: %w", rec.ID, err)
	}
	return s, true, nil
}
