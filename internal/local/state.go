package local

import (
	"context"
	"encoding/json"
	"fmt"

	"memosync/internal/memo"
)

// LoadMemos reads the memo collection in stored order. An absent value is an
// empty collection.
func LoadMemos(ctx context.Context, st Store) ([]memo.Memo, error) {
	raw, ok, err := st.Get(ctx, KeyMemos)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []memo.Memo{}, nil
	}
	var out []memo.Memo
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode local memos: %w", err)
	}
	if out == nil {
		out = []memo.Memo{}
	}
	return out, nil
}

// SaveMemos overwrites the whole memo collection in one write.
func SaveMemos(ctx context.Context, st Store, memos []memo.Memo) error {
	if memos == nil {
		memos = []memo.Memo{}
	}
	b, err := json.Marshal(memos)
	if err != nil {
		return err
	}
	return st.Set(ctx, KeyMemos, string(b))
}

// LoadSettings reads every settings block present on the device. Defaults are
// not applied here.
func LoadSettings(ctx context.Context, st Store) (memo.Settings, error) {
	out := memo.Settings{}
	for _, b := range memo.Blocks {
		v, ok, err := st.Get(ctx, b.LocalKey)
		if err != nil {
			return nil, err
		}
		if ok {
			out[b.LocalKey] = v
		}
	}
	return out, nil
}

// SaveSettings writes each block in s, leaving blocks not in s untouched.
// It returns the number of blocks written.
func SaveSettings(ctx context.Context, st Store, s memo.Settings) (int, error) {
	n := 0
	for _, b := range memo.Blocks {
		v, ok := s[b.LocalKey]
		if !ok {
			continue
		}
		if err := st.Set(ctx, b.LocalKey, v); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
