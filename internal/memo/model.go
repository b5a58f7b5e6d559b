package memo

import (
	"time"

	"memosync/internal/remote"

	"github.com/google/uuid"
)

// Memo is a note in its device-local shape. Timestamps are unix
// milliseconds; Timestamp and LastModified are older aliases of CreatedAt and
// UpdatedAt that are still read on push and always written on pull.
type Memo struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags"`
	Backlinks    []string `json:"backlinks"`
	Timestamp    int64    `json:"timestamp,omitempty"`
	LastModified int64    `json:"lastModified,omitempty"`
	CreatedAt    int64    `json:"createdAt,omitempty"`
	UpdatedAt    int64    `json:"updatedAt,omitempty"`
}

// RemoteMemo is the record shape in the memos collection. MemoID carries the
// natural key; the store assigns its own record id separately.
type RemoteMemo struct {
	MemoID    string   `json:"memo_id"`
	User      string   `json:"user"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Backlinks []string `json:"backlinks"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// New creates a memo with a fresh id, tags taken from the content hashtags.
func New(content string, now time.Time) Memo {
	ms := now.UnixMilli()
	return Memo{
		ID:        uuid.NewString(),
		Content:   content,
		Tags:      nonNil(ExtractTags(content)),
		Backlinks: []string{},
		CreatedAt: ms,
		UpdatedAt: ms,
	}
}

// Created returns createdAt, falling back to the legacy timestamp.
func (m Memo) Created() int64 {
	if m.CreatedAt != 0 {
		return m.CreatedAt
	}
	return m.Timestamp
}

// Updated returns updatedAt, falling back to lastModified then timestamp.
func (m Memo) Updated() int64 {
	switch {
	case m.UpdatedAt != 0:
		return m.UpdatedAt
	case m.LastModified != 0:
		return m.LastModified
	}
	return m.Timestamp
}

// NaturalKey is the lookup filter for this memo in the memos collection.
func NaturalKey(id string) remote.Filter {
	return remote.Eq("memo_id", id)
}

// OwnedBy filters the memos collection to one user.
func OwnedBy(userID string) remote.Filter {
	return remote.Eq("user", userID)
}

// Remote projects m into the record fields pushed for userID.
func (m Memo) Remote(userID string) remote.Data {
	return remote.Data{
		"memo_id":    m.ID,
		"user":       userID,
		"content":    m.Content,
		"tags":       nonNil(m.Tags),
		"backlinks":  nonNil(m.Backlinks),
		"created_at": m.Created(),
		"updated_at": m.Updated(),
	}
}

// FromRecord translates a memos record back into the local shape.
func FromRecord(rec remote.Record) (Memo, error) {
	var rm RemoteMemo
	if err := rec.Decode(&rm); err != nil {
		return Memo{}, err
	}
	return Memo{
		ID:           rm.MemoID,
		Content:      rm.Content,
		Tags:         nonNil(rm.Tags),
		Backlinks:    nonNil(rm.Backlinks),
		Timestamp:    rm.CreatedAt,
		LastModified: rm.UpdatedAt,
		CreatedAt:    rm.CreatedAt,
		UpdatedAt:    rm.UpdatedAt,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
