// Package supabasestore talks to a Supabase project: PostgREST tables for the
// remote store and GoTrue for sign-in.
//
// Each collection is a table of the same name whose columns are the record
// fields plus id, created and updated.
package supabasestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"memosync/internal/remote"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	colID      = "id"
	colCreated = "created"
	colUpdated = "updated"
)

type Store struct {
	mu     sync.RWMutex
	client *supabase.Client
}

func New(url, key string) (*Store, error) {
	c, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Store{client: c}, nil
}

// SetToken switches the bearer used for row-level security. An empty token
// falls back to the project key.
func (s *Store) SetToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.client.UpdateAuthSession(types.Session{AccessToken: token, TokenType: "bearer"})
	s.mu.Unlock()
}

func (s *Store) from(table string) *postgrest.QueryBuilder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client.From(table)
}

func (s *Store) LookupFirst(ctx context.Context, collection string, filter remote.Filter) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("lookup", collection, err)
	}
	q := where(s.from(collection).Select("*", "", false), filter).
		Order(colCreated, &postgrest.OrderOpts{Ascending: true}).
		Limit(1, "")
	recs, err := execute(q, collection)
	if err != nil {
		return remote.Record{}, remote.Wrap("lookup", collection, err)
	}
	if len(recs) == 0 {
		return remote.Record{}, remote.NewNotFound(collection, filter)
	}
	return recs[0], nil
}

func (s *Store) Create(ctx context.Context, collection string, data remote.Data) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("create", collection, err)
	}
	recs, err := execute(s.from(collection).Insert(data, false, "", "representation", ""), collection)
	if err != nil {
		return remote.Record{}, remote.Wrap("create", collection, err)
	}
	if len(recs) == 0 {
		return remote.Record{}, &remote.RemoteError{Collection: collection, Op: "create", Message: "insert returned no row"}
	}
	return recs[0], nil
}

// Update patches only the columns present in data.
func (s *Store) Update(ctx context.Context, collection, id string, data remote.Data) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("update", collection, err)
	}
	patch := remote.Data{colUpdated: time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range data {
		patch[k] = v
	}
	q := s.from(collection).Update(patch, "representation", "").Eq(colID, id)
	recs, err := execute(q, collection)
	if err != nil {
		return remote.Record{}, remote.Wrap("update", collection, err)
	}
	if len(recs) == 0 {
		return remote.Record{}, remote.NewNotFound(collection, remote.Eq(colID, id))
	}
	return recs[0], nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return remote.Wrap("delete", collection, err)
	}
	recs, err := execute(s.from(collection).Delete("representation", "").Eq(colID, id), collection)
	if err != nil {
		return remote.Wrap("delete", collection, err)
	}
	if len(recs) == 0 {
		return remote.NewNotFound(collection, remote.Eq(colID, id))
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context, collection string, filter remote.Filter, sort remote.Sort) ([]remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Wrap("list", collection, err)
	}
	q := where(s.from(collection).Select("*", "", false), filter)
	if !sort.IsZero() {
		q = q.Order(sort.Field, &postgrest.OrderOpts{Ascending: !sort.Desc})
	}
	recs, err := execute(q, collection)
	if err != nil {
		return nil, remote.Wrap("list", collection, err)
	}
	return recs, nil
}

func where(q *postgrest.FilterBuilder, filter remote.Filter) *postgrest.FilterBuilder {
	for _, c := range filter {
		q = q.Eq(c.Field, fmt.Sprint(c.Value))
	}
	return q
}

func execute(q *postgrest.FilterBuilder, collection string) ([]remote.Record, error) {
	body, _, err := q.Execute()
	if err != nil {
		return nil, err
	}
	return decodeRows(body, collection)
}

// decodeRows splits the bookkeeping columns off each row.
func decodeRows(body []byte, collection string) ([]remote.Record, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	out := make([]remote.Record, 0, len(rows))
	for _, row := range rows {
		rec := remote.Record{Collection: collection, Data: remote.Data{}}
		for k, v := range row {
			switch k {
			case colID:
				rec.ID = fmt.Sprint(v)
			case colCreated:
				rec.Created = parseTime(v)
			case colUpdated:
				rec.Updated = parseTime(v)
			default:
				rec.Data[k] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseTime(v any) time.Time {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
