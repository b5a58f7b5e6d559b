// Package memstore is an in-process remote.Store. It backs the record service
// in tests and local development and mirrors the observable behavior of the
// network stores: values come back in their JSON form and ids are opaque.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"memosync/internal/remote"

	"github.com/google/uuid"
)

type Store struct {
	mu    sync.RWMutex
	rows  map[string][]*remote.Record
	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		rows:  map[string][]*remote.Record{},
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Store) LookupFirst(ctx context.Context, collection string, filter remote.Filter) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("lookup", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rows[collection] {
		if filter.Match(r.Data) {
			return clone(r), nil
		}
	}
	return remote.Record{}, remote.NewNotFound(collection, filter)
}

func (s *Store) Create(ctx context.Context, collection string, data remote.Data) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("create", collection, err)
	}
	d, err := remote.Normalize(data)
	if err != nil {
		return remote.Record{}, remote.Wrap("create", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	r := &remote.Record{
		ID:         s.newID(),
		Collection: collection,
		Created:    now,
		Updated:    now,
		Data:       d,
	}
	s.rows[collection] = append(s.rows[collection], r)
	return clone(r), nil
}

// Update merges data into the record's fields.
func (s *Store) Update(ctx context.Context, collection, id string, data remote.Data) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("update", collection, err)
	}
	d, err := remote.Normalize(data)
	if err != nil {
		return remote.Record{}, remote.Wrap("update", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(collection, id)
	if r == nil {
		return remote.Record{}, remote.NewNotFound(collection, remote.Eq("id", id))
	}
	for k, v := range d {
		r.Data[k] = v
	}
	r.Updated = s.now().UTC()
	return clone(r), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return remote.Wrap("delete", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[collection]
	for i, r := range rows {
		if r.ID == id {
			s.rows[collection] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return remote.NewNotFound(collection, remote.Eq("id", id))
}

func (s *Store) ListAll(ctx context.Context, collection string, filter remote.Filter, order remote.Sort) ([]remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Wrap("list", collection, err)
	}
	s.mu.RLock()
	out := make([]remote.Record, 0)
	for _, r := range s.rows[collection] {
		if filter.Match(r.Data) {
			out = append(out, clone(r))
		}
	}
	s.mu.RUnlock()

	if !order.IsZero() {
		sort.SliceStable(out, func(i, j int) bool { return order.Less(out[i].Data, out[j].Data) })
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return remote.Record{}, remote.Wrap("get", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.find(collection, id); r != nil {
		return clone(r), nil
	}
	return remote.Record{}, remote.NewNotFound(collection, remote.Eq("id", id))
}

// Len returns the number of records in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[collection])
}

func (s *Store) find(collection, id string) *remote.Record {
	for _, r := range s.rows[collection] {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func clone(r *remote.Record) remote.Record {
	out := *r
	// stored data is already normalized, so this cannot fail
	out.Data, _ = remote.Normalize(r.Data)
	return out
}
