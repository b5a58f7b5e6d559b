package metrics

import (
	"context"
	"errors"
	"time"

	"memosync/internal/remote"
)

// Store decorates a remote.Store with operation counters and timings.
type Store struct {
	inner remote.Store
	c     *Collector
}

func NewStore(inner remote.Store, c *Collector) *Store {
	return &Store{inner: inner, c: c}
}

func (s *Store) observe(op, collection string, start time.Time, err error) {
	status := outcome(err)
	if remote.IsNotFound(err) {
		status = "not_found"
	}
	s.c.StoreOperations.WithLabelValues(op, collection, status).Inc()
	s.c.StoreDuration.WithLabelValues(op, collection).Observe(time.Since(start).Seconds())
}

func (s *Store) LookupFirst(ctx context.Context, collection string, filter remote.Filter) (remote.Record, error) {
	start := time.Now()
	rec, err := s.inner.LookupFirst(ctx, collection, filter)
	s.observe("lookup", collection, start, err)
	return rec, err
}

func (s *Store) Create(ctx context.Context, collection string, data remote.Data) (remote.Record, error) {
	start := time.Now()
	rec, err := s.inner.Create(ctx, collection, data)
	s.observe("create", collection, start, err)
	return rec, err
}

func (s *Store) Update(ctx context.Context, collection, id string, data remote.Data) (remote.Record, error) {
	start := time.Now()
	rec, err := s.inner.Update(ctx, collection, id, data)
	s.observe("update", collection, start, err)
	return rec, err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, collection, id)
	s.observe("delete", collection, start, err)
	return err
}

func (s *Store) ListAll(ctx context.Context, collection string, filter remote.Filter, sort remote.Sort) ([]remote.Record, error) {
	start := time.Now()
	recs, err := s.inner.ListAll(ctx, collection, filter, sort)
	s.observe("list", collection, start, err)
	return recs, err
}

// Get delegates to the wrapped store when it implements remote.Getter.
func (s *Store) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	g, ok := s.inner.(remote.Getter)
	if !ok {
		return remote.Record{}, remote.Wrap("get", collection, errors.New("store does not support get by id"))
	}
	start := time.Now()
	rec, err := g.Get(ctx, collection, id)
	s.observe("get", collection, start, err)
	return rec, err
}
