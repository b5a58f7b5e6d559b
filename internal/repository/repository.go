// Package repository implements insert-or-update by natural key on top of a
// remote.Store whose only primitives are lookup, create, update by internal
// id, delete and list.
//
// The lookup and the write are two independent round trips with no
// transaction around them. Two writers racing on the same natural key can
// both miss the lookup and create duplicates. Within one process every write
// for a given (collection, natural key) pair is serialized through a keylock,
// which restores the single-writer assumption for all callers sharing the
// Repository; writers in other processes are not covered.
package repository

import (
	"context"

	"memosync/internal/keylock"
	"memosync/internal/remote"

	"go.uber.org/zap"
)

type Repository struct {
	store  remote.Store
	locks  *keylock.Locker
	logger *zap.Logger
}

func New(store remote.Store, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		store:  store,
		locks:  keylock.New(),
		logger: logger.Named("repository"),
	}
}

// Upsert updates the first record matching key with data, or creates one
// when the lookup reports not-found. Every other failure is returned as is.
func (r *Repository) Upsert(ctx context.Context, collection string, key remote.Filter, data remote.Data) (remote.Record, error) {
	unlock, err := r.locks.Lock(ctx, lockKey(collection, key))
	if err != nil {
		return remote.Record{}, err
	}
	defer unlock()

	existing, err := r.store.LookupFirst(ctx, collection, key)
	if err != nil {
		if !remote.IsNotFound(err) {
			return remote.Record{}, err
		}
		created, err := r.store.Create(ctx, collection, data)
		if err != nil {
			return remote.Record{}, err
		}
		r.logger.Debug("record created",
			zap.String("collection", collection),
			zap.String("key", key.String()),
			zap.String("id", created.ID))
		return created, nil
	}

	updated, err := r.store.Update(ctx, collection, existing.ID, data)
	if err != nil {
		return remote.Record{}, err
	}
	r.logger.Debug("record updated",
		zap.String("collection", collection),
		zap.String("key", key.String()),
		zap.String("id", updated.ID))
	return updated, nil
}

// DeleteByNaturalKey removes the first record matching key. A missing record
// is reported as *remote.NotFoundError.
func (r *Repository) DeleteByNaturalKey(ctx context.Context, collection string, key remote.Filter) error {
	unlock, err := r.locks.Lock(ctx, lockKey(collection, key))
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := r.store.LookupFirst(ctx, collection, key)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, collection, existing.ID); err != nil {
		return err
	}
	r.logger.Debug("record deleted",
		zap.String("collection", collection),
		zap.String("key", key.String()),
		zap.String("id", existing.ID))
	return nil
}

// QueryAll returns every record matching filter in the requested order.
func (r *Repository) QueryAll(ctx context.Context, collection string, filter remote.Filter, sort remote.Sort) ([]remote.Record, error) {
	return r.store.ListAll(ctx, collection, filter, sort)
}

// FindOneOrAbsent returns the first match, or nil when there is none.
func (r *Repository) FindOneOrAbsent(ctx context.Context, collection string, filter remote.Filter) (*remote.Record, error) {
	rec, err := r.store.LookupFirst(ctx, collection, filter)
	if remote.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func lockKey(collection string, key remote.Filter) string {
	return collection + "|" + key.String()
}
