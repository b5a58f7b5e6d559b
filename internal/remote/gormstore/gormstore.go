// Package gormstore keeps remote records in Postgres, one jsonb document per
// record in a shared records table.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"memosync/internal/remote"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Row is the table shape of a record.
type Row struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Collection string         `gorm:"size:64;not null;index"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"not null;index"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (Row) TableName() string { return "records" }

func (r Row) record() (remote.Record, error) {
	var d remote.Data
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return remote.Record{}, err
	}
	return remote.Record{
		ID:         r.ID,
		Collection: r.Collection,
		Created:    r.CreatedAt,
		Updated:    r.UpdatedAt,
		Data:       d,
	}, nil
}

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) scoped(ctx context.Context, collection string, filter remote.Filter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&Row{}).Where("collection = ?", collection)
	for _, c := range filter {
		q = q.Where(datatypes.JSONQuery("data").Equals(c.Value, c.Field))
	}
	return q
}

func (s *Store) LookupFirst(ctx context.Context, collection string, filter remote.Filter) (remote.Record, error) {
	var row Row
	err := s.scoped(ctx, collection, filter).Order("created_at asc").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return remote.Record{}, remote.NewNotFound(collection, filter)
	}
	if err != nil {
		return remote.Record{}, wrap("lookup", collection, err)
	}
	return decoded("lookup", collection, row)
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return remote.Record{}, remote.NewNotFound(collection, remote.Eq("id", id))
	}
	var row Row
	err := s.DB.WithContext(ctx).Where("id = ? AND collection = ?", id, collection).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return remote.Record{}, remote.NewNotFound(collection, remote.Eq("id", id))
	}
	if err != nil {
		return remote.Record{}, wrap("get", collection, err)
	}
	return decoded("get", collection, row)
}

func (s *Store) Create(ctx context.Context, collection string, data remote.Data) (remote.Record, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return remote.Record{}, wrap("create", collection, err)
	}
	now := time.Now().UTC()
	row := Row{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       datatypes.JSON(b),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return remote.Record{}, wrap("create", collection, err)
	}
	return decoded("create", collection, row)
}

// Update merges data into the stored document with jsonb concatenation.
func (s *Store) Update(ctx context.Context, collection, id string, data remote.Data) (remote.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return remote.Record{}, remote.NewNotFound(collection, remote.Eq("id", id))
	}
	b, err := json.Marshal(data)
	if err != nil {
		return remote.Record{}, wrap("update", collection, err)
	}

	var row Row
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Row{}).
			Where("id = ? AND collection = ?", id, collection).
			Updates(map[string]any{
				"data":       gorm.Expr("data || ?::jsonb", string(b)),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return remote.Record{}, remote.NewNotFound(collection, remote.Eq("id", id))
	}
	if err != nil {
		return remote.Record{}, wrap("update", collection, err)
	}
	return decoded("update", collection, row)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return remote.NewNotFound(collection, remote.Eq("id", id))
	}
	res := s.DB.WithContext(ctx).Where("id = ? AND collection = ?", id, collection).Delete(&Row{})
	if res.Error != nil {
		return wrap("delete", collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return remote.NewNotFound(collection, remote.Eq("id", id))
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context, collection string, filter remote.Filter, sort remote.Sort) ([]remote.Record, error) {
	var rows []Row
	if err := orderBy(s.scoped(ctx, collection, filter), sort).Find(&rows).Error; err != nil {
		return nil, wrap("list", collection, err)
	}
	out := make([]remote.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decoded("list", collection, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// orderBy sorts on a document field. jsonb orders numbers numerically and
// strings lexically; insertion order breaks ties.
func orderBy(q *gorm.DB, sort remote.Sort) *gorm.DB {
	if sort.IsZero() {
		return q.Order("created_at asc")
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	return q.Clauses(clause.OrderBy{Expression: clause.Expr{
		SQL:                "data -> ? " + dir + ", created_at ASC",
		Vars:               []any{sort.Field},
		WithoutParentheses: true,
	}})
}

func decoded(op, collection string, row Row) (remote.Record, error) {
	rec, err := row.record()
	if err != nil {
		return remote.Record{}, wrap(op, collection, err)
	}
	return rec, nil
}

func wrap(op, collection string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &remote.RemoteError{
			Collection: collection,
			Op:         op,
			Status:     http.StatusConflict,
			Message:    "record already exists",
			Err:        err,
		}
	}
	return remote.Wrap(op, collection, err)
}
