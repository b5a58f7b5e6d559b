// Package remote defines the contract of the remote record store the sync core
// talks to: point lookup by filter, create, update by internal id, delete and
// filtered listing. Implementations live in the sub-packages.
package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Collections known to the sync core.
const (
	CollectionMemos        = "memos"
	CollectionUserSettings = "user_settings"
)

// Data is the field set of a record as sent to or received from the store.
type Data map[string]any

// Record is one stored row. ID is assigned by the store and is unrelated to
// any natural key carried in Data.
type Record struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
	Data       Data      `json:"data"`
}

// Decode unmarshals the record fields into v.
func (r Record) Decode(v any) error {
	b, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Store is a generic CRUD+query service reached over request/response calls.
//
// LookupFirst returns a *NotFoundError when nothing matches; every other
// failure is reported as a *RemoteError.
type Store interface {
	LookupFirst(ctx context.Context, collection string, filter Filter) (Record, error)
	Create(ctx context.Context, collection string, data Data) (Record, error)
	Update(ctx context.Context, collection, id string, data Data) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	ListAll(ctx context.Context, collection string, filter Filter, sort Sort) ([]Record, error)
}

// Getter is implemented by stores that can fetch a record by its id.
type Getter interface {
	Get(ctx context.Context, collection, id string) (Record, error)
}

// Normalize returns a copy of d with every value in its JSON form
// (numbers as float64, structs as maps), the shape a network round trip yields.
func Normalize(d Data) (Data, error) {
	if d == nil {
		return Data{}, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	out := Data{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
