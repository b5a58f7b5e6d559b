package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"

	"memosync/internal/remote"
)

func recordsPath(collection string, id ...string) string {
	return path.Join(append([]string{"/api/collections", collection, "records"}, id...)...)
}

func filterQuery(filter remote.Filter) (url.Values, error) {
	q := url.Values{}
	if len(filter) > 0 {
		b, err := filter.MarshalJSON()
		if err != nil {
			return nil, err
		}
		q.Set("filter", string(b))
	}
	return q, nil
}

// storeError maps a transport or API failure onto the remote error types.
// notFound is what a 404 means for the call.
func storeError(op, collection string, notFound remote.Filter, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		if ae.Status == http.StatusNotFound {
			return remote.NewNotFound(collection, notFound)
		}
		return &remote.RemoteError{Collection: collection, Op: op, Status: ae.Status, Message: ae.Message, Err: err}
	}
	return remote.Wrap(op, collection, err)
}

func (c *Client) LookupFirst(ctx context.Context, collection string, filter remote.Filter) (remote.Record, error) {
	q, err := filterQuery(filter)
	if err != nil {
		return remote.Record{}, remote.Wrap("lookup", collection, err)
	}
	var rec remote.Record
	err = c.do(ctx, request{method: http.MethodGet, path: recordsPath(collection, "first"), query: q}, &rec)
	if err != nil {
		return remote.Record{}, storeError("lookup", collection, filter, err)
	}
	return rec, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	var rec remote.Record
	err := c.do(ctx, request{method: http.MethodGet, path: recordsPath(collection, id)}, &rec)
	if err != nil {
		return remote.Record{}, storeError("get", collection, remote.Eq("id", id), err)
	}
	return rec, nil
}

func (c *Client) Create(ctx context.Context, collection string, data remote.Data) (remote.Record, error) {
	var rec remote.Record
	err := c.do(ctx, request{method: http.MethodPost, path: recordsPath(collection), body: data}, &rec)
	if err != nil {
		return remote.Record{}, storeError("create", collection, nil, err)
	}
	return rec, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, data remote.Data) (remote.Record, error) {
	var rec remote.Record
	err := c.do(ctx, request{method: http.MethodPatch, path: recordsPath(collection, id), body: data}, &rec)
	if err != nil {
		return remote.Record{}, storeError("update", collection, remote.Eq("id", id), err)
	}
	return rec, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: recordsPath(collection, id)}, nil)
	if err != nil {
		return storeError("delete", collection, remote.Eq("id", id), err)
	}
	return nil
}

type listResp struct {
	Items []remote.Record `json:"items"`
}

func (c *Client) ListAll(ctx context.Context, collection string, filter remote.Filter, sort remote.Sort) ([]remote.Record, error) {
	q, err := filterQuery(filter)
	if err != nil {
		return nil, remote.Wrap("list", collection, err)
	}
	if !sort.IsZero() {
		q.Set("sort", sort.String())
	}
	var out listResp
	if err := c.do(ctx, request{method: http.MethodGet, path: recordsPath(collection), query: q}, &out); err != nil {
		return nil, storeError("list", collection, filter, err)
	}
	if out.Items == nil {
		out.Items = []remote.Record{}
	}
	return out.Items, nil
}
