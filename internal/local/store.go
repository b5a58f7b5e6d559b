// Package local holds the device-side state: a flat namespace of named string
// values, the same shape a browser's localStorage gives the web client.
package local

import (
	"context"
	"errors"
)

// Keys used for memos and session state. Settings blocks use the local keys
// listed in memo.Blocks.
const (
	KeyMemos = "memos"
	KeyAuth  = "auth"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("local store closed")

// Store is a flat namespace of independently readable and writable values.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
