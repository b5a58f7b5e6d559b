package remote

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a natural-key lookup matched zero records.
type NotFoundError struct {
	Collection string
	Filter     string
}

func (e *NotFoundError) Error() string {
	if e.Filter != "" {
		return fmt.Sprintf("%s: no record matches %s", e.Collection, e.Filter)
	}
	return fmt.Sprintf("%s: record not found", e.Collection)
}

// RemoteError is any other store-reported failure: validation, permission or
// transport. Message is passed through from the underlying failure.
type RemoteError struct {
	Collection string
	Op         string
	Status     int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Op, e.Collection, msg, e.Status)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Collection, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewNotFound creates a NotFoundError for a lookup on collection.
func NewNotFound(collection string, filter Filter) *NotFoundError {
	return &NotFoundError{Collection: collection, Filter: filter.String()}
}

// Wrap converts err into a *RemoteError unless it already carries one of the
// store error types.
func Wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	var re *RemoteError
	if errors.As(err, &nf) || errors.As(err, &re) {
		return err
	}
	return &RemoteError{Collection: collection, Op: op, Message: err.Error(), Err: err}
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
