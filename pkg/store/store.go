// Package store is the persistent key-value store used for calibration data.
//
// Keys are configuration paths such as "/tank/level/curve". Values are opaque
// bytes; most callers store JSON through GetJSON and PutJSON. Writes are
// synchronous and best-effort: callers log failures and keep their in-memory
// state authoritative.
package store

import (
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// ErrNotFound is returned by Get when nothing is stored under a key.
var ErrNotFound = errors.New("key not found")

// Store gets and puts values by configuration path.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// GetJSON reads key and unmarshals it into v.
func GetJSON(s Store, key string, v any) error {
	b, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal %s", key)
	}
	return nil
}

// PutJSON marshals v and stores it under key.
func PutJSON(s Store, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal %s", key)
	}
	return s.Put(key, b)
}
