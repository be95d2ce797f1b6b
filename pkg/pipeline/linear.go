package pipeline

import (
	"errors"
	"math"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/store"
)

// LinearParams are the coefficients of a Linear stage.
type LinearParams struct {
	Multiplier float64 `json:"multiplier"`
	Offset     float64 `json:"offset"`
}

// DefaultLinearParams is the identity transform.
var DefaultLinearParams = LinearParams{Multiplier: 1, Offset: 0}

// Linear emits multiplier*v + offset. Its parameters are persisted under a
// configuration path and may be changed at runtime.
type Linear struct {
	mu     sync.RWMutex
	params LinearParams
	st     store.Store
	key    string
}

// NewLinear returns a Linear stage with the persisted parameters under key,
// or def when nothing valid is stored.
func NewLinear(st store.Store, key string, def LinearParams) *Linear {
	l := &Linear{params: def, st: st, key: key}
	if st == nil {
		return l
	}

	var p LinearParams
	err := store.GetJSON(st, key, &p)
	switch {
	case err == nil && p.valid():
		l.params = p
	case err == nil:
		logrus.WithField("key", key).Warn("ignoring invalid linear parameters")
	case !errors.Is(err, store.ErrNotFound):
		logrus.WithError(err).WithField("key", key).Error("failed to load linear parameters")
	}
	return l
}

func (p LinearParams) valid() bool {
	return !math.IsNaN(p.Multiplier) && !math.IsInf(p.Multiplier, 0) &&
		!math.IsNaN(p.Offset) && !math.IsInf(p.Offset, 0)
}

func (l *Linear) Key() string { return l.key }

func (l *Linear) Params() LinearParams {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params
}

// Set applies new parameters and persists them. The new parameters stay in
// effect even if persisting fails.
func (l *Linear) Set(p LinearParams) error {
	if !p.valid() {
		return pkgerrors.Errorf("invalid linear parameters %+v", p)
	}

	l.mu.Lock()
	l.params = p
	l.mu.Unlock()

	if l.st == nil {
		return nil
	}
	if err := store.PutJSON(l.st, l.key, p); err != nil {
		return pkgerrors.Wrapf(err, "failed to save linear parameters to %s", l.key)
	}
	return nil
}

func (l *Linear) Transform(v float64) float64 {
	p := l.Params()
	return p.Multiplier*v + p.Offset
}
