package kdf

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/sync/semaphore"
)

// DeriveFunc is the signature of Derive. Tests replace it to simulate slow
// or failing derivations.
type DeriveFunc func(password, salt []byte, cost CostParams, keyLen int) ([]byte, error)

// Deriver runs derivations on background goroutines, at most `workers` at a
// time, and gives up waiting after `timeout`.
//
// A derivation that outlives its timeout keeps its worker slot until it
// finishes; the result is then discarded.
type Deriver struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	derive  DeriveFunc
}

type Option func(*Deriver)

// WithDeriveFunc overrides the derivation function.
func WithDeriveFunc(f DeriveFunc) Option {
	return func(d *Deriver) { d.derive = f }
}

// NewDeriver builds a Deriver. workers < 1 is treated as 1; timeout <= 0
// disables the timeout (the caller's context still applies).
func NewDeriver(workers int64, timeout time.Duration, opts ...Option) *Deriver {
	if workers < 1 {
		workers = 1
	}
	d := &Deriver{
		sem:     semaphore.NewWeighted(workers),
		timeout: timeout,
		derive:  Derive,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

type deriveResult struct {
	key []byte
	err error
}

// Derive schedules a derivation and waits for it. It returns an error
// wrapping common.ErrDerivationTimeout when the timeout elapses or ctx is
// cancelled first, and never a partial key.
//
// password and salt are copied, so the caller may wipe its buffers as soon
// as Derive returns.
func (d *Deriver) Derive(ctx context.Context, password, salt []byte, cost CostParams, keyLen int) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for worker: %v", common.ErrDerivationTimeout, err)
	}

	pw := append([]byte(nil), password...)
	s := append([]byte(nil), salt...)

	done := make(chan deriveResult, 1)
	go func() {
		defer d.sem.Release(1)
		defer common.WipeByteArray(pw)

		key, err := d.derive(pw, s, cost, keyLen)
		done <- deriveResult{key: key, err: err}
	}()

	select {
	case r := <-done:
		return r.key, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", common.ErrDerivationTimeout, ctx.Err())
	}
}
