package kdf

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriver_ReturnsKey(t *testing.T) {
	d := NewDeriver(2, time.Minute)

	got, err := d.Derive(context.Background(), []byte("hunter2"), testSalt(), testCost, KeyLen)
	require.NoError(t, err)

	want, err := Derive([]byte("hunter2"), testSalt(), testCost, KeyLen)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeriver_PropagatesDerivationError(t *testing.T) {
	d := NewDeriver(1, time.Minute)

	_, err := d.Derive(context.Background(), []byte("pw"), testSalt(), CostParams{N: 3, R: 1, P: 1}, KeyLen)
	assert.ErrorIs(t, err, common.ErrDerivation)
}

func TestDeriver_TimeoutYieldsNoKey(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := func(password, salt []byte, cost CostParams, keyLen int) ([]byte, error) {
		<-release
		return make([]byte, keyLen), nil
	}
	d := NewDeriver(1, 20*time.Millisecond, WithDeriveFunc(slow))

	key, err := d.Derive(context.Background(), []byte("pw"), testSalt(), testCost, KeyLen)
	require.ErrorIs(t, err, common.ErrDerivationTimeout)
	assert.Nil(t, key)
}

func TestDeriver_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := func(password, salt []byte, cost CostParams, keyLen int) ([]byte, error) {
		<-release
		return nil, errors.New("unreachable")
	}
	d := NewDeriver(1, 0, WithDeriveFunc(slow))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := d.Derive(ctx, []byte("pw"), testSalt(), testCost, KeyLen)
	assert.ErrorIs(t, err, common.ErrDerivationTimeout)
}

func TestDeriver_BoundsConcurrency(t *testing.T) {
	var running, peak int32
	fn := func(password, salt []byte, cost CostParams, keyLen int) ([]byte, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return []byte{1}, nil
	}
	d := NewDeriver(2, time.Minute, WithDeriveFunc(fn))

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := d.Derive(context.Background(), []byte("pw"), testSalt(), testCost, KeyLen)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDeriver_CallerMayWipePassword(t *testing.T) {
	var seen []byte
	fn := func(password, salt []byte, cost CostParams, keyLen int) ([]byte, error) {
		seen = append([]byte(nil), password...)
		return []byte{1}, nil
	}
	d := NewDeriver(1, time.Minute, WithDeriveFunc(fn))

	pw := []byte("secret")
	_, err := d.Derive(context.Background(), pw, testSalt(), testCost, KeyLen)
	require.NoError(t, err)
	common.WipeByteArray(pw)

	assert.Equal(t, []byte("secret"), seen)
}
