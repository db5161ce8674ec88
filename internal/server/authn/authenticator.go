// Package authn implements signup and login against the credential store.
package authn

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/credentials"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Authenticator turns passwords into credential records and checks them.
type Authenticator struct {
	store   *credentials.Store
	deriver *kdf.Deriver
	tiers   map[kdf.Tier]kdf.CostParams
	log     logging.Logger

	dummyOnce sync.Once
	dummy     *models.CredentialRecord
	dummyErr  error
}

type Option func(*Authenticator)

// WithTiers replaces kdf.DefaultTiers.
func WithTiers(tiers map[kdf.Tier]kdf.CostParams) Option {
	return func(a *Authenticator) { a.tiers = tiers }
}

func New(store *credentials.Store, deriver *kdf.Deriver, log logging.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		store:   store,
		deriver: deriver,
		tiers:   kdf.DefaultTiers,
		log:     log.With("module", "authn"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Signup creates a credential record for username and returns its id.
//
// When the record was created but could not be written to durable storage,
// Signup returns the id together with an error wrapping
// common.ErrPersistenceWarning. The account is usable until restart.
func (a *Authenticator) Signup(ctx context.Context, username, password string, tier kdf.Tier) (int64, error) {
	if username == "" || password == "" {
		return 0, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	cost, ok := a.tiers[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %q", common.ErrUnknownTier, tier)
	}

	if _, exists := a.store.FindByUsername(username); exists {
		return 0, common.ErrUsernameTaken
	}

	salt, err := common.RandBytes(kdf.SaltLen)
	if err != nil {
		return 0, fmt.Errorf("%w: salt: %w", common.ErrorInternal, err)
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	key, err := a.deriver.Derive(ctx, pw, salt, cost, kdf.KeyLen)
	if err != nil {
		a.log.Error(ctx, "signup derivation failed", "tier", tier, "error", err)
		return 0, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	defer common.WipeByteArray(key)

	rec, err := a.store.InsertAndPersist(ctx, &models.CredentialRecord{
		UserName: username,
		Salt:     salt,
		Key:      key,
		Cost:     cost,
	})
	switch {
	case errors.Is(err, common.ErrAlreadyExists):
		// lost the race to a concurrent signup
		return 0, common.ErrUsernameTaken
	case err != nil && rec != nil:
		a.log.Warn(ctx, "user created but not persisted", "user_id", rec.ID, "error", err)
		return rec.ID, fmt.Errorf("%w: %v", common.ErrPersistenceWarning, err)
	case err != nil:
		return 0, err
	}

	a.log.Info(ctx, "user registered", "user_id", rec.ID, "tier", tier)
	return rec.ID, nil
}

// Login checks password against the stored record and returns the user id.
//
// Unknown usernames, wrong passwords and records that cannot be verified
// all yield common.ErrInvalidCredentials, and all cost one derivation.
func (a *Authenticator) Login(ctx context.Context, username, password string) (int64, error) {
	rec, found := a.store.FindByUsername(username)
	if found {
		if err := rec.Validate(); err != nil {
			a.log.Error(ctx, "stored credential record is unusable", "user_id", rec.ID, "error", err)
			found = false
		}
	}
	if !found {
		d, err := a.dummyRecord()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		rec = d
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	key, err := a.deriver.Derive(ctx, pw, rec.Salt, rec.Cost, len(rec.Key))
	if err != nil {
		a.log.Error(ctx, "login derivation failed", "cost", rec.Cost.String(), "error", err)
		return 0, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	defer common.WipeByteArray(key)

	match := subtle.ConstantTimeCompare(key, rec.Key) == 1
	if !found || !match {
		return 0, common.ErrInvalidCredentials
	}
	return rec.ID, nil
}

// dummyRecord is checked against when the username is unknown, so that
// lookup misses take as long as wrong passwords.
func (a *Authenticator) dummyRecord() (*models.CredentialRecord, error) {
	a.dummyOnce.Do(func() {
		cost, ok := a.tiers[kdf.TierFast]
		if !ok {
			cost = kdf.DefaultTiers[kdf.TierFast]
		}
		salt, err := common.RandBytes(kdf.SaltLen)
		if err != nil {
			a.dummyErr = err
			return
		}
		key, err := common.RandBytes(kdf.KeyLen)
		if err != nil {
			a.dummyErr = err
			return
		}
		a.dummy = &models.CredentialRecord{Salt: salt, Key: key, Cost: cost}
	})
	return a.dummy, a.dummyErr
}
