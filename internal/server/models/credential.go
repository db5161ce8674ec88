// Package models defines the server-side data records shared between the
// credential store, its persisters and the session layer.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/kdf"
)

// CredentialRecord is a user's verifiable secret. The plaintext password is
// never part of it.
type CredentialRecord struct {
	ID        int64
	UserName  string
	Salt      []byte
	Key       []byte
	Cost      kdf.CostParams
	CreatedAt time.Time
}

// Clone returns a deep copy so callers never share byte slices with the store.
func (r *CredentialRecord) Clone() *CredentialRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Salt = append([]byte(nil), r.Salt...)
	c.Key = append([]byte(nil), r.Key...)
	return &c
}

// Validate reports whether r can ever be checked against a password: it
// needs an id, a name, a salt Derive accepts, a key and safe cost
// parameters.
func (r *CredentialRecord) Validate() error {
	var errs []error
	if r.ID <= 0 {
		errs = append(errs, fmt.Errorf("id %d is not positive", r.ID))
	}
	if r.UserName == "" {
		errs = append(errs, errors.New("empty username"))
	}
	if len(r.Salt) < kdf.MinSaltLen {
		errs = append(errs, fmt.Errorf("salt length %d below %d", len(r.Salt), kdf.MinSaltLen))
	}
	if len(r.Key) == 0 {
		errs = append(errs, errors.New("empty key"))
	}
	if err := r.Cost.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
