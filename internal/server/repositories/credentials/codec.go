package credentials

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const formatVersion = 1

type document struct {
	Version int       `json:"version"`
	Users   []userDTO `json:"users"`
}

type userDTO struct {
	ID             int64          `json:"id"`
	UserName       string         `json:"username"`
	PasswordParams passwordParams `json:"password_params"`
	CreatedAt      time.Time      `json:"created_at"`
}

type passwordParams struct {
	Salt            string `json:"salt"`
	Key             string `json:"key"`
	Cost            int    `json:"cost"`
	BlockSize       int    `json:"block_size"`
	Parallelization int    `json:"parallelization"`
}

// legacyUser is an entry of the plain users.json array written by the
// previous Node service. Its salt is the hex text itself, used verbatim as
// scrypt salt bytes.
type legacyUser struct {
	ID             int64  `json:"id"`
	UserName       string `json:"username"`
	PasswordParams struct {
		Salt            string `json:"salt"`
		Key             string `json:"key"`
		Cost            int    `json:"cost"`
		BlockSize       int    `json:"blockSize"`
		Parallelization int    `json:"parallelization"`
	} `json:"passwordParams"`
}

// Encode serializes records into the versioned JSON document.
func Encode(records []*models.CredentialRecord) ([]byte, error) {
	doc := document{Version: formatVersion, Users: make([]userDTO, 0, len(records))}
	for _, r := range records {
		doc.Users = append(doc.Users, userDTO{
			ID:       r.ID,
			UserName: r.UserName,
			PasswordParams: passwordParams{
				Salt:            hex.EncodeToString(r.Salt),
				Key:             hex.EncodeToString(r.Key),
				Cost:            r.Cost.N,
				BlockSize:       r.Cost.R,
				Parallelization: r.Cost.P,
			},
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeError reports records dropped because they were malformed,
// duplicated or could never be verified. It wraps common.ErrStoreCorrupt.
// The records that passed are returned alongside it.
type DecodeError struct {
	Dropped []string
	// Names are the usernames of dropped records. They stay claimed so a
	// new signup cannot take over an account that is still on disk.
	Names []string
	// MaxID is the highest id carried by any record in the source,
	// dropped ones included.
	MaxID int64
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: dropped %d record(s): %s",
		common.ErrStoreCorrupt, len(e.Dropped), strings.Join(e.Dropped, "; "))
}

func (e *DecodeError) Unwrap() error { return common.ErrStoreCorrupt }

// Decode parses either the versioned document or the legacy array format.
// Empty input decodes to no records. An unreadable document yields an
// error wrapping common.ErrStoreCorrupt and no records; unusable records
// are dropped one by one and reported through *DecodeError.
func Decode(b []byte) ([]*models.CredentialRecord, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		return decodeLegacy(b)
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreCorrupt, err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", common.ErrStoreCorrupt, doc.Version)
	}

	var f recordFilter
	for _, u := range doc.Users {
		salt, err := hex.DecodeString(u.PasswordParams.Salt)
		if err != nil {
			f.drop(u.ID, u.UserName, fmt.Errorf("salt: %w", err))
			continue
		}
		key, err := hex.DecodeString(u.PasswordParams.Key)
		if err != nil {
			f.drop(u.ID, u.UserName, fmt.Errorf("key: %w", err))
			continue
		}
		f.add(&models.CredentialRecord{
			ID:       u.ID,
			UserName: u.UserName,
			Salt:     salt,
			Key:      key,
			Cost: kdf.CostParams{
				N: u.PasswordParams.Cost,
				R: u.PasswordParams.BlockSize,
				P: u.PasswordParams.Parallelization,
			},
			CreatedAt: u.CreatedAt,
		})
	}
	return f.result()
}

func decodeLegacy(b []byte) ([]*models.CredentialRecord, error) {
	var users []legacyUser
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreCorrupt, err)
	}

	var f recordFilter
	for _, u := range users {
		key, err := hex.DecodeString(u.PasswordParams.Key)
		if err != nil {
			f.drop(u.ID, u.UserName, fmt.Errorf("key: %w", err))
			continue
		}
		f.add(&models.CredentialRecord{
			ID:       u.ID,
			UserName: u.UserName,
			Salt:     []byte(u.PasswordParams.Salt),
			Key:      key,
			Cost: kdf.CostParams{
				N: u.PasswordParams.Cost,
				R: u.PasswordParams.BlockSize,
				P: u.PasswordParams.Parallelization,
			},
		})
	}
	return f.result()
}

// recordFilter keeps the usable records of a loaded snapshot. Later
// duplicates of a username or id lose to the first one.
type recordFilter struct {
	records []*models.CredentialRecord
	names   map[string]struct{}
	ids     map[int64]struct{}
	bad     DecodeError
}

func (f *recordFilter) drop(id int64, name string, err error) {
	f.seen(id)
	f.bad.Dropped = append(f.bad.Dropped, fmt.Sprintf("user %q (id %d): %v", name, id, err))
	if name != "" {
		f.bad.Names = append(f.bad.Names, name)
	}
}

func (f *recordFilter) seen(id int64) {
	if id > f.bad.MaxID {
		f.bad.MaxID = id
	}
}

func (f *recordFilter) add(r *models.CredentialRecord) {
	if f.names == nil {
		f.names = make(map[string]struct{})
		f.ids = make(map[int64]struct{})
	}
	if err := r.Validate(); err != nil {
		f.drop(r.ID, r.UserName, err)
		return
	}
	if _, dup := f.names[r.UserName]; dup {
		f.drop(r.ID, r.UserName, errors.New("duplicate username"))
		return
	}
	if _, dup := f.ids[r.ID]; dup {
		f.drop(r.ID, r.UserName, errors.New("duplicate id"))
		return
	}
	f.seen(r.ID)
	f.names[r.UserName] = struct{}{}
	f.ids[r.ID] = struct{}{}
	f.records = append(f.records, r)
}

func (f *recordFilter) result() ([]*models.CredentialRecord, error) {
	if len(f.bad.Dropped) > 0 {
		bad := f.bad
		return f.records, &bad
	}
	return f.records, nil
}
