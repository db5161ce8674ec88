// Package credentials contains the durable backends behind the in-memory
// credential store: a JSON file, a PostgreSQL table and an S3 object.
//
// Every backend stores the full set of records on Save and returns it on
// Load; the store itself owns locking and uniqueness.
package credentials

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists snapshots of all credential records.
type Repository interface {
	// Save durably writes records. A failed Save must leave the previously
	// saved snapshot intact.
	Save(ctx context.Context, records []*models.CredentialRecord) error

	// Load returns the last saved snapshot. Missing data yields (nil, nil);
	// undecodable data yields an error wrapping common.ErrStoreCorrupt,
	// possibly with the usable records and a *DecodeError.
	Load(ctx context.Context) ([]*models.CredentialRecord, error)
}

// Quarantiner is implemented by repositories whose Save replaces the whole
// snapshot. Quarantine copies the current durable data aside, stamped with
// at, and returns where it went ("" when there was nothing to copy).
type Quarantiner interface {
	Quarantine(ctx context.Context, at time.Time) (string, error)
}

func quarantineSuffix(at time.Time) string {
	return ".corrupt-" + at.UTC().Format("20060102T150405.000000000Z")
}
