package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository stores one row per credential record. Records are
// immutable once created, so Save only inserts rows that are not there yet.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save writes all records in a single transaction.
func (r *PostgresRepository) Save(ctx context.Context, records []*models.CredentialRecord) error {
	query :=
		`INSERT INTO credentials (id, username, salt, derived_key, cost, block_size, parallelization, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (username) DO NOTHING
		 `

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range records {
			_, err := tx.ExecContext(ctx, query,
				rec.ID, rec.UserName, rec.Salt, rec.Key, rec.Cost.N, rec.Cost.R, rec.Cost.P, rec.CreatedAt)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) Load(ctx context.Context) ([]*models.CredentialRecord, error) {
	query :=
		`SELECT id, username, salt, derived_key, cost, block_size, parallelization, created_at
		 FROM credentials
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	// rows that can never be verified are dropped here, not at login
	var f recordFilter
	for rows.Next() {
		rec := &models.CredentialRecord{}
		if err := rows.Scan(&rec.ID, &rec.UserName, &rec.Salt, &rec.Key,
			&rec.Cost.N, &rec.Cost.R, &rec.Cost.P, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		f.add(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return f.result()
}
