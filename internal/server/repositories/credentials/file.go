package credentials

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// FileRepository keeps the credential snapshot in a single JSON file.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Save writes the snapshot to a temp file and renames it over the target,
// so a crash mid-write leaves the previous file untouched.
func (r *FileRepository) Save(ctx context.Context, records []*models.CredentialRecord) error {
	b, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := filex.EnsureDir(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(r.path, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return nil
}

func (r *FileRepository) Load(ctx context.Context) ([]*models.CredentialRecord, error) {
	b, err := filex.ReadFileIfExists(r.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return Decode(b)
}

// Quarantine copies the current file next to itself. The original stays in
// place until the next Save replaces it.
func (r *FileRepository) Quarantine(ctx context.Context, at time.Time) (string, error) {
	b, err := filex.ReadFileIfExists(r.path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", r.path, err)
	}
	if b == nil {
		return "", nil
	}
	dst := r.path + quarantineSuffix(at)
	if err := filex.WriteFileAtomic(dst, b, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}
