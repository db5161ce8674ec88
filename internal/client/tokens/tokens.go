// Package tokens caches the CLI's access token on disk between runs.
package tokens

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/filex"
)

const fileName = "token"

// Store keeps one token in <dir>/token with mode 0600.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, fileName)
}

// Save replaces the cached token.
func (s *Store) Save(token string) error {
	if err := filex.EnsureDir(s.dir, 0o700); err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path(), []byte(token), 0o600)
}

// Load returns the cached token, or "" when there is none.
func (s *Store) Load() (string, error) {
	b, err := filex.ReadFileIfExists(s.path())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Clear removes the cached token. A missing token is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
