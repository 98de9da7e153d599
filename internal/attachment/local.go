package attachment

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	ierr "github.com/smallbiznis/contractdesk/internal/errors"
)

// LocalStorage keeps attachments below a directory on the local disk.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ierr.WithError(err).
			WithHintf("failed to remove attachment %s", key).
			Mark(ierr.ErrSystem)
	}
	return nil
}
