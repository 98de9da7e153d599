// Package attachment removes stored contract files. Uploading is handled by
// the request layer; the engine only records metadata and cleans up.
package attachment

import (
	"context"
	"path"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
)

// Storage deletes stored attachment objects by key. Deleting a missing key
// is not an error.
type Storage interface {
	Delete(ctx context.Context, key string) error
}

var ErrInvalidKey = ierr.Sentinel("invalid_attachment_key", ierr.ErrValidation)

// NewKey builds the storage key of a new attachment:
// contracts/<contract id>/<ulid>-<slug of the file name>.
func NewKey(contractID snowflake.ID, fileName string) string {
	return path.Join("contracts", contractID.String(), ulid.Make().String()+"-"+slugFileName(fileName))
}

func slugFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	base := slug.Make(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		base = "file"
	}
	ext = slug.Make(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
