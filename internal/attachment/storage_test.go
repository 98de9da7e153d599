package attachment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bwmarrin/snowflake"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key := NewKey(snowflake.ID(42), "Vertrag 2025 (signed).PDF")

	parts := strings.Split(key, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "contracts", parts[0])
	assert.Equal(t, "42", parts[1])
	assert.True(t, strings.HasSuffix(parts[2], "-vertrag-2025-signed.pdf"), parts[2])
	assert.Len(t, strings.SplitN(parts[2], "-", 2)[0], 26)

	assert.NotEqual(t, key, NewKey(snowflake.ID(42), "Vertrag 2025 (signed).PDF"))
}

func TestSlugFileNameStripsPaths(t *testing.T) {
	assert.Equal(t, "passwd", slugFileName("../../etc/passwd"))
	assert.Equal(t, "scan.jpg", slugFileName(`C:\Users\me\Scan.JPG`))
	assert.Equal(t, "file", slugFileName("  "))
}

func TestValidKey(t *testing.T) {
	assert.NoError(t, validKey("contracts/1/a.pdf"))
	assert.ErrorIs(t, validKey(""), ErrInvalidKey)
	assert.ErrorIs(t, validKey("/etc/passwd"), ErrInvalidKey)
	assert.ErrorIs(t, validKey("contracts/../../x"), ErrInvalidKey)
}

func TestLocalStorageDelete(t *testing.T) {
	dir := t.TempDir()
	key := "contracts/1/file.pdf"
	full := filepath.Join(dir, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("pdf"), 0o600))

	store := NewLocalStorage(dir)
	require.NoError(t, store.Delete(context.Background(), key))
	_, err := os.Stat(full)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(context.Background(), key), "missing files are ignored")
	assert.ErrorIs(t, store.Delete(context.Background(), "../outside"), ErrInvalidKey)
}

type fakeS3 struct {
	keys []string
	err  error
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, *in.Bucket+":"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageDelete(t *testing.T) {
	client := &fakeS3{}
	store := newS3Storage(client, "docs", "tenant-a")

	require.NoError(t, store.Delete(context.Background(), "contracts/1/file.pdf"))
	assert.Equal(t, []string{"docs:tenant-a/contracts/1/file.pdf"}, client.keys)

	client.err = errors.New("access denied")
	err := store.Delete(context.Background(), "contracts/1/other.pdf")
	require.Error(t, err)
	assert.True(t, ierr.IsSystem(err))
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{Region: "eu-central-1"})
	assert.True(t, ierr.IsValidation(err))
}
