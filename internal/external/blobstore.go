package external

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
)

// BlobStore is the object-storage capability the ETL pipeline's stages
// write intermediate and final artifacts through: one bucket per stage
// (raw-data, ai-processed, cleaned-data, final-data), keys namespaced
// {platform}/{YYYYMMDD}/{slug}_{timestamp}.{ext}.
type BlobStore interface {
	UploadBytes(ctx context.Context, bucket, key string, data []byte) (string, error)
	UploadText(ctx context.Context, bucket, key string, text string) (string, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}

// LocalBlobStore is the filesystem-backed BlobStore fallback, always
// available when a remote object store is unreachable or unconfigured.
// Grounded on the flat-file store's write-to-temp-then-rename durability
// pattern (internal/storage/filestore): each bucket is a subdirectory of
// root, each key a nested file path within it.
type LocalBlobStore struct {
	root   string
	logger arbor.ILogger
}

// NewLocalBlobStore constructs a LocalBlobStore rooted at root, creating it
// if necessary.
func NewLocalBlobStore(root string, logger arbor.ILogger) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob store root: %w", err)
	}
	return &LocalBlobStore{root: root, logger: logger}, nil
}

func (b *LocalBlobStore) objectPath(bucket, key string) string {
	return filepath.Join(b.root, bucket, filepath.FromSlash(key))
}

// objectURL returns a file:// URL a caller can use to reference the blob
// without the store itself; nothing serves these paths over HTTP.
func (b *LocalBlobStore) objectURL(path string) string {
	return "file://" + path
}

func (b *LocalBlobStore) UploadBytes(ctx context.Context, bucket, key string, data []byte) (string, error) {
	path := b.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("committing blob: %w", err)
	}

	b.logger.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("blob uploaded")
	return b.objectURL(path), nil
}

func (b *LocalBlobStore) UploadText(ctx context.Context, bucket, key string, text string) (string, error) {
	return b.UploadBytes(ctx, bucket, key, []byte(text))
}

// List returns every key under bucket whose path starts with prefix,
// lexically sorted.
func (b *LocalBlobStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	bucketDir := filepath.Join(b.root, bucket)
	var keys []string
	err := filepath.WalkDir(bucketDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing bucket %s: %w", bucket, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *LocalBlobStore) Delete(ctx context.Context, bucket, key string) error {
	path := b.objectPath(bucket, key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob %s/%s: %w", bucket, key, err)
	}
	return nil
}
