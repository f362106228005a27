package archiver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"mailadmin/pkg/s3"
)

// ObjectStore is the subset of the S3 client used for uploads.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

var _ ObjectStore = (*s3.Client)(nil)

// UploadResult describes where an archive was stored.
type UploadResult struct {
	Bucket string
	Key    string
	// URL is a presigned download link, empty when no TTL was requested.
	URL string
}

// Upload stores the archive at path under the manifest's object key.
func Upload(ctx context.Context, store ObjectStore, bucket, path string, m *Manifest, presignTTL time.Duration) (UploadResult, error) {
	if store == nil {
		return UploadResult{}, errors.New("object store is required")
	}
	if bucket == "" {
		return UploadResult{}, errors.New("bucket is required")
	}

	file, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("hash archive: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return UploadResult{}, fmt.Errorf("rewind archive: %w", err)
	}

	res := UploadResult{Bucket: bucket, Key: m.ObjectKey()}
	if err := store.PutObject(ctx, bucket, res.Key, file, size, hex.EncodeToString(hash.Sum(nil))); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", res.Key, err)
	}
	if presignTTL > 0 {
		if res.URL, err = store.PresignGet(ctx, bucket, res.Key, presignTTL); err != nil {
			return UploadResult{}, fmt.Errorf("presign %s: %w", res.Key, err)
		}
	}
	return res, nil
}
