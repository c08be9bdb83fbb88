package report

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ObjectPutter uploads one object to a bucket. Implemented by
// platform/s3.Client.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
}

// ArchiveDir uploads every file in a run directory to the bucket,
// keyed by the directory's base name. Returns how many objects were
// uploaded.
func ArchiveDir(ctx context.Context, store ObjectPutter, bucket, dir string) (int, error) {
	prefix := filepath.Base(dir)
	uploaded := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", rel, err)
		}
		key := prefix + "/" + filepath.ToSlash(rel)
		if err := store.PutObject(ctx, bucket, key, data); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	return uploaded, nil
}
