// Package storage stores user uploads in S3 when a bucket is configured and
// in a local directory otherwise.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/gstbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidKey = errors.New("invalid_object_key")

type Storage interface {
	// Put stores body under key and returns the public URL of the object.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

var Module = fx.Module("storage",
	fx.Provide(New),
)

func New(cfg config.Config, log *zap.Logger) (Storage, error) {
	log = log.Named("storage")
	if strings.TrimSpace(cfg.Storage.Bucket) != "" {
		log.Info("using s3 storage", zap.String("bucket", cfg.Storage.Bucket))
		return NewS3(context.Background(), cfg.Storage)
	}
	log.Info("using local storage", zap.String("dir", cfg.Storage.LocalDir))
	return NewLocal(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
}

// ObjectKey builds "<prefix>/<ulid>-<slug>.<ext>" so that uploads never
// collide and stay readable.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	base := slug.Make(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "file"
	}
	name := strings.ToLower(ulid.Make().String()) + "-" + base + ext
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
