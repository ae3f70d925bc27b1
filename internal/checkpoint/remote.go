package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/FFD-Group/Tidio-Products/internal/batch"
	"github.com/FFD-Group/Tidio-Products/internal/config"
)

// ObjectStore pushes manifest checkpoints to an S3-compatible bucket so a
// run can be resumed after the process (or its host) is gone. The object
// name returned by Upload is the opaque reference handed back to operators.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

func NewObjectStore(ctx context.Context, cfg config.RemoteConfig, logger *slog.Logger) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With("component", "checkpoint"),
	}, nil
}

// Upload stores the manifest and returns its object name. The name embeds
// the creation timestamp and sync kind so successive pushes of the same run
// overwrite each other while distinct runs never collide.
func (s *ObjectStore) Upload(ctx context.Context, m *batch.Manifest) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	created, err := time.Parse(time.RFC3339, m.Meta.CreatedAt)
	if err != nil {
		created = time.Now().UTC()
	}
	name := path.Join(s.prefix, fmt.Sprintf(
		"manifest-%s-%s.json",
		created.UTC().Format("20060102T150405Z"),
		m.Meta.SyncKind,
	))

	_, err = s.client.PutObject(ctx, s.bucket, name,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("upload checkpoint: %w", err)
	}

	s.logger.Debug("pushed checkpoint", "object", name, "bytes", len(data))
	return name, nil
}

// Download retrieves a manifest previously stored under ref.
func (s *ObjectStore) Download(ctx context.Context, ref string) (*batch.Manifest, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch checkpoint %q: %w", ref, err)
	}
	defer obj.Close()

	var m batch.Manifest
	if err := json.NewDecoder(obj).Decode(&m); err != nil {
		return nil, fmt.Errorf("parse checkpoint %q: %w", ref, err)
	}
	return &m, nil
}
