package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/AnTengye/contractchat/config"
	"github.com/AnTengye/contractchat/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSource picks files under a bucket prefix, for contract folders that
// live in object storage rather than on the local disk.
type MinioSource struct {
	client *minio.Client
	bucket string
}

func NewMinioSource(cfg *config.MinioConfig) (*MinioSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioSource{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *MinioSource) Name() string { return "minio" }

// CheckBucket verifies the configured bucket is reachable.
func (s *MinioSource) CheckBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// List returns every object under root. The object key is the file path, so
// the first key segment acts as the directory name.
func (s *MinioSource) List(ctx context.Context, root string) ([]model.SelectedFile, error) {
	prefix := strings.Trim(strings.TrimSpace(root), "/")
	if prefix == "" {
		return nil, validationError("a bucket prefix is required")
	}

	var files []model.SelectedFile
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		name := path.Base(obj.Key)
		files = append(files, model.SelectedFile{
			Name:         name,
			Path:         obj.Key,
			Size:         obj.Size,
			ContentType:  mime.TypeByExtension(path.Ext(name)),
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *MinioSource) Open(ctx context.Context, root, relPath string) (io.ReadCloser, error) {
	prefix := strings.Trim(strings.TrimSpace(root), "/")
	key := path.Clean(relPath)
	if prefix == "" || !strings.HasPrefix(key, prefix+"/") {
		return nil, validationError("%s is outside %s", relPath, root)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}
