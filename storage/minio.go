package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"hlsladder/config"
	"hlsladder/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketStats summarises a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByExtension  map[string]int64
}

// MinioStore is an ObjectStore backed by a MinIO / S3-compatible bucket.
type MinioStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStore creates a client from configuration. No request is made.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}
	return &MinioStore{client: client, bucketName: cfg.MinioBucket}, nil
}

// Bucket returns the bucket name.
func (m *MinioStore) Bucket() string {
	return m.bucketName
}

// Ping checks the bucket is reachable and exists.
func (m *MinioStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return classify(err, "check bucket "+m.bucketName)
	}
	if !exists {
		return fmt.Errorf("%w: bucket %s does not exist", ErrNotFound, m.bucketName)
	}
	logger.Info("MinIO bucket reachable", logger.String("bucket", m.bucketName))
	return nil
}

// Get downloads an object fully into memory.
func (m *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err, "get "+key)
	}
	defer object.Close()

	// GetObject is lazy; Stat surfaces missing keys before the read.
	if _, err := object.Stat(); err != nil {
		return nil, classify(err, "stat "+key)
	}
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, classify(err, "read "+key)
	}
	return data, nil
}

// Put uploads data in a single request.
func (m *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	}
	if _, err := m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return classify(err, "put "+key)
	}
	return nil
}

// List returns every object under prefix, recursively.
func (m *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var objects []ObjectInfo
	for object := range objectCh {
		if object.Err != nil {
			return nil, classify(object.Err, "list "+prefix)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, nil
}

// DeletePrefix removes every object under prefix and returns how many were removed.
func (m *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objects, err := m.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, fmt.Errorf("%w: nothing under %s", ErrNotFound, prefix)
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	for rerr := range m.client.RemoveObjects(ctx, m.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, classify(rerr.Err, "delete "+rerr.ObjectName)
		}
	}
	return len(objects), nil
}

// Stats computes totals for the objects under prefix.
func Stats(objects []ObjectInfo) BucketStats {
	stats := BucketStats{ByExtension: make(map[string]int64)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		stats.ByExtension[getFileExtension(obj.Key)]++
	}
	return stats
}

// SortedExtensions returns the extension keys of stats in name order.
func (s BucketStats) SortedExtensions() []string {
	exts := make([]string, 0, len(s.ByExtension))
	for ext := range s.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func getFileExtension(filename string) string {
	base := filename[strings.LastIndex(filename, "/")+1:]
	if i := strings.LastIndex(base, "."); i >= 0 {
		return base[i+1:]
	}
	return "none"
}

// classify maps a MinIO error onto the storage markers.
func classify(err error, op string) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %v", ErrNotFound, op, err)
	case resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" ||
		resp.Code == "SignatureDoesNotMatch" || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
	}
}
