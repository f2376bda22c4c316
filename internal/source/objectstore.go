package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures an S3-compatible origin.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Layout    Layout
}

// ObjectStore reads documents from a bucket via minio-go.
type ObjectStore struct {
	origin
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStore creates an object-store origin. No request is made until
// the first fetch.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("source: s3 origin needs endpoint and bucket")
	}
	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("source: s3 client: %w", err)
	}
	return newObjectStore(client, cfg), nil
}

func newObjectStore(client *minio.Client, cfg ObjectStoreConfig) *ObjectStore {
	o := &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
	o.origin = origin{layout: cfg.Layout.withDefaults(), get: o.get}
	return o
}

func (o *ObjectStore) key(p string) string {
	if o.prefix == "" {
		return p
	}
	return path.Join(o.prefix, p)
}

func (o *ObjectStore) get(ctx context.Context, p string) ([]byte, error) {
	key := o.key(p)
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectError(p, err)
	}
	defer obj.Close()

	// GetObject is lazy; errors such as NoSuchKey surface on first read.
	data, err := io.ReadAll(io.LimitReader(obj, maxDocumentBytes+1))
	if err != nil {
		return nil, objectError(p, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("source: %s exceeds %d bytes", p, maxDocumentBytes)
	}
	sourceLog.Debug("object_fetched",
		slog.String("bucket", o.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return data, nil
}

// objectError maps S3 error responses onto StatusError.
func objectError(p string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.Code == "NoSuchBucket":
		return &StatusError{Path: p, Code: http.StatusNotFound}
	case resp.StatusCode != 0:
		return &StatusError{Path: p, Code: resp.StatusCode}
	}
	return fmt.Errorf("source: get %s: %w", p, err)
}
