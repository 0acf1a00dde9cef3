package asset

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectOptions configures an ObjectLocator.
type ObjectOptions struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
	// Extensions is the probe order for bare keys. Nil means DefaultExtensions.
	Extensions []string
}

// ObjectLocator resolves keys against an S3-compatible bucket.
type ObjectLocator struct {
	client *minio.Client
	bucket string
	prefix string
	exts   []string
}

// NewObjectLocator connects a minio client for opts. No request is made
// until the first Locate.
func NewObjectLocator(opts ObjectOptions) (*ObjectLocator, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("asset: object store needs endpoint and bucket")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("asset: object store %s: %w", opts.Endpoint, err)
	}
	return NewObjectLocatorFromClient(client, opts.Bucket, opts.Prefix, opts.Extensions), nil
}

// NewObjectLocatorFromClient wraps an existing client.
func NewObjectLocatorFromClient(client *minio.Client, bucket, prefix string, exts []string) *ObjectLocator {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &ObjectLocator{
		client: client,
		bucket: bucket,
		prefix: prefix,
		exts:   exts,
	}
}

// objectKeys lists the object names probed for key, in order.
func (l *ObjectLocator) objectKeys(key string) []string {
	name := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	ext := path.Ext(name)
	for _, e := range l.exts {
		if strings.EqualFold(e, ext) {
			return []string{path.Join(l.prefix, name)}
		}
	}
	out := make([]string, 0, len(l.exts))
	for _, e := range l.exts {
		out = append(out, path.Join(l.prefix, name+e))
	}
	return out
}

// Locate implements Source.
func (l *ObjectLocator) Locate(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("asset: %q: %w", key, ErrInvalidKey)
	}
	for _, name := range l.objectKeys(key) {
		data, err := l.get(ctx, name)
		if err == nil {
			return data, nil
		}
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NotFound" {
			continue
		}
		return nil, fmt.Errorf("asset: get %s/%s: %w", l.bucket, name, err)
	}
	return nil, fmt.Errorf("asset: %q in bucket %s: %w", key, l.bucket, ErrNotFound)
}

func (l *ObjectLocator) get(ctx context.Context, name string) ([]byte, error) {
	obj, err := l.client.GetObject(ctx, l.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(name, compressedSuffix) {
		return decompress(data)
	}
	return data, nil
}
