package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// Common errors.
var (
	ErrInvalidRef = errors.New("store: invalid reference")
	ErrNotFound   = errors.New("store: object not found")
)

// DefaultRegion is the region PO.DAAC buckets live in.
const DefaultRegion = "us-west-2"

// Store is the set of object operations retrieval needs.
type Store interface {
	Info(ctx context.Context, ref string) (ObjectInfo, error)
	Open(ctx context.Context, ref string) (*RemoteFile, error)
	Download(ctx context.Context, ref string, w io.Writer) (int64, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// ParseRef splits a reference into bucket and key.
func ParseRef(ref string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(ref, "s3://")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return bucket, key, nil
}

// Basename returns the file name of a reference.
func Basename(ref string) string {
	return path.Base(ref)
}

// BucketOpener opens a bucket by name.
type BucketOpener func(ctx context.Context, name string) (*blob.Bucket, error)

// URLOpener returns an opener that substitutes the bucket name for
// "{bucket}" in template and opens the resulting gocloud URL, e.g.
// "s3://{bucket}?region=us-west-2".
func URLOpener(template string) BucketOpener {
	return func(ctx context.Context, name string) (*blob.Bucket, error) {
		return blob.OpenBucket(ctx, strings.ReplaceAll(template, "{bucket}", name))
	}
}

// S3Options configures S3Opener.
type S3Options struct {
	// Region of the buckets. Default: DefaultRegion
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible services.
	Endpoint string

	// UsePathStyle forces path-style addressing. Implied by Endpoint.
	UsePathStyle bool
}

// S3Opener returns an opener backed by a single AWS SDK v2 client using the
// given credentials.
func S3Opener(ctx context.Context, creds aws.CredentialsProvider, opts S3Options) (BucketOpener, error) {
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		if opts.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return func(ctx context.Context, name string) (*blob.Bucket, error) {
		return s3blob.OpenBucketV2(ctx, client, name, nil)
	}, nil
}

// BlobStore implements Store over gocloud buckets.
type BlobStore struct {
	open BucketOpener

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

// New creates a BlobStore. The caller must call Close when done.
func New(open BucketOpener) *BlobStore {
	return &BlobStore{
		open:    open,
		buckets: make(map[string]*blob.Bucket),
	}
}

// bucket returns the cached bucket for name, opening it on first use.
func (s *BlobStore) bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[name]; ok {
		return b, nil
	}
	b, err := s.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("store: open bucket %s: %w", name, err)
	}
	s.buckets[name] = b
	return b, nil
}

func (s *BlobStore) resolve(ctx context.Context, ref string) (*blob.Bucket, string, error) {
	name, key, err := ParseRef(ref)
	if err != nil {
		return nil, "", err
	}
	b, err := s.bucket(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return b, key, nil
}

// Info returns the object's size without reading its data.
func (s *BlobStore) Info(ctx context.Context, ref string) (ObjectInfo, error) {
	b, key, err := s.resolve(ctx, ref)
	if err != nil {
		return ObjectInfo{}, err
	}

	attrs, err := b.Attributes(ctx, key)
	if err != nil {
		return ObjectInfo{}, wrapErr("info", ref, err)
	}

	return ObjectInfo{
		Ref:     ref,
		Size:    attrs.Size,
		ModTime: attrs.ModTime,
	}, nil
}

// Open returns a random-access handle on the object. No data is read until
// the first Read or ReadAt.
func (s *BlobStore) Open(ctx context.Context, ref string) (*RemoteFile, error) {
	b, key, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	attrs, err := b.Attributes(ctx, key)
	if err != nil {
		return nil, wrapErr("open", ref, err)
	}

	return &RemoteFile{
		ctx:     ctx,
		ref:     ref,
		bucket:  b,
		key:     key,
		size:    attrs.Size,
		modTime: attrs.ModTime,
	}, nil
}

// Download copies the object to w and returns the number of bytes written.
func (s *BlobStore) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	b, key, err := s.resolve(ctx, ref)
	if err != nil {
		return 0, err
	}

	r, err := b.NewReader(ctx, key, nil)
	if err != nil {
		return 0, wrapErr("download", ref, err)
	}
	defer r.Close()

	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("store: download %s: %w", ref, err)
	}
	return n, nil
}

// ReadRange reads length bytes at offset. A negative length reads to the
// end of the object.
func (s *BlobStore) ReadRange(ctx context.Context, ref string, offset, length int64) ([]byte, error) {
	b, key, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	r, err := b.NewRangeReader(ctx, key, offset, length, nil)
	if err != nil {
		return nil, wrapErr("read range", ref, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("store: read range %s: %w", ref, err)
	}
	return data, nil
}

// Close closes all opened buckets.
func (s *BlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, b := range s.buckets {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.buckets, name)
	}
	return firstErr
}

func wrapErr(op, ref string, err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("store: %s %s: %w", op, ref, ErrNotFound)
	}
	return fmt.Errorf("store: %s %s: %w", op, ref, err)
}
