// Package objectstore talks to the S3-compatible bucket (MinIO in deployment)
// that holds uploaded survey spreadsheets under {programa}/{dataset}/ prefixes.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/samvalverde/PAAA/internal/logging"
)

// ErrNotFound is returned (wrapped) when a key or prefix has no objects.
var ErrNotFound = errors.New("objectstore: not found")

// Config describes the endpoint and credentials. Endpoint is host:port; the
// scheme follows Secure.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Region    string
}

// Object is one listed object.
type Object struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// API is the subset of *s3.Client the store needs.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store reads and writes objects in one bucket.
type Store struct {
	api    API
	bucket string
}

// New builds an S3 client for cfg. Path-style addressing is always used so
// MinIO endpoints work without virtual-host DNS.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket must not be empty")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.Secure))
		}
		o.UsePathStyle = true
	})
	return NewWithAPI(client, cfg.Bucket), nil
}

// NewWithAPI wraps an existing client.
func NewWithAPI(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// WithBucket returns a Store sharing the client but addressing bucket.
func (s *Store) WithBucket(bucket string) *Store {
	if bucket == s.bucket {
		return s
	}
	return &Store{api: s.api, bucket: bucket}
}

func endpointURL(endpoint string, secure bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if secure {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// List returns every object under prefix (recursively) in listing order.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore: list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, o := range page.Contents {
			out = append(out, Object{
				Key:          aws.ToString(o.Key),
				LastModified: aws.ToTime(o.LastModified),
				Size:         aws.ToInt64(o.Size),
			})
		}
	}
	logging.Debug().Str("bucket", s.bucket).Str("prefix", prefix).Int("objects", len(out)).Msg("objectstore: listed")
	return out, nil
}

// Open streams one object. The caller closes the body.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("objectstore: get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// Get reads one object fully.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read s3://%s/%s: %w", s.bucket, key, err)
	}
	return b, nil
}

// Put uploads data under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("objectstore: put s3://%s/%s: %w", s.bucket, key, err)
	}
	logging.Info().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(data)).Msg("objectstore: uploaded")
	return nil
}

// Pick chooses the object to load from a listing:
//
//   - with filename, the first object whose key ends with filename or whose
//     base name equals it; no match is ErrNotFound;
//   - else with version, the newest object whose key contains version;
//   - else (or when no key contains version) the newest object.
func Pick(objs []Object, filename, version string) (Object, error) {
	if len(objs) == 0 {
		return Object{}, fmt.Errorf("%w: empty listing", ErrNotFound)
	}
	if filename != "" {
		for _, o := range objs {
			if strings.HasSuffix(o.Key, filename) || path.Base(o.Key) == filename {
				return o, nil
			}
		}
		return Object{}, fmt.Errorf("%w: filename %q", ErrNotFound, filename)
	}
	if version != "" {
		var hits []Object
		for _, o := range objs {
			if strings.Contains(o.Key, version) {
				hits = append(hits, o)
			}
		}
		if len(hits) > 0 {
			return newest(hits), nil
		}
	}
	return newest(objs), nil
}

// newest returns the most recently modified object; ties keep listing order.
func newest(objs []Object) Object {
	sorted := append([]Object(nil), objs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	return sorted[0]
}

// Resolve lists prefix and applies Pick.
func (s *Store) Resolve(ctx context.Context, prefix, filename, version string) (Object, error) {
	objs, err := s.List(ctx, prefix)
	if err != nil {
		return Object{}, err
	}
	o, err := Pick(objs, filename, version)
	if err != nil {
		return Object{}, fmt.Errorf("s3://%s/%s: %w", s.bucket, prefix, err)
	}
	return o, nil
}

// Source adapts one object to datasource.Source.
type Source struct {
	store *Store
	key   string
}

// Source returns a datasource for key.
func (s *Store) Source(key string) *Source { return &Source{store: s, key: key} }

// Open implements datasource.Source.
func (o *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.store.Open(ctx, o.key)
}

// Name returns the object key.
func (o *Source) Name() string { return o.key }
