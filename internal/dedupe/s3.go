package dedupe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bakkerme/digestbot/internal/core"
)

// S3API is the narrow part of the S3 client the store needs, so tests can fake it.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds optional overrides; empty values fall back to the default AWS chain.
type S3Config struct {
	Region       string
	Profile      string
	Endpoint     string // S3-compatible endpoint such as MinIO
	UsePathStyle bool
}

func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// S3Store keeps the seen set as a JSON array object, the same format FileStore writes.
type S3Store struct {
	client S3API
	bucket string
	key    string
}

func NewS3Store(client S3API, bucket, key string) (*S3Store, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	bucket = strings.TrimSpace(bucket)
	key = strings.TrimSpace(key)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if key == "" {
		return nil, fmt.Errorf("s3 object key is required")
	}
	return &S3Store{client: client, bucket: bucket, key: key}, nil
}

func (s *S3Store) Load(ctx context.Context) (core.SeenSet, error) {
	data, err := s.read(ctx)
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return core.NewSeenSet(), nil
	}
	seen, err := decodeLinks(data)
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: err}
	}
	return seen, nil
}

func (s *S3Store) read(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if IsS3NotFound(err) {
			err = fmt.Errorf("%w: %w", fs.ErrNotExist, err)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return data, nil
}

// Save merges the links into the stored object before writing it back, so a
// run that started from an empty set after a failed Load cannot shrink it.
// A read failure other than a missing object aborts the save; an object that
// does not decode is overwritten, as FileStore does with a corrupt file.
func (s *S3Store) Save(ctx context.Context, seen core.SeenSet) error {
	merged := seen.Clone()
	data, err := s.read(ctx)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("merge before put: %w", err)
	case len(bytes.TrimSpace(data)) > 0:
		if existing, decodeErr := decodeLinks(data); decodeErr == nil {
			for _, link := range existing.Links() {
				merged.Add(link)
			}
		}
	}
	data, err = encodeLinks(merged)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// IsS3NotFound reports whether err means the object has never been written.
func IsS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
