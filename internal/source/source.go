// Package source resolves the inputs and outputs of the command line tool.
// A location is "-" for the standard streams, s3://bucket/key for an object
// in S3 or an S3 compatible store, and a local path otherwise.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("location not found")
	ErrInvalidLocation = errors.New("invalid location")
)

const s3Scheme = "s3://"

type S3Config struct {
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO or LocalStack.
	Endpoint     string
	UsePathStyle bool
	// PartSize is the multipart upload part size in bytes. Zero keeps the
	// transfer manager default; bodies up to one part use a single PutObject.
	PartSize int64

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

type Location struct {
	Bucket string
	Key    string
	Path   string
}

// Parse splits a location string.
func Parse(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return Location{Path: uri}, nil
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q must be s3://bucket/key", ErrInvalidLocation, uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

func (l Location) IsS3() bool  { return l.Bucket != "" }
func (l Location) IsStd() bool { return !l.IsS3() && l.Path == "-" }

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Store opens locations. The S3 client is created on first use.
type Store struct {
	Stdin  io.Reader
	Stdout io.Writer

	config S3Config
	log    *zap.Logger
	client *s3.Client
	upload *transfermanager.Client
}

func New(cfg S3Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		config: cfg,
		log:    logger,
	}
}

func (s *Store) s3Client(ctx context.Context) (*s3.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	var opts []func(*config.LoadOptions) error
	if s.config.Region != "" {
		opts = append(opts, config.WithRegion(s.config.Region))
	}
	if s.config.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.config.AccessKeyID, s.config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if s.config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.config.Endpoint)
			// S3 compatible stores do not all implement flexible checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	}
	if s.config.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	s.client = s3.NewFromConfig(awsCfg, s3Opts...)
	return s.client, nil
}

// uploader splits large bodies into concurrent multipart uploads.
func (s *Store) uploader(ctx context.Context) (*transfermanager.Client, error) {
	if s.upload != nil {
		return s.upload, nil
	}
	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	s.upload = transfermanager.New(client, func(o *transfermanager.Options) {
		if s.config.PartSize > 0 {
			o.PartSizeBytes = s.config.PartSize
		}
	})
	return s.upload, nil
}

// Open returns a reader over the content at uri. The caller closes it.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	switch {
	case loc.IsStd():
		return io.NopCloser(s.Stdin), nil
	case !loc.IsS3():
		f, err := os.Open(loc.Path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, loc, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", loc, err)
		}
		return f, nil
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if nsk := (*types.NoSuchKey)(nil); errors.As(err, &nsk) {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, loc, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", loc, err)
	}

	s.log.Debug("opened object", zap.String("location", loc.String()), zap.Int64p("size", out.ContentLength))
	return out.Body, nil
}

func (s *Store) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	rc, err := s.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return data, nil
}

// WriteFile replaces the content at uri with data.
func (s *Store) WriteFile(ctx context.Context, uri string, data []byte) error {
	loc, err := Parse(uri)
	if err != nil {
		return err
	}

	switch {
	case loc.IsStd():
		if _, err := s.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	case !loc.IsS3():
		if err := os.WriteFile(loc.Path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", loc, err)
		}
		return nil
	}

	uploader, err := s.uploader(ctx)
	if err != nil {
		return err
	}
	_, err = uploader.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", loc, err)
	}

	s.log.Debug("uploaded object", zap.String("location", loc.String()), zap.Int("size", len(data)))
	return nil
}
