package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"exprview/domain/core"
	"exprview/ports"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultPresignExpiry = 15 * time.Minute

// S3Config holds the bucket connection settings
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string
	Endpoint  string // optional; custom endpoint such as MinIO
	PathStyle bool
	Expiry    time.Duration
}

// S3Store keeps downloads as objects <prefix>/<id>/<name> and returns
// presigned GET URLs
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewS3Store creates an S3 download store using the default credential chain
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		expiry:  expiry,
	}, nil
}

func (s *S3Store) key(id core.DownloadID, name string) string {
	return path.Join(s.prefix, id.String(), name)
}

// Put uploads a download and presigns a GET URL for it
func (s *S3Store) Put(ctx context.Context, id core.DownloadID, name, contentType string, body io.Reader) (ports.Download, error) {
	if _, err := core.ParseDownloadID(id.String()); err != nil {
		return ports.Download{}, err
	}
	name = cleanName(name)
	key := s.key(id, name)
	input := &s3.PutObjectInput{
		Bucket:             &s.bucket,
		Key:                &key,
		Body:               body,
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", name)),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return ports.Download{}, core.NewUpstreamError("s3", err)
	}

	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key}, func(po *s3.PresignOptions) {
		po.Expires = s.expiry
	})
	if err != nil {
		return ports.Download{}, core.NewUpstreamError("s3", err)
	}
	return ports.Download{
		ID:        id,
		Name:      name,
		URL:       out.URL,
		ExpiresAt: time.Now().Add(s.expiry),
	}, nil
}

// Open streams a stored download back
func (s *S3Store) Open(ctx context.Context, id core.DownloadID) (io.ReadCloser, string, error) {
	prefix := path.Join(s.prefix, id.String()) + "/"
	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix, MaxKeys: aws.Int32(1)})
	if err != nil {
		return nil, "", core.NewUpstreamError("s3", err)
	}
	if len(list.Contents) == 0 {
		return nil, "", fmt.Errorf("%w: %s", core.ErrDownloadNotFound, id)
	}
	obj := list.Contents[0]
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: obj.Key})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, "", fmt.Errorf("%w: %s", core.ErrDownloadNotFound, id)
		}
		return nil, "", core.NewUpstreamError("s3", err)
	}
	return out.Body, path.Base(aws.ToString(obj.Key)), nil
}
