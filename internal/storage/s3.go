package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/bloodlink/internal/cryptox"
)

// DigestMetadataKey is the object metadata entry holding the BLAKE2b-256
// digest of the uploaded bytes.
const DigestMetadataKey = "content-digest"

// S3Options configure an S3Backend.
type S3Options struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Endpoint      string
	PublicBaseURL string
}

// s3API is the part of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Backend stores objects in an S3-compatible bucket (MinIO in development).
type S3Backend struct {
	api    s3API
	bucket string
	public *url.URL
}

// NewS3Backend builds a path-style S3 client from static credentials.
func NewS3Backend(ctx context.Context, o S3Options) (*S3Backend, error) {
	if o.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	publicBase := o.PublicBaseURL
	if publicBase == "" {
		publicBase = o.Endpoint
	}
	public, err := url.Parse(publicBase)
	if err != nil || public.Scheme == "" || public.Host == "" {
		return nil, fmt.Errorf("invalid public base url %q", publicBase)
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKey,
			o.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
		}
		opts.UsePathStyle = true
	})

	return &S3Backend{api: client, bucket: o.Bucket, public: public}, nil
}

func (b *S3Backend) Put(ctx context.Context, path string, blob []byte, contentType string) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(blob),
		ContentLength: aws.Int64(int64(len(blob))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			DigestMetadataKey: cryptox.ContentDigest(blob),
		},
	})
	return err
}

// Locator is the public URL of path: <public base>/<bucket>/<path>.
func (b *S3Backend) Locator(path string) string {
	return b.public.JoinPath(b.bucket, path).String()
}

func (b *S3Backend) Delete(ctx context.Context, paths []string) error {
	ids := make([]types.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(p)})
	}

	out, err := b.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		failed := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			failed = append(failed, fmt.Sprintf("%s (%s)", aws.ToString(e.Key), aws.ToString(e.Code)))
		}
		return fmt.Errorf("s3 refused to delete %s", strings.Join(failed, ", "))
	}
	return nil
}
