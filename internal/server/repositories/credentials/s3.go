package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// ObjectAPI is the part of the S3 client used by S3Repository.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Repository keeps the snapshot as one JSON object. A PutObject replaces
// the object as a whole, so readers never see a partial write.
type S3Repository struct {
	client ObjectAPI
	bucket string
	key    string
}

func NewS3Repository(client ObjectAPI, bucket, key string) *S3Repository {
	return &S3Repository{client: client, bucket: bucket, key: key}
}

// NewS3Client builds a client for an S3-compatible endpoint (MinIO in
// development) using static credentials.
func NewS3Client(ctx context.Context, region, user, password, endpoint string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(user, password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (r *S3Repository) Save(ctx context.Context, records []*models.CredentialRecord) error {
	b, err := Encode(records)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", r.bucket, r.key, err)
	}
	return nil
}

func (r *S3Repository) Load(ctx context.Context) ([]*models.CredentialRecord, error) {
	b, err := r.read(ctx)
	if err != nil || b == nil {
		return nil, err
	}
	return Decode(b)
}

// read returns the object body, or nil when the object does not exist.
func (r *S3Repository) read(ctx context.Context) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", r.bucket, r.key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s/%s: %w", r.bucket, r.key, err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// Quarantine copies the current object to a sibling key.
func (r *S3Repository) Quarantine(ctx context.Context, at time.Time) (string, error) {
	b, err := r.read(ctx)
	if err != nil || b == nil {
		return "", err
	}
	dst := r.key + quarantineSuffix(at)
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(dst),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s/%s: %w", r.bucket, dst, err)
	}
	return dst, nil
}
