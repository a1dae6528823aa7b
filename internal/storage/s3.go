package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"
	"baklava-be/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// MaxImageSize caps uploaded product images.
const MaxImageSize = 5 << 20

const presignTTL = time.Hour

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ImageStore keeps product images outside the database.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageStore stores images in a private bucket and hands out presigned
// GET URLs.
type S3ImageStore struct {
	objects objectAPI
	presign func(ctx context.Context, key string) (string, error)
	bucket  string
}

type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func NewS3ImageStore(ctx context.Context, opts S3Options) (*S3ImageStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	presigner := s3.NewPresignClient(client)

	store := &S3ImageStore{
		objects: client,
		bucket:  opts.Bucket,
	}
	store.presign = func(ctx context.Context, key string) (string, error) {
		req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(store.bucket),
			Key:    aws.String(key),
		}, func(o *s3.PresignOptions) {
			o.Expires = presignTTL
		})
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
	return store, nil
}

func (s *S3ImageStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Storage"),
		zap.String("method", "Upload"),
		zap.String("key", key),
	)

	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Error("failed to upload object", zap.Error(err))
		return apperror.External("failed to upload image", err)
	}

	log.Info("object uploaded")
	return nil
}

func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to delete object",
			zap.String("key", key),
			zap.Error(err),
		)
		return apperror.External("failed to delete image", err)
	}
	return nil
}

// URL returns a presigned GET URL valid for one hour. Empty keys yield "".
func (s *S3ImageStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	u, err := s.presign(ctx, key)
	if err != nil {
		return "", apperror.External("failed to sign image url", err)
	}
	return u, nil
}

// ValidateContentType rejects anything but png, jpeg and webp.
func ValidateContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if _, ok := allowedContentTypes[ct]; !ok {
		return apperror.Validation("image", "image must be png, jpeg or webp")
	}
	return nil
}

// ProductImageKey builds products/<id>/<unix>_<name>.
func ProductImageKey(productID, filename, contentType string, now time.Time) string {
	name := utils.Slugify(filepath.Base(filename))
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = allowedContentTypes[strings.ToLower(contentType)]
		name += ext
	}
	if name == "" || name == ext {
		name = "image" + ext
	}
	return fmt.Sprintf("products/%s/%d_%s", productID, now.Unix(), name)
}
