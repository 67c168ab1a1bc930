package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"kidshop/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// StorageService stores product images in S3 compatible object storage
type StorageService struct {
	s3Client s3iface.S3API
	bucket   string
	baseURL  string
}

// NewStorageService creates a new storage service
func NewStorageService(cfg config.StorageConfig) (*StorageService, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 configuration missing")
	}

	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.DisableSSL = aws.Bool(strings.HasPrefix(cfg.Endpoint, "http://"))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
	}, nil
}

// ImageContentType returns the content type for an image file name, or false when
// the extension is not accepted
func ImageContentType(filename string) (string, bool) {
	ct, ok := allowedImageTypes[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

// UploadProductImage uploads an image under products/<productID>/ and returns its public URL
func (s *StorageService) UploadProductImage(ctx context.Context, productID uuid.UUID, filename string, body io.ReadSeeker) (string, error) {
	contentType, ok := ImageContentType(filename)
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", filepath.Ext(filename))
	}

	key := fmt.Sprintf("products/%s/%s%s", productID, uuid.New().String(), strings.ToLower(filepath.Ext(filename)))

	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.baseURL + "/" + key, nil
}

// DeleteObject removes an uploaded object by its public URL
func (s *StorageService) DeleteObject(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, s.baseURL+"/")
	if key == url {
		return fmt.Errorf("url %q is not served from this bucket", url)
	}
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
