package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used by S3Storage.
type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Storage implements ObjectStorage for AWS S3.
type S3Storage struct {
	client s3API
	bucket string
	config S3Config
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Region is the AWS region for the S3 bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// MaxAttempts caps SDK-level attempts per request. The default of 1
	// leaves retrying to whatever invokes the pipeline.
	MaxAttempts int
	// MultipartConfig holds multipart upload settings.
	MultipartConfig MultipartUploadConfig
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:          "us-east-1",
		MaxAttempts:     1,
		MultipartConfig: DefaultMultipartConfig(),
	}
}

// NewS3Storage creates a new S3 storage client.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Storage(s3.NewFromConfig(awsCfg, s3Opts...), bucket, cfg), nil
}

// NewS3StorageWithClient creates a new S3 storage with a pre-configured client.
func NewS3StorageWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Storage {
	return newS3Storage(client, bucket, cfg)
}

func newS3Storage(client s3API, bucket string, cfg S3Config) *S3Storage {
	if cfg.MultipartConfig.PartSize <= 0 {
		cfg.MultipartConfig = DefaultMultipartConfig()
	}
	return &S3Storage{
		client: client,
		bucket: bucket,
		config: cfg,
	}
}

// Put writes body to objectPath with a single PutObject call.
func (s *S3Storage) Put(ctx context.Context, objectPath string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectPath),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Get reads the whole object at objectPath.
func (s *S3Storage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return data, nil
}

// UploadMultipart uploads a file, switching to a multipart upload when it
// exceeds one part. The ETag comes from the upload response itself.
func (s *S3Storage) UploadMultipart(ctx context.Context, localPath, objectPath, contentType string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	fileSize := stat.Size()

	// If file is small enough, use simple upload
	if fileSize <= s.config.MultipartConfig.PartSize {
		input := &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectPath),
			Body:          file,
			ContentLength: aws.Int64(fileSize),
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}
		resp, err := s.client.PutObject(ctx, input)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		return aws.ToString(resp.ETag), nil
	}

	etag, err := s.doMultipartUpload(ctx, file, fileSize, objectPath, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return etag, nil
}

func (s *S3Storage) doMultipartUpload(ctx context.Context, file *os.File, fileSize int64, objectPath, contentType string) (string, error) {
	partSize := s.config.MultipartConfig.PartSize

	createInput := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	}
	if contentType != "" {
		createInput.ContentType = aws.String(contentType)
	}
	createResp, err := s.client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return "", err
	}

	uploadID := createResp.UploadId
	numParts := int(math.Ceil(float64(fileSize) / float64(partSize)))
	completedParts := make([]types.CompletedPart, 0, numParts)

	for partNum := 1; partNum <= numParts; partNum++ {
		offset := int64(partNum-1) * partSize
		size := partSize
		if offset+size > fileSize {
			size = fileSize - offset
		}

		uploadResp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectPath),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(partNum)),
			Body:          io.NewSectionReader(file, offset, size),
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			s.abortMultipartUpload(ctx, objectPath, uploadID)
			return "", err
		}

		completedParts = append(completedParts, types.CompletedPart{
			ETag:       uploadResp.ETag,
			PartNumber: aws.Int32(int32(partNum)),
		})
	}

	completeResp, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		s.abortMultipartUpload(ctx, objectPath, uploadID)
		return "", err
	}

	return aws.ToString(completeResp.ETag), nil
}

func (s *S3Storage) abortMultipartUpload(ctx context.Context, objectPath string, uploadID *string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
	})
}

// Delete removes an object from S3.
func (s *S3Storage) Delete(ctx context.Context, objectPath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Exists checks if an object exists in S3.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Walk pages through ListObjectsV2 and stops as soon as fn asks it to.
func (s *S3Storage) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrListFailed, err)
		}
		for _, obj := range page.Contents {
			if err := fn(aws.ToString(obj.Key)); err != nil {
				if errors.Is(err, ErrStopWalk) {
					return nil
				}
				return err
			}
		}
	}

	return nil
}
