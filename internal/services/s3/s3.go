// Package s3service provides S3 operations for case package files and plan reports.
package s3service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appConfig "case-disposition-engine/internal/config"
	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/utils"
)

// Key prefixes used in the bucket.
const (
	UploadPrefix    = "uploads/"
	ProcessedPrefix = "processed/"
	ReportPrefix    = "reports/"
)

// ObjectAPI is the subset of the S3 client used by the service.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Service handles S3 operations
type Service struct {
	client     ObjectAPI
	presigner  *s3.PresignClient
	bucketName string
}

// PresignedURLResult contains the presigned URL details
type PresignedURLResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlanReport is the JSON document stored for every confirmed plan.
type PlanReport struct {
	Plan      *models.AssignmentPlan `json:"plan"`
	Summary   models.PlanSummary     `json:"summary"`
	StoredAt  time.Time              `json:"stored_at"`
	Generator string                 `json:"generator"`
}

// NewService creates a new S3 service
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(appCfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &Service{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: appCfg.S3Bucket,
	}, nil
}

// NewWithClient creates a service around an existing client. Presigning is unavailable.
func NewWithClient(client ObjectAPI, bucket string) *Service {
	return &Service{client: client, bucketName: bucket}
}

// Bucket returns the bucket the service operates on.
func (s *Service) Bucket() string {
	return s.bucketName
}

// UploadKey builds the key a case package CSV is uploaded under.
func UploadKey(fileName string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "cases.csv"
	}
	return fmt.Sprintf("%s%s/%d_%s", UploadPrefix, now.UTC().Format("2006-01-02"), now.Unix(), name)
}

// ArchiveKey maps an uploaded key to its processed location.
func ArchiveKey(key string) string {
	return ProcessedPrefix + strings.TrimPrefix(key, UploadPrefix)
}

// ReportKey returns the key of a plan report.
func ReportKey(planID string, createdAt time.Time) string {
	return fmt.Sprintf("%s%s/%s.json", ReportPrefix, createdAt.UTC().Format("2006-01-02"), planID)
}

// GeneratePresignedUploadURL creates a presigned URL for uploading files
func (s *Service) GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, expiryMinutes int) (*PresignedURLResult, error) {
	if s.presigner == nil {
		return nil, errors.New("presigning is not configured")
	}
	if expiryMinutes <= 0 {
		expiryMinutes = 15 // Default 15 minutes
	}

	expiry := time.Duration(expiryMinutes) * time.Minute

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	presignedReq, err := s.presigner.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		utils.Component("s3").Error("Failed to generate presigned URL",
			utils.String("bucket", s.bucketName),
			utils.ObjectKey(key),
			utils.Error(err),
		)
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	utils.Component("s3").Info("Generated presigned upload URL",
		utils.String("bucket", s.bucketName),
		utils.ObjectKey(key),
		utils.Int("expiry_minutes", expiryMinutes),
	)

	return &PresignedURLResult{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// DownloadFile downloads a file from S3
func (s *Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		utils.Component("s3").Error("Failed to download file from S3",
			utils.String("bucket", s.bucketName),
			utils.ObjectKey(key),
			utils.Error(err),
		)
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	utils.Component("s3").Info("Downloaded file from S3",
		utils.String("bucket", s.bucketName),
		utils.ObjectKey(key),
		utils.Int("size", len(data)),
	)

	return data, nil
}

// UploadFile uploads a file to S3
func (s *Service) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		utils.Component("s3").Error("Failed to upload file to S3",
			utils.String("bucket", s.bucketName),
			utils.ObjectKey(key),
			utils.Error(err),
		)
		return fmt.Errorf("failed to upload file: %w", err)
	}

	utils.Component("s3").Info("Uploaded file to S3",
		utils.String("bucket", s.bucketName),
		utils.ObjectKey(key),
		utils.Int("size", len(data)),
	)

	return nil
}

// PutPlanReport stores the plan as a JSON report and returns its key.
func (s *Service) PutPlanReport(ctx context.Context, plan *models.AssignmentPlan, elapsed time.Duration) (string, error) {
	report := PlanReport{
		Plan:      plan,
		Summary:   plan.Summary(elapsed),
		StoredAt:  time.Now().UTC(),
		Generator: "case-disposition-engine",
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan report: %w", err)
	}

	key := ReportKey(plan.ID, plan.CreatedAt)
	if err := s.UploadFile(ctx, key, data, "application/json"); err != nil {
		return "", err
	}

	return key, nil
}

// FileExists checks if a file exists in S3
func (s *Service) FileExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file: %w", err)
	}

	return true, nil
}

// ArchiveFile moves a processed upload under the processed prefix and returns the new key.
func (s *Service) ArchiveFile(ctx context.Context, key string) (string, error) {
	dest := ArchiveKey(key)

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucketName),
		CopySource: aws.String(fmt.Sprintf("%s/%s", s.bucketName, key)),
		Key:        aws.String(dest),
	})
	if err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}); err != nil {
		return "", fmt.Errorf("failed to delete file: %w", err)
	}

	utils.Component("s3").Info("Archived file in S3",
		utils.String("source", key),
		utils.String("destination", dest),
	)

	return dest, nil
}
