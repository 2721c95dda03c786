package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/tesla-ce/trust-backend/internal/logger"
)

// BucketService is the blob store port. Payload bytes (request captures,
// enrolment samples, committed models, audit trails) never live in the
// domain store, only their paths do.
type BucketService interface {
	Save(ctx context.Context, path string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, relying on ADC")
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucket,
	}, nil
}

func (bs *bucketService) Save(ctx context.Context, path string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := bs.storageClient.Bucket(bs.bucketName).Object(path).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return path, nil
}

func (bs *bucketService) Read(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	r, err := bs.storageClient.Bucket(bs.bucketName).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %q: %w", path, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (bs *bucketService) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	o := bs.storageClient.Bucket(bs.bucketName).Object(path)
	if err := o.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q: %w", path, err)
	}
	return nil
}

func (bs *bucketService) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := bs.storageClient.Bucket(bs.bucketName).Object(path).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Blob paths are deterministic hierarchies so operators can audit payloads
// without consulting the database.

func RequestDataPath(institutionID, learnerID, requestID uuid.UUID) string {
	return fmt.Sprintf("%s/requests/%s/%s.bin", institutionID, learnerID, requestID)
}

func SampleDataPath(institutionID, learnerID, sampleID uuid.UUID) string {
	return fmt.Sprintf("%s/enrolment/samples/%s/%s.bin", institutionID, learnerID, sampleID)
}

func ModelPath(institutionID, providerID, learnerID uuid.UUID) string {
	return fmt.Sprintf("%s/enrolment/models/%s/%s.model", institutionID, providerID, learnerID)
}

func ResultAuditPath(institutionID, requestID, providerID uuid.UUID) string {
	return fmt.Sprintf("%s/results/%s/%s.audit", institutionID, requestID, providerID)
}

func ValidationInfoPath(institutionID, sampleID, providerID uuid.UUID) string {
	return fmt.Sprintf("%s/enrolment/validations/%s/%s.json", institutionID, sampleID, providerID)
}
