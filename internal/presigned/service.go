package presigned

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/uploads/internal/metrics"
	"github.com/abduss/uploads/internal/upload"
	"github.com/google/uuid"
)

// ErrInvalidTTL is returned when a requested link lifetime is negative or above the maximum.
var ErrInvalidTTL = errors.New("invalid ttl")

type uploadFinder interface {
	GetUpload(ctx context.Context, id, ownerID uuid.UUID) (upload.Upload, error)
}

type urlSigner interface {
	PresignGetObject(ctx context.Context, bucketName, objectName string, ttl time.Duration) (string, error)
}

// Link is a time-limited download URL that bypasses the API.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service signs download links for uploads the caller owns.
type Service struct {
	uploads    uploadFinder
	signer     urlSigner
	bucket     string
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

func NewService(uploads uploadFinder, signer urlSigner, bucket string, defaultTTL, maxTTL time.Duration) *Service {
	return &Service{
		uploads:    uploads,
		signer:     signer,
		bucket:     bucket,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        time.Now,
	}
}

// GenerateGetURL signs a GET link for the upload's object. A zero ttl selects the default.
func (s *Service) GenerateGetURL(ctx context.Context, uploadID, ownerID uuid.UUID, ttl time.Duration) (Link, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 || ttl > s.maxTTL {
		metrics.RecordOperation("presign", metrics.OutcomeInvalid)
		return Link{}, fmt.Errorf("%w: must be between 1s and %s", ErrInvalidTTL, s.maxTTL)
	}

	u, err := s.uploads.GetUpload(ctx, uploadID, ownerID)
	if err != nil {
		if errors.Is(err, upload.ErrUploadNotFound) {
			metrics.RecordOperation("presign", metrics.OutcomeNotFound)
		} else {
			metrics.RecordOperation("presign", metrics.OutcomeError)
		}
		return Link{}, err
	}

	issuedAt := s.now()
	signed, err := s.signer.PresignGetObject(ctx, s.bucket, u.Key, ttl)
	if err != nil {
		metrics.RecordOperation("presign", metrics.OutcomeError)
		return Link{}, fmt.Errorf("presign %s: %w", u.Key, err)
	}

	metrics.RecordOperation("presign", metrics.OutcomeSuccess)
	return Link{URL: signed, ExpiresAt: issuedAt.Add(ttl).UTC()}, nil
}
