package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/abduss/uploads/internal/logger"
	"github.com/abduss/uploads/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxFileSize = 10 * 1024 * 1024 // 10MB

type recordStore interface {
	CreateUpload(ctx context.Context, key, url string, input Input, ownerID uuid.UUID) (SaveStatus, Upload)
	GetUploads(ctx context.Context, filter Filter, ownerID uuid.UUID) (RecordsList[Upload], error)
	FindOne(ctx context.Context, id, ownerID uuid.UUID) (Upload, error)
	SaveUpload(ctx context.Context, u *Upload) SaveStatus
	Remove(ctx context.Context, uploads ...Upload) error
}

// ObjectStore is the bucket/key addressed binary backend.
// GetObject reports a missing key as ErrObjectNotFound.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, content []byte, contentType string) error
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string) error
	PresignGetObject(ctx context.Context, bucketName, objectName string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

// Service orchestrates the record store and the object store. Every call is scoped to
// the caller's owner id.
type Service struct {
	repo         recordStore
	objectStore  ObjectStore
	objectBucket string
	maxFileSize  int64
}

// NewService constructs an upload service. A non-positive maxFileSize selects the default.
func NewService(repo recordStore, store ObjectStore, objectBucket string, maxFileSize int64) *Service {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	return &Service{
		repo:         repo,
		objectStore:  store,
		objectBucket: objectBucket,
		maxFileSize:  maxFileSize,
	}
}

// Bucket returns the object bucket every upload is stored in.
func (s *Service) Bucket() string {
	return s.objectBucket
}

// Upload creates the record and then writes the bytes under <owner>/<uuid>.<ext>.
// If the object write fails the record is removed again.
func (s *Service) Upload(ctx context.Context, file *File, input Input, ownerID uuid.UUID, server ServerInfo) (Upload, error) {
	if file == nil {
		metrics.RecordOperation("upload", metrics.OutcomeInvalid)
		return Upload{}, ErrFileRequired
	}
	if int64(len(file.Buffer)) > s.maxFileSize {
		metrics.RecordOperation("upload", metrics.OutcomeInvalid)
		return Upload{}, ErrFileTooLarge
	}

	fileName := generateFileName(file.OriginalName)
	key := objectKey(ownerID, fileName)
	url := server.fileURL(fileName)

	status, created := s.repo.CreateUpload(ctx, key, url, input, ownerID)
	switch status {
	case SaveSuccess:
	case SaveConflict:
		metrics.RecordOperation("upload", metrics.OutcomeConflict)
		return Upload{}, ErrInvalidLabel
	default:
		metrics.RecordOperation("upload", metrics.OutcomeError)
		return Upload{}, ErrInternal
	}

	if err := s.objectStore.PutObject(ctx, s.objectBucket, key, file.Buffer, file.ContentType); err != nil {
		metrics.RecordOperation("upload", metrics.OutcomeError)
		log := logger.FromContext(ctx).With(zap.String("key", key), zap.Stringer("upload_id", created.ID))
		log.Error("object write failed after record creation", zap.Error(err))
		if rmErr := s.repo.Remove(ctx, created); rmErr != nil {
			log.Error("orphaned upload record left behind", zap.Error(rmErr))
		}
		return Upload{}, fmt.Errorf("store object: %w", err)
	}

	metrics.RecordOperation("upload", metrics.OutcomeSuccess)
	metrics.AddUploadedBytes(len(file.Buffer))
	return created, nil
}

// GetUploads lists the owner's uploads as filtered by the record store.
func (s *Service) GetUploads(ctx context.Context, filter Filter, ownerID uuid.UUID) (RecordsList[Upload], error) {
	return s.repo.GetUploads(ctx, filter, ownerID)
}

// GetUpload returns the upload only when ownerID owns it.
func (s *Service) GetUpload(ctx context.Context, id, ownerID uuid.UUID) (Upload, error) {
	return s.repo.FindOne(ctx, id, ownerID)
}

// UpdateUploadLabel relabels an owned upload. Any save outcome other than success is internal.
func (s *Service) UpdateUploadLabel(ctx context.Context, id uuid.UUID, label string, ownerID uuid.UUID) (Upload, error) {
	u, err := s.GetUpload(ctx, id, ownerID)
	if err != nil {
		recordLookupFailure("update_label", err)
		return Upload{}, err
	}

	u.Label = &label
	if status := s.repo.SaveUpload(ctx, &u); status != SaveSuccess {
		metrics.RecordOperation("update_label", metrics.OutcomeError)
		return Upload{}, ErrInternal
	}

	metrics.RecordOperation("update_label", metrics.OutcomeSuccess)
	return u, nil
}

// DeleteUpload removes the object and then the record.
func (s *Service) DeleteUpload(ctx context.Context, id, ownerID uuid.UUID) error {
	u, err := s.GetUpload(ctx, id, ownerID)
	if err != nil {
		recordLookupFailure("delete", err)
		return err
	}

	if err := s.objectStore.RemoveObject(ctx, s.objectBucket, u.Key); err != nil {
		metrics.RecordOperation("delete", metrics.OutcomeError)
		return fmt.Errorf("remove object: %w", err)
	}

	if err := s.repo.Remove(ctx, u); err != nil {
		metrics.RecordOperation("delete", metrics.OutcomeError)
		logger.FromContext(ctx).Error("upload record left without object",
			zap.String("key", u.Key), zap.Stringer("upload_id", u.ID), zap.Error(err))
		return err
	}

	metrics.RecordOperation("delete", metrics.OutcomeSuccess)
	return nil
}

// GetFile streams <owner>/<fileName> from the object store. No record is consulted.
// fileName must be a single path segment so the key cannot leave the owner's prefix.
func (s *Service) GetFile(ctx context.Context, fileName string, ownerID uuid.UUID) (io.ReadCloser, error) {
	if fileName == "" || fileName == "." || fileName == ".." || strings.ContainsAny(fileName, `/\`) {
		return nil, ErrObjectNotFound
	}
	return s.objectStore.GetObject(ctx, s.objectBucket, objectKey(ownerID, fileName))
}

func recordLookupFailure(operation string, err error) {
	if errors.Is(err, ErrUploadNotFound) {
		metrics.RecordOperation(operation, metrics.OutcomeNotFound)
		return
	}
	metrics.RecordOperation(operation, metrics.OutcomeError)
}

func objectKey(ownerID uuid.UUID, fileName string) string {
	return ownerID.String() + "/" + fileName
}

// generateFileName returns <uuid>.<ext>, or a bare <uuid> when the original name has no extension.
func generateFileName(originalName string) string {
	name := uuid.NewString()
	ext := strings.TrimPrefix(path.Ext(path.Base(strings.ReplaceAll(originalName, `\`, "/"))), ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}
