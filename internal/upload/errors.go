package upload

import "errors"

var (
	// ErrFileRequired is returned when an upload arrives without a file.
	ErrFileRequired = errors.New(`"file" field is required`)
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUploadNotFound signals that no record matches the id for this owner.
	ErrUploadNotFound = errors.New("upload not found")
	// ErrObjectNotFound signals that the object store has nothing under the key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidLabel is returned when the record store rejects the label.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrInternal covers record store failures reported without detail.
	ErrInternal = errors.New("internal server error")
)
