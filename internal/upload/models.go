package upload

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Upload is one stored file owned by a single user.
type Upload struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Label     *string   `json:"label"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is an inbound payload; it only lives for the duration of an upload call.
type File struct {
	OriginalName string
	ContentType  string
	Buffer       []byte
}

// ServerInfo is the protocol and host the request arrived on.
type ServerInfo struct {
	Protocol string
	Host     string
}

func (s ServerInfo) fileURL(fileName string) string {
	return fmt.Sprintf("%s://%s/uploads/file/%s", s.Protocol, s.Host, fileName)
}

// Input carries the caller-supplied metadata of an upload.
type Input struct {
	Label *string
}

// Filter narrows a listing. Zero values mean "store default".
type Filter struct {
	Label  string
	Limit  int
	Offset int
}

// RecordsList is one page of records plus the total number matching the filter.
type RecordsList[T any] struct {
	Records    []T `json:"records"`
	TotalCount int `json:"total_count"`
}

// SaveStatus is the outcome of a record store write.
type SaveStatus int

const (
	SaveSuccess SaveStatus = iota
	SaveConflict
	SaveError
)

func (s SaveStatus) String() string {
	switch s {
	case SaveSuccess:
		return "success"
	case SaveConflict:
		return "conflict"
	default:
		return "error"
	}
}
