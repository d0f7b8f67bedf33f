package presigned

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abduss/uploads/internal/auth"
	"github.com/abduss/uploads/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeFinder struct {
	uploads map[uuid.UUID]upload.Upload
}

func (f *fakeFinder) GetUpload(ctx context.Context, id, ownerID uuid.UUID) (upload.Upload, error) {
	u, ok := f.uploads[id]
	if !ok || u.OwnerID != ownerID {
		return upload.Upload{}, upload.ErrUploadNotFound
	}
	return u, nil
}

type fakeSigner struct {
	bucket string
	key    string
	ttl    time.Duration
	err    error
}

func (s *fakeSigner) PresignGetObject(ctx context.Context, bucketName, objectName string, ttl time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.bucket, s.key, s.ttl = bucketName, objectName, ttl
	return "https://objects.test/" + bucketName + "/" + objectName, nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *fakeSigner, upload.Upload) {
	t.Helper()
	owner := uuid.New()
	u := upload.Upload{ID: uuid.New(), Key: owner.String() + "/file.txt", OwnerID: owner}
	signer := &fakeSigner{}
	svc := NewService(&fakeFinder{uploads: map[uuid.UUID]upload.Upload{u.ID: u}}, signer, "uploads", 15*time.Minute, time.Hour)
	svc.now = func() time.Time { return fixedNow }
	return svc, signer, u
}

func TestGenerateGetURLUsesDefaultTTL(t *testing.T) {
	svc, signer, u := newTestService(t)

	link, err := svc.GenerateGetURL(context.Background(), u.ID, u.OwnerID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if link.URL != "https://objects.test/uploads/"+u.Key {
		t.Fatalf("unexpected url %q", link.URL)
	}
	if signer.ttl != 15*time.Minute {
		t.Fatalf("expected default ttl, got %s", signer.ttl)
	}
	if !link.ExpiresAt.Equal(fixedNow.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", link.ExpiresAt)
	}
}

func TestGenerateGetURLRejectsTTLOutOfRange(t *testing.T) {
	svc, signer, u := newTestService(t)

	for _, ttl := range []time.Duration{-time.Second, 2 * time.Hour} {
		if _, err := svc.GenerateGetURL(context.Background(), u.ID, u.OwnerID, ttl); !errors.Is(err, ErrInvalidTTL) {
			t.Fatalf("ttl %s: expected ErrInvalidTTL, got %v", ttl, err)
		}
	}
	if signer.key != "" {
		t.Fatalf("signer must not be called")
	}
}

func TestGenerateGetURLIsOwnerScoped(t *testing.T) {
	svc, signer, u := newTestService(t)

	_, err := svc.GenerateGetURL(context.Background(), u.ID, uuid.New(), time.Minute)
	if !errors.Is(err, upload.ErrUploadNotFound) {
		t.Fatalf("expected ErrUploadNotFound, got %v", err)
	}
	if signer.key != "" {
		t.Fatalf("signer must not be called")
	}
}

func TestGenerateGetURLWrapsSignerError(t *testing.T) {
	svc, signer, u := newTestService(t)
	signer.err = errors.New("boom")

	_, err := svc.GenerateGetURL(context.Background(), u.ID, u.OwnerID, time.Minute)
	if !errors.Is(err, signer.err) {
		t.Fatalf("expected signer error, got %v", err)
	}
}

func TestHandlerGenerateGetURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, u := newTestService(t)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.SetUser(c, auth.ContextUser{ID: u.OwnerID})
		c.Next()
	})
	RegisterRoutes(router.Group("/"), svc)

	cases := []struct {
		name   string
		target string
		status int
	}{
		{"default ttl", "/uploads/" + u.ID.String() + "/presigned-url", http.StatusOK},
		{"explicit ttl", "/uploads/" + u.ID.String() + "/presigned-url?ttl=30m", http.StatusOK},
		{"unparsable ttl", "/uploads/" + u.ID.String() + "/presigned-url?ttl=soon", http.StatusBadRequest},
		{"ttl above max", "/uploads/" + u.ID.String() + "/presigned-url?ttl=3h", http.StatusBadRequest},
		{"malformed id", "/uploads/nope/presigned-url", http.StatusBadRequest},
		{"unknown upload", "/uploads/" + uuid.NewString() + "/presigned-url", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var link Link
			if err := json.Unmarshal(rr.Body.Bytes(), &link); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if link.URL == "" || link.ExpiresAt.IsZero() {
				t.Fatalf("incomplete link %+v", link)
			}
		})
	}
}
