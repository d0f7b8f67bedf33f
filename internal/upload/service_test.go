package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "uploads"

var testServer = ServerInfo{Protocol: "http", Host: "host"}

func newTestService() (*Service, *fakeRepo, *fakeObjectStore) {
	repo := newFakeRepo()
	store := newFakeObjectStore()
	return NewService(repo, store, testBucket, 1024), repo, store
}

func label(s string) *string { return &s }

func TestNewServiceDefaults(t *testing.T) {
	service := NewService(newFakeRepo(), newFakeObjectStore(), "media", 0)

	assert.Equal(t, "media", service.Bucket())
	assert.Equal(t, int64(defaultMaxFileSize), service.maxFileSize)
}

func TestUploadScenarioPhotoPNG(t *testing.T) {
	service, repo, store := newTestService()
	owner := uuid.New()
	content := []byte("0123456789")

	created, err := service.Upload(context.Background(),
		&File{OriginalName: "photo.png", ContentType: "image/png", Buffer: content},
		Input{Label: label("vacation")}, owner, testServer)
	require.NoError(t, err)

	keyPattern := regexp.MustCompile("^" + owner.String() + `/([0-9a-f-]{36})\.png$`)
	m := keyPattern.FindStringSubmatch(created.Key)
	require.NotNil(t, m, "unexpected key %q", created.Key)
	assert.Equal(t, "http://host/uploads/file/"+m[1]+".png", created.URL)
	require.NotNil(t, created.Label)
	assert.Equal(t, "vacation", *created.Label)
	assert.Equal(t, owner, created.OwnerID)

	assert.Len(t, repo.records, 1)
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, content, store.objects[testBucket+"/"+created.Key])
	assert.Equal(t, "image/png", store.contentTypes[created.Key])
}

func TestUploadWithoutFileTouchesNoStore(t *testing.T) {
	service, repo, store := newTestService()

	_, err := service.Upload(context.Background(), nil, Input{}, uuid.New(), testServer)

	assert.ErrorIs(t, err, ErrFileRequired)
	assert.Zero(t, repo.calls)
	assert.Zero(t, store.calls)
}

func TestUploadKeyExtension(t *testing.T) {
	tests := []struct {
		name     string
		original string
		suffix   string
	}{
		{name: "simple", original: "notes.txt", suffix: ".txt"},
		{name: "last extension wins", original: "archive.tar.gz", suffix: ".gz"},
		{name: "no extension", original: "README", suffix: ""},
		{name: "windows path", original: `C:\docs\report.pdf`, suffix: ".pdf"},
		{name: "dot directory", original: "dir.d/Makefile", suffix: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _ := newTestService()
			owner := uuid.New()

			created, err := service.Upload(context.Background(), &File{OriginalName: tt.original, Buffer: []byte("x")}, Input{}, owner, testServer)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(created.Key, owner.String()+"/"), created.Key)
			name := strings.TrimPrefix(created.Key, owner.String()+"/")
			_, err = uuid.Parse(strings.TrimSuffix(name, tt.suffix))
			assert.NoError(t, err, "generated name %q", name)
			if tt.suffix == "" {
				assert.NotContains(t, name, ".")
			}
		})
	}
}

func TestUploadConflictSkipsObjectWrite(t *testing.T) {
	service, _, store := newTestService()
	owner := uuid.New()

	_, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{Label: label("dup")}, owner, testServer)
	require.NoError(t, err)

	_, err = service.Upload(context.Background(), &File{OriginalName: "b.png", Buffer: []byte("b")}, Input{Label: label("dup")}, owner, testServer)

	assert.ErrorIs(t, err, ErrInvalidLabel)
	assert.Equal(t, 1, store.puts)
}

func TestUploadStoreErrorIsInternal(t *testing.T) {
	service, repo, store := newTestService()
	status := SaveError
	repo.createStatus = &status

	_, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, uuid.New(), testServer)

	assert.ErrorIs(t, err, ErrInternal)
	assert.Zero(t, store.puts)
}

func TestUploadTooLarge(t *testing.T) {
	service, repo, store := newTestService()

	_, err := service.Upload(context.Background(), &File{OriginalName: "big.bin", Buffer: make([]byte, 1025)}, Input{}, uuid.New(), testServer)

	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Zero(t, repo.calls)
	assert.Zero(t, store.calls)
}

func TestUploadObjectFailureRemovesRecord(t *testing.T) {
	service, repo, store := newTestService()
	store.putErr = errors.New("bucket unavailable")

	_, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, uuid.New(), testServer)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.putErr)
	assert.Empty(t, repo.records)
}

func TestGetUploadIsOwnerScoped(t *testing.T) {
	service, _, _ := newTestService()
	owner := uuid.New()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, owner, testServer)
	require.NoError(t, err)

	got, err := service.GetUpload(context.Background(), created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = service.GetUpload(context.Background(), created.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUploadNotFound)

	_, err = service.GetUpload(context.Background(), uuid.New(), owner)
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestGetUploadsDelegatesWithOwner(t *testing.T) {
	service, repo, _ := newTestService()
	owner := uuid.New()
	for _, l := range []string{"cats", "dogs", "cats-2"} {
		_, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{Label: label(l)}, owner, testServer)
		require.NoError(t, err)
	}
	_, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{Label: label("cats")}, uuid.New(), testServer)
	require.NoError(t, err)

	list, err := service.GetUploads(context.Background(), Filter{Label: "cats"}, owner)
	require.NoError(t, err)

	assert.Equal(t, 2, list.TotalCount)
	assert.Len(t, list.Records, 2)
	assert.Equal(t, Filter{Label: "cats"}, repo.lastFilter)
	for _, u := range list.Records {
		assert.Equal(t, owner, u.OwnerID)
	}
}

func TestUpdateUploadLabelPersists(t *testing.T) {
	service, _, _ := newTestService()
	owner := uuid.New()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{Label: label("old")}, owner, testServer)
	require.NoError(t, err)

	updated, err := service.UpdateUploadLabel(context.Background(), created.ID, "new", owner)
	require.NoError(t, err)
	assert.Equal(t, "new", *updated.Label)

	got, err := service.GetUpload(context.Background(), created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "new", *got.Label)
}

func TestUpdateUploadLabelFailures(t *testing.T) {
	service, repo, _ := newTestService()
	owner := uuid.New()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, owner, testServer)
	require.NoError(t, err)

	_, err = service.UpdateUploadLabel(context.Background(), created.ID, "x", uuid.New())
	assert.ErrorIs(t, err, ErrUploadNotFound)

	for _, status := range []SaveStatus{SaveConflict, SaveError} {
		s := status
		repo.saveStatus = &s
		_, err = service.UpdateUploadLabel(context.Background(), created.ID, "x", owner)
		assert.ErrorIs(t, err, ErrInternal, "status %s", status)
	}
}

func TestDeleteUploadRemovesObjectThenRecord(t *testing.T) {
	service, repo, store := newTestService()
	owner := uuid.New()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, owner, testServer)
	require.NoError(t, err)

	require.NoError(t, service.DeleteUpload(context.Background(), created.ID, owner))

	assert.Equal(t, []string{created.Key}, store.removed)
	assert.Empty(t, repo.records)
	_, err = service.GetUpload(context.Background(), created.ID, owner)
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestDeleteUploadOfOtherOwner(t *testing.T) {
	service, repo, store := newTestService()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, uuid.New(), testServer)
	require.NoError(t, err)

	err = service.DeleteUpload(context.Background(), created.ID, uuid.New())

	assert.ErrorIs(t, err, ErrUploadNotFound)
	assert.Empty(t, store.removed)
	assert.Len(t, repo.records, 1)
}

func TestDeleteUploadKeepsRecordWhenObjectRemovalFails(t *testing.T) {
	service, repo, store := newTestService()
	owner := uuid.New()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.png", Buffer: []byte("a")}, Input{}, owner, testServer)
	require.NoError(t, err)
	store.removeErr = errors.New("denied")

	err = service.DeleteUpload(context.Background(), created.ID, owner)

	assert.ErrorIs(t, err, store.removeErr)
	assert.Len(t, repo.records, 1)
}

func TestGetFileStreamsOwnersObject(t *testing.T) {
	service, _, _ := newTestService()
	owner := uuid.New()
	created, err := service.Upload(context.Background(), &File{OriginalName: "a.txt", Buffer: []byte("hello")}, Input{}, owner, testServer)
	require.NoError(t, err)

	name := strings.TrimPrefix(created.Key, owner.String()+"/")
	reader, err := service.GetFile(context.Background(), name, owner)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = service.GetFile(context.Background(), name, uuid.New())
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGetFileMissingPropagatesNotFound(t *testing.T) {
	service, _, store := newTestService()

	_, err := service.GetFile(context.Background(), "missing.png", uuid.New())

	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 1, store.calls)
}

func TestGetFileRejectsTraversal(t *testing.T) {
	service, _, store := newTestService()

	for _, name := range []string{"", ".", "..", "../x.png", `a\b.png`} {
		_, err := service.GetFile(context.Background(), name, uuid.New())
		assert.ErrorIs(t, err, ErrObjectNotFound, name)
	}
	assert.Zero(t, store.calls)
}

// --- fakes ---

type fakeRepo struct {
	records      map[uuid.UUID]Upload
	calls        int
	createStatus *SaveStatus
	saveStatus   *SaveStatus
	lastFilter   Filter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]Upload)}
}

func (f *fakeRepo) labelTaken(owner uuid.UUID, l *string) bool {
	if l == nil {
		return false
	}
	for _, u := range f.records {
		if u.OwnerID == owner && u.Label != nil && *u.Label == *l {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateUpload(ctx context.Context, key, url string, input Input, ownerID uuid.UUID) (SaveStatus, Upload) {
	f.calls++
	if f.createStatus != nil {
		return *f.createStatus, Upload{}
	}
	if f.labelTaken(ownerID, input.Label) {
		return SaveConflict, Upload{}
	}
	now := time.Now()
	u := Upload{ID: uuid.New(), Key: key, URL: url, Label: input.Label, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	f.records[u.ID] = u
	return SaveSuccess, u
}

func (f *fakeRepo) GetUploads(ctx context.Context, filter Filter, ownerID uuid.UUID) (RecordsList[Upload], error) {
	f.calls++
	f.lastFilter = filter
	list := RecordsList[Upload]{Records: []Upload{}}
	for _, u := range f.records {
		if u.OwnerID != ownerID {
			continue
		}
		if filter.Label != "" && (u.Label == nil || !strings.Contains(*u.Label, filter.Label)) {
			continue
		}
		list.Records = append(list.Records, u)
	}
	list.TotalCount = len(list.Records)
	return list, nil
}

func (f *fakeRepo) FindOne(ctx context.Context, id, ownerID uuid.UUID) (Upload, error) {
	f.calls++
	u, ok := f.records[id]
	if !ok || u.OwnerID != ownerID {
		return Upload{}, ErrUploadNotFound
	}
	return u, nil
}

func (f *fakeRepo) SaveUpload(ctx context.Context, u *Upload) SaveStatus {
	f.calls++
	if f.saveStatus != nil {
		return *f.saveStatus
	}
	u.UpdatedAt = time.Now()
	f.records[u.ID] = *u
	return SaveSuccess
}

func (f *fakeRepo) Remove(ctx context.Context, uploads ...Upload) error {
	f.calls++
	for _, u := range uploads {
		delete(f.records, u.ID)
	}
	return nil
}

type fakeObjectStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	removed      []string
	calls        int
	puts         int
	putErr       error
	removeErr    error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucketName, objectName string, content []byte, contentType string) error {
	f.calls++
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[bucketName+"/"+objectName] = append([]byte(nil), content...)
	f.contentTypes[objectName] = contentType
	return nil
}

func (f *fakeObjectStore) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	f.calls++
	data, ok := f.objects[bucketName+"/"+objectName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	f.calls++
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, bucketName+"/"+objectName)
	f.removed = append(f.removed, objectName)
	return nil
}

func (f *fakeObjectStore) PresignGetObject(ctx context.Context, bucketName, objectName string, ttl time.Duration) (string, error) {
	f.calls++
	return fmt.Sprintf("https://objects.test/%s/%s?ttl=%d", bucketName, objectName, int(ttl.Seconds())), nil
}

func (f *fakeObjectStore) Ping(ctx context.Context) error {
	return nil
}
