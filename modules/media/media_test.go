package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/example/catalog-service/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut int
	puts    int
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) Put(_ context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut > 0 && m.puts == m.failPut {
		return errors.New("bucket unavailable")
	}
	m.objects[name] = data
	m.types[name] = contentType
	return nil
}

func (m *memoryObjects) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *memoryObjects) Get(_ context.Context, name string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return data, m.types[name], nil
}

func (m *memoryObjects) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func newTestService(t *testing.T, store ObjectStore) *Service {
	t.Helper()
	svc, err := NewService(store, Config{PublicURL: "https://cdn.example.com/media/", MaxFileSize: 16}, nil)
	require.NoError(t, err)
	return svc
}

func image(name string) File {
	return File{Name: name, ContentType: "image/png", Data: []byte("png-bytes")}
}

func TestService_UploadOpenDelete(t *testing.T) {
	objects := newMemoryObjects()
	svc := newTestService(t, objects)
	ctx := context.Background()

	url, err := svc.Upload(ctx, image("Front.PNG"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/media/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	name, ok := svc.ObjectName(url)
	require.True(t, ok)
	data, contentType, err := svc.Open(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", contentType)

	require.NoError(t, svc.Delete(ctx, url))
	_, _, err = svc.Open(ctx, name)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	err = svc.Delete(ctx, "https://elsewhere.example.com/x.png")
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestService_UploadValidation(t *testing.T) {
	svc := newTestService(t, newMemoryObjects())
	ctx := context.Background()

	tests := []File{
		{Name: "empty.png", ContentType: "image/png"},
		{Name: "big.png", ContentType: "image/png", Data: make([]byte, 17)},
		{Name: "doc.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
	}
	for _, f := range tests {
		t.Run(f.Name, func(t *testing.T) {
			_, err := svc.Upload(ctx, f)
			assert.Equal(t, catalog.KindValidation, catalog.KindOf(err))
		})
	}
}

func TestUploadBatch_RollsBackOnFailure(t *testing.T) {
	objects := newMemoryObjects()
	objects.failPut = 3
	svc := newTestService(t, objects)

	urls, err := UploadBatch(context.Background(), svc, []File{image("a.png"), image("b.png"), image("c.png")})
	require.Error(t, err)
	assert.Nil(t, urls)
	assert.Zero(t, objects.len(), "uploaded files removed")
}

func TestUploadBatch_Success(t *testing.T) {
	objects := newMemoryObjects()
	svc := newTestService(t, objects)

	urls, err := UploadBatch(context.Background(), svc, []File{image("a.png"), image("b.jpg")})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.NotEqual(t, urls[0], urls[1])
	assert.Equal(t, 2, objects.len())

	DeleteAll(context.Background(), svc, append(urls, "not-ours"), nil)
	assert.Zero(t, objects.len())
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":    ".jpg",
		"archive.tar":  ".tar",
		"noext":        "",
		"trailing.":    "",
		"weird.p/ng":   "",
		"../../etc.sh": ".sh",
	}
	for in, want := range tests {
		assert.Equal(t, want, extension(in), fmt.Sprintf("extension(%q)", in))
	}
}
