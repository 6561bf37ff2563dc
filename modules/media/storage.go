// Package media stores category and product images in a NATS JetStream
// object store bucket and hands out public URLs for them.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/catalog-service/domain/catalog"
	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

// DefaultMaxFileSize is the default upload size limit per file.
const DefaultMaxFileSize = 5 * 1024 * 1024

var (
	// ErrForeignURL is returned when a URL was not issued by this storage.
	ErrForeignURL = errors.New("url not served by media storage")
	// ErrObjectNotFound is returned by object stores for a missing object.
	ErrObjectNotFound = errors.New("object not found")
)

// File is one upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Storage uploads and deletes media by public URL.
type Storage interface {
	Upload(ctx context.Context, f File) (string, error)
	Delete(ctx context.Context, url string) error
}

// ObjectStore is the blob backend behind Service.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
}

// ObjectReader is implemented by object stores that can serve objects back.
type ObjectReader interface {
	Get(ctx context.Context, name string) ([]byte, string, error)
}

// Config holds media settings.
type Config struct {
	NATSURL     string
	Bucket      string
	PublicURL   string
	MaxFileSize int
}

// DefaultConfig returns the default media configuration.
func DefaultConfig() Config {
	return Config{
		NATSURL:     "nats://127.0.0.1:4222",
		Bucket:      "catalog-media",
		PublicURL:   "http://localhost:3000/media",
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Service implements Storage over an ObjectStore.
type Service struct {
	store     ObjectStore
	publicURL string
	maxSize   int
	newName   func() string
	logger    *zap.Logger
}

var _ Storage = (*Service)(nil)

// NewService creates a media service.
func NewService(store ObjectStore, cfg Config, logger *zap.Logger) (*Service, error) {
	newName, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create name generator: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxSize:   cfg.MaxFileSize,
		newName:   newName,
		logger:    logger,
	}, nil
}

// Upload validates f, stores it under a fresh object name and returns its
// public URL.
func (s *Service) Upload(ctx context.Context, f File) (string, error) {
	if err := s.validate(f); err != nil {
		return "", err
	}
	name := s.newName() + extension(f.Name)
	if err := s.store.Put(ctx, name, f.Data, f.ContentType); err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", f.Name, err)
	}
	return s.publicURL + "/" + name, nil
}

// Delete removes the object behind url.
func (s *Service) Delete(ctx context.Context, url string) error {
	name, ok := s.ObjectName(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete %q: %w", name, err)
	}
	return nil
}

// ObjectName returns the object name of a URL issued by this service.
func (s *Service) ObjectName(url string) (string, bool) {
	name, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// Open returns the content and content type of a stored object.
func (s *Service) Open(ctx context.Context, name string) ([]byte, string, error) {
	r, ok := s.store.(ObjectReader)
	if !ok {
		return nil, "", catalog.NotFound("media")
	}
	data, contentType, err := r.Get(ctx, name)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, "", catalog.NotFound("media")
	}
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (s *Service) validate(f File) error {
	if len(f.Data) == 0 {
		return catalog.Validation("file %q is empty", f.Name)
	}
	if len(f.Data) > s.maxSize {
		return catalog.Validation("file %q exceeds %d bytes", f.Name, s.maxSize)
	}
	if !strings.HasPrefix(f.ContentType, "image/") {
		return catalog.Validation("file %q must be an image", f.Name)
	}
	return nil
}

// UploadBatch uploads files in order. When one upload fails every URL
// already uploaded by this call is deleted before the error is returned.
func UploadBatch(ctx context.Context, st Storage, files []File) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := st.Upload(ctx, f)
		if err != nil {
			DeleteAll(context.WithoutCancel(ctx), st, urls, nil)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// DeleteAll deletes urls best-effort. Failures are logged when logger is
// not nil and never returned.
func DeleteAll(ctx context.Context, st Storage, urls []string, logger *zap.Logger) {
	for _, url := range urls {
		if err := st.Delete(ctx, url); err != nil && logger != nil {
			logger.Warn("failed to delete media", zap.String("url", url), zap.Error(err))
		}
	}
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[i:])
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
