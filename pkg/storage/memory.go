package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// MemoryStorage keeps objects in process memory. Used in tests and
// as a local fallback when no MinIO endpoint is reachable.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string

	// FailUpload, when set, makes every Upload fail with it
	FailUpload error
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte), baseURL: baseURL}
}

func (s *MemoryStorage) Upload(ctx context.Context, r io.Reader, size int64, folder, fileName, contentType string) (*UploadResult, error) {
	if s.FailUpload != nil {
		return nil, s.FailUpload
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if contentType == "" {
		contentType = DetectContentType(filepath.Ext(fileName))
	}

	key := ObjectKey(folder, fileName, time.Now())
	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()

	return &UploadResult{
		URL:      s.GetPublicURL(key),
		Key:      key,
		FileName: fileName,
		FileSize: int64(buf.Len()),
		MimeType: contentType,
	}, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) GetPublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Has reports whether key is stored
func (s *MemoryStorage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
