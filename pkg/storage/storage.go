package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage holds message attachments
type Storage interface {
	Upload(ctx context.Context, r io.Reader, size int64, folder, fileName, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// UploadResult describes a stored attachment
type UploadResult struct {
	URL      string
	Key      string // object key in storage
	FileName string
	FileSize int64
	MimeType string
}

// ObjectKey builds folder/yyyy/mm/dd/<uuid><ext>
func ObjectKey(folder, fileName string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s%s",
		folder,
		at.UTC().Format("2006/01/02"),
		uuid.NewString(),
		strings.ToLower(filepath.Ext(fileName)),
	)
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/aac",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".pdf":  "application/pdf",
}

// DetectContentType maps a file extension to a MIME type
func DetectContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
