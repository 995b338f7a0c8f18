package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	key := ObjectKey("messages", "Voice.OGG", at)

	assert.True(t, strings.HasPrefix(key, "messages/2026/03/09/"))
	assert.True(t, strings.HasSuffix(key, ".ogg"))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType(".JPG"))
	assert.Equal(t, "audio/ogg", DetectContentType(".opus"))
	assert.Equal(t, "application/octet-stream", DetectContentType(".bin"))
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage("http://cdn.test")
	ctx := context.Background()

	res, err := s.Upload(ctx, strings.NewReader("hello"), 5, "messages", "a.png", "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, int64(5), res.FileSize)
	assert.Equal(t, "http://cdn.test/"+res.Key, res.URL)
	assert.True(t, s.Has(res.Key))

	require.NoError(t, s.Delete(ctx, res.Key))
	assert.False(t, s.Has(res.Key))

	s.FailUpload = errors.New("bucket gone")
	_, err = s.Upload(ctx, strings.NewReader("x"), 1, "messages", "a.png", "")
	assert.Error(t, err)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "http://minio:9000/media", publicBase(Config{Endpoint: "minio:9000", Bucket: "media"}))
	assert.Equal(t, "https://minio:9000/media", publicBase(Config{Endpoint: "minio:9000", Bucket: "media", UseSSL: true}))
	assert.Equal(t, "https://cdn.example.com/media", publicBase(Config{Endpoint: "minio:9000", PublicURL: "https://cdn.example.com/", Bucket: "media"}))
}

func TestPublicReadPolicy(t *testing.T) {
	raw, err := publicReadPolicy("media")
	require.NoError(t, err)

	var p bucketPolicy
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Len(t, p.Statement, 1)
	assert.Equal(t, []string{"s3:GetObject"}, p.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::media/*"}, p.Statement[0].Resource)
}
