package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"

	"paperwave/internal/config"
)

const defaultCacheControl = "3600"

// SupabaseStore persists blobs into a single Supabase storage bucket.
type SupabaseStore struct {
	client  *storage_go.Client
	bucket  string
	baseURL string
	probe   *http.Client
}

// NewSupabaseStore builds a Store from the storage section of the config.
func NewSupabaseStore(cfg config.StorageConfig) (*SupabaseStore, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, errors.New("storage url and service key are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	baseURL := strings.TrimSuffix(cfg.URL, "/")
	client := storage_go.NewClient(baseURL+"/storage/v1", cfg.ServiceKey, nil)
	return &SupabaseStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		probe:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Upload writes the blob with upsert semantics and a long cache lifetime.
func (s *SupabaseStore) Upload(ctx context.Context, path, contentType string, data []byte) error {
	cc := defaultCacheControl
	ct := contentType
	upsert := true
	_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		CacheControl: &cc,
		ContentType:  &ct,
		Upsert:       &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

// PublicURL derives the public URL from the bucket layout alone.
func (s *SupabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}

// RequestPublicURL asks the storage client for the URL instead of deriving it.
func (s *SupabaseStore) RequestPublicURL(path string) (string, error) {
	resp := s.client.GetPublicUrl(s.bucket, path)
	if resp.SignedURL == "" {
		return "", fmt.Errorf("no public url returned for %s", path)
	}
	return resp.SignedURL, nil
}

// Probe issues a HEAD request against the public URL.
func (s *SupabaseStore) Probe(ctx context.Context, publicURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, publicURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := s.probe.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", publicURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", publicURL, resp.StatusCode)
	}
	return nil
}

// Remove deletes objects from the bucket.
func (s *SupabaseStore) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("remove %d objects: %w", len(paths), err)
	}
	return nil
}
