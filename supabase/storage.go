// Package supabase archives call artifacts (recordings and finalized intake
// records) in a Supabase storage bucket.
package supabase

import (
	"bytes"
	"fmt"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Storage is a thin wrapper over the Supabase storage API. A nil *Storage is
// valid and drops uploads, so callers without credentials need no branching.
type Storage struct {
	client *supabase.Client
	bucket string
}

func New(config Config) (*Storage, error) {
	if config.URL == "" || config.ServiceRoleKey == "" {
		return nil, nil
	}
	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Storage{client: client, bucket: config.Bucket}, nil
}

func (s *Storage) Upload(key, contentType string, data []byte) error {
	if s == nil {
		return nil
	}
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{ContentType: &contentType})
	if err != nil {
		return fmt.Errorf("upload %s to supabase: %w", key, err)
	}
	return nil
}
