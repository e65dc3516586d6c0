// Package recording moves finished Twilio call recordings into long-term
// storage. Twilio only keeps a media URL; the archiver downloads the wav
// with account credentials and hands it to the storage backend.
package recording

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Storage abstracts the upload destination.
type Storage interface {
	Upload(objectKey string, contentType string, body []byte) error
}

type Archiver struct {
	accountSID string
	authToken  string
	storage    Storage
	client     *http.Client
}

func NewArchiver(accountSID, authToken string, storage Storage) *Archiver {
	return &Archiver{
		accountSID: accountSID,
		authToken:  authToken,
		storage:    storage,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Archive downloads the recording behind a Twilio media URL and uploads it
// under objectKey.
func (a *Archiver) Archive(recordingURL, objectKey string) error {
	if a.accountSID == "" || a.authToken == "" {
		return fmt.Errorf("missing Twilio credentials, cannot download recording")
	}
	if a.storage == nil {
		return fmt.Errorf("no storage backend configured")
	}

	req, err := http.NewRequest(http.MethodGet, recordingURL+".wav", nil)
	if err != nil {
		return fmt.Errorf("build recording request: %w", err)
	}
	req.SetBasicAuth(a.accountSID, a.authToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download recording: status %d: %s", resp.StatusCode, preview)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read recording body: %w", err)
	}
	if err := a.storage.Upload(objectKey, "audio/wav", body); err != nil {
		return fmt.Errorf("store recording: %w", err)
	}
	return nil
}
