// Package feed polls the remote classification service and turns a change of
// its newest record into a one-shot "classification finished" signal.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Record is one classification result as served by the image API.
// The array is ordered newest first.
type Record struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Timestamp int64  `json:"timestamp,omitempty"`
	RawText   string `json:"raw_text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Source returns the newest classification record.
type Source interface {
	// Latest returns the newest record. ok is false when the feed is empty.
	Latest(ctx context.Context) (rec Record, ok bool, err error)
}

// HTTPSource fetches records from a JSON endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url. Every request is bounded by timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Latest performs one GET and returns the first element of the array.
func (s *HTTPSource) Latest(ctx context.Context) (Record, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Record{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Record{}, false, fmt.Errorf("get %s: unexpected status %s", s.url, resp.Status)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return Record{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(records) == 0 {
		return Record{}, false, nil
	}
	if records[0].ID == "" {
		return Record{}, false, errors.New("newest record has no id")
	}
	return records[0], true, nil
}
