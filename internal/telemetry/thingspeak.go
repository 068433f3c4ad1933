package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ThingSpeakSink uploads records as field1..field6 query parameters.
type ThingSpeakSink struct {
	server string
	apiKey string
	client *http.Client
}

// NewThingSpeakSink creates a sink for the update endpoint at server.
func NewThingSpeakSink(server, apiKey string, timeout time.Duration) *ThingSpeakSink {
	return &ThingSpeakSink{
		server: server,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the sink in logs and metrics.
func (s *ThingSpeakSink) Name() string {
	return "thingspeak"
}

// URL returns the update URL for r.
func (s *ThingSpeakSink) URL(r Record) (string, error) {
	u, err := url.Parse(s.server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", s.apiKey)
	for i, v := range r.Fields() {
		q.Set("field"+strconv.Itoa(i+1), v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send performs the GET request.
func (s *ThingSpeakSink) Send(ctx context.Context, r Record) error {
	target, err := s.URL(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("thingspeak update: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("thingspeak update: unexpected status %s", resp.Status)
	}
	return nil
}
