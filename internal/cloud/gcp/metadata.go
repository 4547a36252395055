package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMetadataURL is the root of the GCP metadata server.
const DefaultMetadataURL = "http://metadata.google.internal/computeMetadata/v1"

// MetadataClient reads fields from the GCP metadata server. It is used to
// discover the project for Secret Manager lookups and to decide whether
// scheduled runs should emit Cloud Logging JSON.
type MetadataClient struct {
	baseURL string
	http    *http.Client
}

// NewMetadataClient creates a metadata client. An empty baseURL selects
// DefaultMetadataURL.
func NewMetadataClient(baseURL string) *MetadataClient {
	if baseURL == "" {
		baseURL = DefaultMetadataURL
	}
	return &MetadataClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Field fetches a single field relative to the metadata root, e.g.
// "project/project-id".
func (m *MetadataClient) Field(ctx context.Context, field string) (string, error) {
	url := fmt.Sprintf("%s/%s", m.baseURL, strings.TrimLeft(field, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	// Required header for GCP metadata server
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch metadata field %s: %w", field, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d for field %s", resp.StatusCode, field)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}

	value := strings.TrimSpace(string(body))
	if value == "" {
		return "", fmt.Errorf("empty value for metadata field %s", field)
	}

	return value, nil
}

// ProjectID returns the project the current instance runs in.
func (m *MetadataClient) ProjectID(ctx context.Context) (string, error) {
	return m.Field(ctx, "project/project-id")
}

// Available reports whether the metadata server answers within a short
// timeout, i.e. whether the process runs on GCP.
func (m *MetadataClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")
	resp, err := m.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IsRunningOnGCP probes the default metadata server.
func IsRunningOnGCP() bool {
	return NewMetadataClient("").Available(context.Background())
}
