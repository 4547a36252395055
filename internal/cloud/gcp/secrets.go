package gcp

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// secretFetchTimeout bounds a single AccessSecretVersion call.
const secretFetchTimeout = 10 * time.Second

var projectEnvVars = []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"}

// SecretFetcher reads a secret payload by reference.
type SecretFetcher interface {
	FetchSecret(ctx context.Context, ref string) (string, error)
	Close() error
}

// SecretManagerClient reads report credentials (tracker API token, chat
// bot token) from Secret Manager.
type SecretManagerClient struct {
	client *secretmanager.Client

	// The project is only needed for bare secret names and is looked up
	// on first use.
	projectOnce sync.Once
	projectID   string
	projectErr  error
	lookup      func(ctx context.Context) (string, error)
}

// NewSecretManagerClient connects to Secret Manager with application
// default credentials unless opts say otherwise.
func NewSecretManagerClient(ctx context.Context, opts ...option.ClientOption) (*SecretManagerClient, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &SecretManagerClient{client: client, lookup: lookupProjectID}, nil
}

// lookupProjectID checks the usual environment variables, then the
// metadata server.
func lookupProjectID(ctx context.Context) (string, error) {
	for _, name := range projectEnvVars {
		if id := os.Getenv(name); id != "" {
			return id, nil
		}
	}

	id, err := NewMetadataClient("").ProjectID(ctx)
	if err != nil {
		return "", fmt.Errorf("no project in %s and metadata lookup failed: %w", strings.Join(projectEnvVars, "/"), err)
	}
	return id, nil
}

func (c *SecretManagerClient) project(ctx context.Context) (string, error) {
	c.projectOnce.Do(func() {
		if c.projectID == "" && c.lookup != nil {
			c.projectID, c.projectErr = c.lookup(ctx)
		}
	})
	if c.projectErr != nil {
		return "", c.projectErr
	}
	return c.projectID, nil
}

// FetchSecret returns the payload of ref, which is one of
//
//	projects/P/secrets/NAME/versions/V
//	projects/P/secrets/NAME            (latest version)
//	NAME                               (latest version in the current project)
func (c *SecretManagerClient) FetchSecret(ctx context.Context, ref string) (string, error) {
	projectID := ""
	if !strings.HasPrefix(ref, "projects/") {
		var err error
		if projectID, err = c.project(ctx); err != nil {
			return "", fmt.Errorf("resolve project for secret %s: %w", ref, err)
		}
	}

	name, err := SecretVersionName(projectID, ref)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, secretFetchTimeout)
	defer cancel()

	result, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.GetPayload().GetData()), nil
}

// SecretVersionName expands ref into a full secret version resource name.
func SecretVersionName(projectID, ref string) (string, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	switch {
	case ref == "":
		return "", fmt.Errorf("empty secret reference")
	case strings.HasPrefix(ref, "projects/") && strings.Contains(ref, "/versions/"):
		return ref, nil
	case strings.HasPrefix(ref, "projects/") && strings.Contains(ref, "/secrets/"):
		return ref + "/versions/latest", nil
	case strings.HasPrefix(ref, "projects/"):
		return "", fmt.Errorf("invalid secret reference %s", ref)
	}

	if projectID == "" {
		return "", fmt.Errorf("secret %s needs a project", ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, path.Base(ref)), nil
}

func (c *SecretManagerClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Resolve returns literal when it is set, otherwise the trimmed payload of
// secretPath. Both empty yields an empty string and no error; callers
// validate required credentials themselves.
func Resolve(ctx context.Context, f SecretFetcher, literal, secretPath string) (string, error) {
	if literal != "" {
		return literal, nil
	}
	if secretPath == "" {
		return "", nil
	}
	if f == nil {
		return "", fmt.Errorf("secret %s configured but no secret manager client available", secretPath)
	}

	value, err := f.FetchSecret(ctx, secretPath)
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret %s: %w", secretPath, err)
	}
	return strings.TrimSpace(value), nil
}
