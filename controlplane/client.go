// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/paracord-chat/fedcheck/lib/netutil"
)

// FederationPath is the federation API prefix on every node.
const FederationPath = "/_paracord/federation/v1"

// Config configures a Client.
type Config struct {
	// BaseURL is the node's control URL, e.g. "http://127.0.0.1:18081".
	BaseURL string

	// HTTPClient defaults to a client with RequestTimeout.
	HTTPClient *http.Client

	// RequestTimeout bounds each request when HTTPClient is nil.
	// Defaults to 20s.
	RequestTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to one node. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New validates config and returns a Client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("controlplane: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("controlplane: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("controlplane: BaseURL %q must be http or https", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.RequestTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		// Request URLs are built by concatenation so path segments like
		// "@me" reach the server unescaped.
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the node's control URL.
func (c *Client) BaseURL() string { return c.baseURL }

// FederationEndpoint returns the URL peers use to reach this node.
func (c *Client) FederationEndpoint() string { return c.baseURL + FederationPath }

// Health checks GET /health for 200.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", "", nil, nil, http.StatusOK)
	return err
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, request RegisterRequest) (*Session, error) {
	if request.Username == "" || request.Password == "" {
		return nil, fmt.Errorf("controlplane: username and password are required for registration")
	}
	var response authResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", "", request, &response, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: registering %s: %w", request.Username, err)
	}
	if response.Token == "" || response.User.ID == "" {
		return nil, fmt.Errorf("controlplane: registering %s: response missing token or user id", request.Username)
	}

	c.logger.Debug("registered account",
		"node", c.baseURL,
		"username", request.Username,
		"user_id", response.User.ID,
	)
	return &Session{
		client:   c,
		token:    response.Token,
		userID:   response.User.ID,
		username: response.User.Username,
	}, nil
}

// SessionFromToken wraps an existing token. It is not validated.
func (c *Client) SessionFromToken(userID ID, username, token string) *Session {
	return &Session{client: c, token: token, userID: userID, username: username}
}

// do sends a JSON request and decodes a JSON response into result
// when result is non-nil and the body is non-empty. The response status
// must be one of accepted.
func (c *Client) do(ctx context.Context, method, path, token string, body, result any, accepted ...int) (int, error) {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, token, contentType, bodyReader, result, accepted)
}

func (c *Client) send(ctx context.Context, method, path, token, contentType string, body io.Reader, result any, accepted []int) (int, error) {
	requestURL := c.baseURL + path
	request, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, requestURL, err)
	}
	defer response.Body.Close()

	if !slices.Contains(accepted, response.StatusCode) {
		return response.StatusCode, &UnexpectedStatusError{
			Method:     method,
			URL:        requestURL,
			StatusCode: response.StatusCode,
			Accepted:   accepted,
			Body:       netutil.ErrorBody(response.Body),
		}
	}

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return response.StatusCode, fmt.Errorf("%s %s: reading response: %w", method, requestURL, err)
	}
	if result != nil && len(bytes.TrimSpace(responseBody)) > 0 {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return response.StatusCode, fmt.Errorf("%s %s: decoding response: %w", method, requestURL, err)
		}
	}
	return response.StatusCode, nil
}

// FilePart is one file in a multipart upload.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

func (c *Client) doMultipart(ctx context.Context, path, token string, fields map[string]string, files []FilePart, result any, accepted ...int) error {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for _, name := range sortedFieldNames(fields) {
		if err := writer.WriteField(name, fields[name]); err != nil {
			return fmt.Errorf("writing form field %s: %w", name, err)
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		header.Set("Content-Type", file.ContentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("creating form file %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return fmt.Errorf("writing form file %s: %w", file.Field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}
	_, err := c.send(ctx, http.MethodPost, path, token, writer.FormDataContentType(), &buffer, result, accepted)
	return err
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
