package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/mb/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrSlugInUse    = errors.New("slug already in use")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
)

// DefaultTimeout allows slow archive uploads to finish.
const DefaultTimeout = 60 * time.Second

// UserAgent is sent with every request. Set by main at startup.
var UserAgent = "mb/dev"

// Client is an HTTP client for the Markbase project API.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a new API client bound to token.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		token:   token,
	}
}

// SetToken rebinds the credential used by all subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the bound credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// WithToken returns a copy of the client bound to token.
func (c *Client) WithToken(token string) *Client {
	return &Client{BaseURL: c.BaseURL, HTTP: c.HTTP, token: token}
}

// --- Response types ---

// Verification is the response from GET /token/verify.
type Verification struct {
	Valid      bool `json:"valid"`
	Subscribed bool `json:"subscribed"`
}

type projectsResponse struct {
	Projects []models.Project `json:"projects"`
}

type projectResponse struct {
	Project *models.Project `json:"project"`
}

// CreateRequest is the body for POST /projects/user.
type CreateRequest struct {
	Slug          string
	Name          string
	FolderToShare string
	Public        bool
	Archive       []byte
}

// --- Token methods ---

// VerifyToken checks the bound credential. With no credential it reports
// invalid without contacting the server; a 401/403 is also reported as
// invalid rather than as an error.
func (c *Client) VerifyToken(ctx context.Context) (*Verification, error) {
	if c.Token() == "" {
		return &Verification{}, nil
	}
	var resp Verification
	err := c.do(ctx, http.MethodGet, "/token/verify", &resp)
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
		return &Verification{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Project methods ---

// ListProjects lists all projects owned by the credential, in server order.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var resp projectsResponse
	if err := c.do(ctx, http.MethodGet, "/projects/user", &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// GetProjectBySlug returns ErrNotFound when no project uses slug.
func (c *Client) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var resp projectResponse
	if err := c.do(ctx, http.MethodGet, "/projects/slug/"+url.PathEscape(slug), &resp); err != nil {
		return nil, err
	}
	if resp.Project == nil {
		return nil, ErrNotFound
	}
	return resp.Project, nil
}

// CreateProject uploads a new project with its initial archive.
func (c *Client) CreateProject(ctx context.Context, req *CreateRequest) (*models.Project, error) {
	fields := map[string]string{
		"slug":          req.Slug,
		"name":          req.Name,
		"folderToShare": req.FolderToShare,
		"public":        strconv.FormatBool(req.Public),
	}
	var resp projectResponse
	if err := c.upload(ctx, "/projects/user", fields, req.Archive, &resp); err != nil {
		return nil, err
	}
	if resp.Project == nil {
		return &models.Project{
			Slug:          req.Slug,
			Name:          req.Name,
			FolderToShare: req.FolderToShare,
			Public:        req.Public,
		}, nil
	}
	return resp.Project, nil
}

// SyncProject re-uploads the archive for slug. A 429 is ErrRateLimited.
func (c *Client) SyncProject(ctx context.Context, slug string, archive []byte) error {
	return c.upload(ctx, "/projects/user/sync", map[string]string{"slug": slug}, archive, nil)
}

// DeleteProject deletes the project with the given id.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/projects/id/"+url.PathEscape(id), nil)
}

// --- HTTP helpers ---

// APIError is a non-2xx response that maps to no sentinel.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	case e.Code != "":
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

func (e *APIError) Unwrap() error {
	return ErrServer
}

// do executes an authenticated request with no body and decodes the JSON
// response into result.
func (c *Client) do(ctx context.Context, method, path string, result any) error {
	return c.doRequest(ctx, method, path, "", nil, result)
}

// upload sends fields plus the archive as multipart/form-data.
func (c *Client) upload(ctx context.Context, path string, fields map[string]string, archive []byte, result any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", "project.zip")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(archive); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, result)
}

func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	token := c.Token()
	if token == "" {
		return fmt.Errorf("%w: no token configured", ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		slog.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("api request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func statusError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if json.Unmarshal(body, apiErr) != nil || (apiErr.Code == "" && apiErr.Message == "") {
		apiErr.Message = string(bytes.TrimSpace(body))
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case status == http.StatusConflict || apiErr.Code == "slug_in_use":
		return fmt.Errorf("%w: %s", ErrSlugInUse, apiErr.Message)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	default:
		return apiErr
	}
}
