// Package drive is a minimal Google Drive v3 REST client covering the calls
// the export source needs: file search, media download, and account identity.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://www.googleapis.com/drive/v3"
	defaultPageSize = 100

	listFields = "files(id,name,mimeType,size,md5Checksum),nextPageToken"
)

// Client performs Google Drive API operations.
type Client interface {
	ListFiles(ctx context.Context, query, pageToken string) (*FileList, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	About(ctx context.Context) (*Account, error)
}

// File is the metadata subset requested via the fields mask.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        int64  `json:"size,string"`
	MD5Checksum string `json:"md5Checksum"`
}

// FileList is one page of search results.
type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Account identifies the Drive account a credential belongs to.
type Account struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// StatusError is returned for any non-2xx response so callers can map
// auth, not-found, and rate-limit statuses to their own error types.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("drive: unexpected status %d: %s", e.Code, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize overrides the default search page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLimiter installs a shared rate limiter. The source adapter passes one
// limiter to every client it builds so a user's calls are throttled together.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	token    string
	baseURL  string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a Drive client that authorizes with the given bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  defaultBaseURL,
		pageSize: defaultPageSize,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// ListFiles runs a files.list search. query uses Drive's q syntax
// (e.g. `name = 'fit_export.zip' and trashed = false`); an empty pageToken
// requests the first page.
func (c *httpClient) ListFiles(ctx context.Context, query, pageToken string) (*FileList, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "drive: rate limit")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", listFields)
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("spaces", "drive")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	body, err := c.get(ctx, "/files?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result FileList
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "drive: unmarshal file list")
	}
	return &result, nil
}

// Download fetches a file's content via alt=media.
func (c *httpClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "drive: rate limit")
	}
	return c.get(ctx, "/files/"+url.PathEscape(fileID)+"?alt=media")
}

// About returns the account behind the credential.
func (c *httpClient) About(ctx context.Context) (*Account, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "drive: rate limit")
	}

	body, err := c.get(ctx, "/about?fields=user")
	if err != nil {
		return nil, err
	}

	var result struct {
		User Account `json:"user"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "drive: unmarshal about")
	}
	return &result.User, nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "drive: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "drive: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "drive: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: retryAfter(resp.Header),
		}
	}

	return respBody, nil
}

// retryAfter parses a Retry-After header given in seconds. HTTP-date forms
// are rare on this API and are ignored.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
