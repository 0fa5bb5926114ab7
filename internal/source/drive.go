package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/primary-workspace/pulseai-hackshodh/internal/resilience"
	"github.com/primary-workspace/pulseai-hackshodh/pkg/drive"
)

// DriveOptions configures the Drive adapter.
type DriveOptions struct {
	BaseURL         string
	PageSize        int
	RPS             float64
	DownloadTimeout time.Duration
}

// DriveAdapter serves export files from a user's Google Drive. Each call
// fetches the user's bearer token and builds a short-lived client around it;
// the rate limiter is shared so throttling spans calls.
type DriveAdapter struct {
	tokens  TokenProvider
	limiter *rate.Limiter
	opts    []drive.Option

	// newClient is swapped by tests to inject a mock client.
	newClient func(token string) drive.Client
}

// NewDriveAdapter creates a Drive adapter backed by the given credential
// provider.
func NewDriveAdapter(tokens TokenProvider, cfg DriveOptions) *DriveAdapter {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	limiter := rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))

	opts := []drive.Option{drive.WithLimiter(limiter)}
	if cfg.BaseURL != "" {
		opts = append(opts, drive.WithBaseURL(cfg.BaseURL))
	}
	if cfg.PageSize > 0 {
		opts = append(opts, drive.WithPageSize(cfg.PageSize))
	}
	if cfg.DownloadTimeout > 0 {
		opts = append(opts, drive.WithHTTPClient(&http.Client{Timeout: cfg.DownloadTimeout}))
	}

	a := &DriveAdapter{tokens: tokens, limiter: limiter, opts: opts}
	a.newClient = func(token string) drive.Client {
		return drive.NewClient(token, a.opts...)
	}
	return a
}

// ListFiles searches the user's Drive, following pagination to the end.
func (a *DriveAdapter) ListFiles(ctx context.Context, userID int64, query Query) ([]File, error) {
	client, err := a.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := driveQuery(query)
	var files []File
	pageToken := ""
	for {
		page, err := client.ListFiles(ctx, q, pageToken)
		if err != nil {
			return nil, mapDriveError(err, "drive: list files")
		}
		for _, f := range page.Files {
			files = append(files, File{
				ID:       f.ID,
				Name:     f.Name,
				MimeType: f.MimeType,
				Size:     f.Size,
				Checksum: f.MD5Checksum,
			})
		}
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// Download fetches a file's bytes.
func (a *DriveAdapter) Download(ctx context.Context, userID int64, fileID string) ([]byte, error) {
	client, err := a.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := client.Download(ctx, fileID)
	if err != nil {
		return nil, mapDriveError(err, "drive: download file")
	}
	return data, nil
}

// AccountEmail names the Drive account behind the user's credential.
func (a *DriveAdapter) AccountEmail(ctx context.Context, userID int64) (string, error) {
	client, err := a.client(ctx, userID)
	if err != nil {
		return "", err
	}

	acct, err := client.About(ctx)
	if err != nil {
		return "", mapDriveError(err, "drive: about")
	}
	return acct.EmailAddress, nil
}

func (a *DriveAdapter) client(ctx context.Context, userID int64) (drive.Client, error) {
	token, err := a.tokens.BearerToken(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "drive: bearer token")
	}
	return a.newClient(token), nil
}

// driveQuery translates a discovery pass into Drive's q syntax.
func driveQuery(q Query) string {
	switch {
	case q.ExactName != "":
		return fmt.Sprintf("name = '%s' and trashed = false", escapeDriveName(q.ExactName))
	case q.Keyword != "":
		return fmt.Sprintf("name contains '%s' and trashed = false", escapeDriveName(q.Keyword))
	default:
		return "name contains '.zip' and trashed = false"
	}
}

func escapeDriveName(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

// mapDriveError converts transport statuses into the adapter error taxonomy.
func mapDriveError(err error, action string) error {
	var se *drive.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusUnauthorized:
			return eris.Wrap(resilience.NewTransientError(ErrAuthInvalid, se.Code), action)
		case se.Code == http.StatusNotFound:
			return eris.Wrap(ErrNotFound, action)
		case se.Code == http.StatusTooManyRequests:
			return eris.Wrap(resilience.NewTransientError(&RateLimitedError{RetryAfter: se.RetryAfter}, se.Code), action)
		case resilience.IsTransientHTTPStatus(se.Code):
			return eris.Wrap(resilience.NewTransientError(se, se.Code), action)
		}
	}
	return eris.Wrap(err, action)
}
