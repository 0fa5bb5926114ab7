// Package source abstracts where a user's wearable export archives live.
// Adapters exist for Google Drive, FTP drop directories, and S3 buckets;
// the ingestion coordinator only sees the Adapter interface.
package source

import (
	"context"
	"path"
	"strings"
)

// Adapter lists and downloads a user's export files from one backend.
type Adapter interface {
	ListFiles(ctx context.Context, userID int64, query Query) ([]File, error)
	Download(ctx context.Context, userID int64, fileID string) ([]byte, error)
}

// TokenProvider supplies per-user bearer credentials. Implemented by the
// credential cache in internal/token.
type TokenProvider interface {
	BearerToken(ctx context.Context, userID int64) (string, error)
}

// Identifier is implemented by adapters that can name the upstream account
// behind a user's credential. Callers probe for it with a type assertion.
type Identifier interface {
	AccountEmail(ctx context.Context, userID int64) (string, error)
}

// File is the backend-neutral listing entry. Checksum is the provider's
// content hash when the listing carries one (Drive md5Checksum, S3 ETag)
// and empty otherwise.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	Checksum string
}

// Query is one pass of the discovery ladder. Exactly one field is set.
type Query struct {
	ExactName string // match a single filename
	Keyword   string // case-insensitive name-contains match
	AllZips   bool   // every .zip in the user's scope
}

// Match applies the query to a filename. Backends without server-side search
// (FTP, S3) filter their listings through this.
func (q Query) Match(name string) bool {
	lower := strings.ToLower(name)
	switch {
	case q.ExactName != "":
		return name == q.ExactName
	case q.Keyword != "":
		return strings.Contains(lower, strings.ToLower(q.Keyword))
	case q.AllZips:
		return strings.HasSuffix(lower, ".zip")
	}
	return false
}

// mimeByName guesses a content type for backends whose listings carry none.
func mimeByName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".zip":
		return "application/zip"
	case ".db", ".sqlite", ".sqlite3":
		return "application/x-sqlite3"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
