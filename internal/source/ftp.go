package source

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"path"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/resilience"
)

// FTPOptions configures the FTP adapter.
type FTPOptions struct {
	Host     string // host or host:port; port 21 assumed when absent
	User     string
	Password string
	Root     string // directory holding per-user subdirectories
	Timeout  time.Duration
}

// FTPAdapter serves export files from a drop directory laid out as
// <root>/<userID>/<file>. FTP listings carry no checksums, so File.Checksum
// stays empty and the coordinator hashes content after download.
type FTPAdapter struct {
	host     string
	user     string
	password string
	root     string
	timeout  time.Duration
}

// NewFTPAdapter creates an FTP adapter. Missing credentials fall back to
// anonymous login.
func NewFTPAdapter(opts FTPOptions) *FTPAdapter {
	host := opts.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	user, password := opts.User, opts.Password
	if user == "" {
		user, password = "anonymous", "anonymous@"
	}

	root := opts.Root
	if root == "" {
		root = "/exports"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &FTPAdapter{host: host, user: user, password: password, root: root, timeout: timeout}
}

// ListFiles lists the user's drop directory and filters by the query.
// A user without a directory yet is an empty listing, not an error.
func (a *FTPAdapter) ListFiles(ctx context.Context, userID int64, query Query) ([]File, error) {
	conn, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	entries, err := conn.List(a.userDir(userID))
	if err != nil {
		if ftpCode(err) == 550 {
			return nil, nil
		}
		return nil, mapFTPError(err, "ftp: list directory")
	}

	var files []File
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !query.Match(e.Name) {
			continue
		}
		files = append(files, File{
			ID:       e.Name,
			Name:     e.Name,
			MimeType: mimeByName(e.Name),
			Size:     int64(e.Size),
		})
	}
	return files, nil
}

// Download retrieves one file from the user's drop directory.
func (a *FTPAdapter) Download(ctx context.Context, userID int64, fileID string) ([]byte, error) {
	conn, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(path.Join(a.userDir(userID), fileID))
	if err != nil {
		conn.Quit() //nolint:errcheck
		return nil, mapFTPError(err, "ftp: retrieve file")
	}

	rc := &ftpConnReader{resp: resp, conn: conn}
	data, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return nil, eris.Wrap(err, "ftp: read file")
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return data, nil
}

func (a *FTPAdapter) connect(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", a.host))

	conn, err := ftp.Dial(a.host, ftp.DialWithTimeout(a.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp: dial")
	}

	if err := conn.Login(a.user, a.password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, mapFTPError(err, "ftp: login")
	}
	return conn, nil
}

func (a *FTPAdapter) userDir(userID int64) string {
	return path.Join(a.root, strconv.FormatInt(userID, 10))
}

// ftpConnReader wraps an FTP response and connection so that closing the
// reader also closes the response and disconnects from the server.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "ftp: close response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "ftp: quit connection")
	}
	return nil
}

// ftpCode extracts the server reply code, or 0 for non-protocol errors.
func ftpCode(err error) int {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code
	}
	return 0
}

// mapFTPError converts server reply codes into the adapter error taxonomy.
func mapFTPError(err error, action string) error {
	switch ftpCode(err) {
	case 530: // not logged in
		return eris.Wrap(resilience.NewTransientError(ErrAuthInvalid, 0), action)
	case 550: // file unavailable
		return eris.Wrap(ErrNotFound, action)
	}
	return eris.Wrap(err, action)
}
