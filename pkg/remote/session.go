package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/sdejongh/backup2ftp/pkg/logging"
	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/policy"
	"github.com/sdejongh/backup2ftp/pkg/ratelimit"
)

const (
	// DefaultBufferSize is the upload chunk size in bytes
	DefaultBufferSize = 8196

	// DefaultTimeout bounds dialing and each control reply
	DefaultTimeout = 30 * time.Second

	// DefaultPort is the FTP control port
	DefaultPort = 21
)

// TransferObserver is notified around each upload, for progress display
type TransferObserver interface {
	// Begin returns the reader the upload should consume, typically r
	// wrapped in a progress proxy
	Begin(name string, size int64, r io.Reader) io.Reader
	// End is called once the upload returns
	End(name string, err error)
}

// Session wraps one FTP control connection and its working directory.
// Navigation helpers always put the working directory back where they
// found it. A Session is not safe for concurrent use.
type Session struct {
	dial       Dialer
	conn       Conn
	host       string
	authed     bool
	authErr    error
	logger     logging.Logger
	fs         afero.Fs
	bufferSize int
	timeout    time.Duration
	limiter    *ratelimit.Limiter
	observer   TransferObserver
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFs sets the local filesystem uploads are read from
func WithFs(fs afero.Fs) Option {
	return func(s *Session) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithBufferSize sets the upload chunk size
func WithBufferSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithTimeout sets the dial timeout
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLimiter throttles uploads. A nil limiter means unlimited.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Session) { s.limiter = l }
}

// WithObserver sets the transfer observer
func WithObserver(o TransferObserver) Option {
	return func(s *Session) { s.observer = o }
}

// NewSession creates an unconnected session that dials with dial
func NewSession(dial Dialer, opts ...Option) *Session {
	s := &Session{
		dial:       dial,
		logger:     logging.NewNullLogger(),
		fs:         afero.NewOsFs(),
		bufferSize: DefaultBufferSize,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.Fields{"component": "remote"})
	return s
}

// Authenticate connects to host ("host" or "host:port") and logs in. A
// missing user or password logs in anonymously. A rejected login returns false with a nil
// error and leaves the connection open; AuthError then describes the
// rejection. Transport failures return a *ConnectionError.
func (s *Session) Authenticate(ctx context.Context, host, user, password string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.conn != nil {
		s.Close()
	}

	addr := hostAddr(host)
	s.host = addr
	s.authErr = nil

	s.logger.Debug(ctx, "connecting", logging.Fields{"host": addr, "user": displayUser(user)})

	conn, err := s.dial(ctx, addr, s.timeout)
	if err != nil {
		cerr := &ConnectionError{Host: addr, Op: "dial", Err: err}
		s.logger.Error(ctx, "connection failed", err, logging.Fields{"host": addr})
		return false, cerr
	}
	s.conn = conn

	loginUser, loginPass := user, password
	if user == "" || password == "" {
		loginUser, loginPass = "anonymous", "anonymous@"
	}

	if err := conn.Login(loginUser, loginPass); err != nil {
		if replyCode(err) == 0 && isTransportError(err) {
			s.logger.Error(ctx, "connection lost during login", err, logging.Fields{"host": addr})
			conn.Quit()
			s.conn = nil
			return false, &ConnectionError{Host: addr, Op: "login", Err: err}
		}

		s.authErr = &AuthenticationError{Host: addr, User: loginUser, Err: err}
		s.logger.Warn(ctx, "login rejected", logging.Fields{
			"host":  addr,
			"user":  loginUser,
			"code":  replyCode(err),
			"error": err.Error(),
		})
		return false, nil
	}

	s.authed = true
	s.logger.Debug(ctx, "login ok", logging.Fields{"host": addr, "user": loginUser})
	return true, nil
}

// AuthError returns the *AuthenticationError of the last rejected login
func (s *Session) AuthError() error {
	return s.authErr
}

// Connected reports whether the session holds an authenticated connection
func (s *Session) Connected() bool {
	return s.conn != nil && s.authed
}

// Close sends QUIT and releases the connection. It is safe to call more
// than once.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	s.authed = false

	if err := conn.Quit(); err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", s.host, err)
	}
	return nil
}

// WorkingDir returns the current remote directory
func (s *Session) WorkingDir(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	dir, err := s.conn.CurrentDir()
	if err != nil {
		return "", s.wrapNav("pwd", "", err)
	}
	return dir, nil
}

// ChangeDir moves the working directory to p. It is the only operation
// that leaves the working directory changed.
func (s *Session) ChangeDir(ctx context.Context, p string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.walk(p)
}

// PathExists reports whether every component of p can be entered, starting
// from "/" for absolute paths and from the working directory otherwise
func (s *Session) PathExists(ctx context.Context, p string) bool {
	err := s.withinDir(ctx, "path_exists", func() error {
		return s.walk(p)
	})
	if err != nil {
		s.logger.Debug(ctx, "path does not exist", logging.Fields{"op": "path_exists", "path": p, "error": err.Error()})
		return false
	}
	return true
}

// FileExists reports whether the parent of p exists and lists an entry
// named exactly like the base of p
func (s *Session) FileExists(ctx context.Context, p string) bool {
	_, base := splitRemote(p)
	listing, err := s.parentListing(ctx, "file_exists", p)
	if err != nil {
		return false
	}
	return listing.Contains(base)
}

// FileSize returns the size of the non-directory entry at p. The boolean is
// false when the file is absent or its parent cannot be listed.
func (s *Session) FileSize(ctx context.Context, p string) (int64, bool) {
	size, ok, _ := s.remoteSize(ctx, p)
	return size, ok
}

// remoteSize is FileSize that also returns why the parent could not be
// listed
func (s *Session) remoteSize(ctx context.Context, p string) (int64, bool, error) {
	_, base := splitRemote(p)
	listing, err := s.parentListing(ctx, "file_size", p)
	if err != nil {
		return policy.Absent, false, err
	}
	entry, ok := listing.File(base)
	if !ok {
		return policy.Absent, false, nil
	}
	return entry.Size, true, nil
}

// List lists the working directory. Zero-size files are dropped when
// ignoreEmptyFiles is set.
func (s *Session) List(ctx context.Context, ignoreEmptyFiles bool) (models.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return models.Listing{}, err
	}
	return s.list(ctx, ignoreEmptyFiles)
}

// ListPath lists directory p, restoring the working directory afterwards
func (s *Session) ListPath(ctx context.Context, p string, ignoreEmptyFiles bool) (models.Listing, error) {
	var listing models.Listing
	err := s.withinDir(ctx, "list", func() error {
		if err := s.walk(p); err != nil {
			return err
		}
		var err error
		listing, err = s.list(ctx, ignoreEmptyFiles)
		return err
	})
	return listing, err
}

// EnsureDirectory creates every missing component of p, entering each in
// turn. It returns false, after logging, when a component cannot be
// created.
func (s *Session) EnsureDirectory(ctx context.Context, p string) bool {
	if err := s.ensureDirectory(ctx, p); err != nil {
		s.logger.Warn(ctx, "failed to create remote directory", logging.Fields{"op": "mkdir", "path": p, "error": err.Error()})
		return false
	}
	return true
}

// Plan resolves the remote target and the replace decision for localPath
// without transferring anything
func (s *Session) Plan(ctx context.Context, localPath, remotePath string, mode policy.ReplaceMode) (policy.Decision, string, error) {
	decision, target, _, err := s.plan(ctx, localPath, remotePath, mode)
	return decision, target, err
}

// StoreFile uploads localPath to remotePath unless mode says to keep the
// existing remote file. It returns the decision taken; a skip is not an
// error. Failures are returned as *TransferError and are not rolled back,
// so a failed upload may leave a truncated remote file. A dropped
// connection is returned as *ConnectionError instead.
func (s *Session) StoreFile(ctx context.Context, localPath, remotePath string, mode policy.ReplaceMode) (policy.Decision, error) {
	decision, target, size, err := s.plan(ctx, localPath, remotePath, mode)
	if err != nil {
		s.logger.Error(ctx, "upload not attempted", err, logging.Fields{"op": "store", "path": localPath, "remote_path": target})
		return decision, err
	}

	if !decision.Proceed() {
		s.logger.Debug(ctx, "remote file kept", logging.Fields{"op": "store", "remote_path": target, "decision": string(decision)})
		return decision, nil
	}

	start := time.Now()
	if err := s.upload(ctx, localPath, target, size); err != nil {
		if connErr := s.connectionLost("stor", err); connErr != nil {
			s.logger.Error(ctx, "connection lost during upload", err, logging.Fields{"op": "store", "path": localPath, "remote_path": target})
			return decision, connErr
		}
		terr := &TransferError{LocalPath: localPath, RemotePath: target, Err: err}
		s.logger.Error(ctx, "upload failed", err, logging.Fields{"op": "store", "path": localPath, "remote_path": target})
		return decision, terr
	}

	s.logger.Debug(ctx, "upload complete", logging.Fields{
		"op":          "store",
		"remote_path": target,
		"decision":    string(decision),
		"size":        size,
		"duration":    time.Since(start).String(),
	})
	return decision, nil
}

func (s *Session) plan(ctx context.Context, localPath, remotePath string, mode policy.ReplaceMode) (policy.Decision, string, int64, error) {
	target := NormalizeRemotePath(localPath, remotePath)

	if err := s.ready(ctx); err != nil {
		return policy.DecisionFail, target, 0, err
	}

	info, err := s.fs.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrLocalFileMissing
		}
		return policy.DecisionFail, target, 0, &TransferError{LocalPath: localPath, RemotePath: target, Err: err}
	}
	if info.IsDir() {
		return policy.DecisionFail, target, 0, &TransferError{LocalPath: localPath, RemotePath: target, Err: fmt.Errorf("not a regular file")}
	}

	// an unlistable parent means the file is absent, unless the
	// connection itself is gone
	remoteSize, _, err := s.remoteSize(ctx, target)
	if connErr := s.connectionLost("file_size", err); connErr != nil {
		return policy.DecisionFail, target, 0, connErr
	}

	decision := policy.Decide(info.Size(), remoteSize, mode)
	if decision == policy.DecisionFail {
		return decision, target, 0, &TransferError{LocalPath: localPath, RemotePath: target, Err: fmt.Errorf("invalid replace mode %q", mode)}
	}

	s.logger.Debug(ctx, "replace decision", logging.Fields{
		"remote_path": target,
		"local_size":  info.Size(),
		"remote_size": remoteSize,
		"mode":        string(mode),
		"decision":    string(decision),
	})
	return decision, target, info.Size(), nil
}

func (s *Session) upload(ctx context.Context, localPath, target string, size int64) error {
	dir, name := splitRemote(target)

	f, err := s.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	return s.withinDir(ctx, "store", func() error {
		if dir != "" {
			if err := s.ensureDirectory(ctx, dir); err != nil {
				return err
			}
			if err := s.walk(dir); err != nil {
				return err
			}
		}

		var r io.Reader = &chunkReader{r: f, size: s.bufferSize}
		r = ratelimit.NewReader(ctx, r, s.limiter)
		if s.observer != nil {
			r = s.observer.Begin(name, size, r)
		}

		err := s.conn.Stor(name, r)
		if s.observer != nil {
			s.observer.End(name, err)
		}
		return err
	})
}

func (s *Session) ensureDirectory(ctx context.Context, p string) error {
	return s.withinDir(ctx, "mkdir", func() error {
		if strings.HasPrefix(p, "/") {
			if err := s.conn.ChangeDir("/"); err != nil {
				return s.wrapNav("cwd", "/", err)
			}
		}
		for _, c := range splitPath(p) {
			if err := s.conn.ChangeDir(c); err == nil {
				continue
			} else if replyCode(err) == 0 && isTransportError(err) {
				return s.wrapNav("cwd", c, err)
			}

			if err := s.conn.MakeDir(c); err != nil {
				return s.wrapNav("mkdir", c, err)
			}
			s.logger.Debug(ctx, "created remote directory", logging.Fields{"op": "mkdir", "path": p, "component": c})

			if err := s.conn.ChangeDir(c); err != nil {
				return s.wrapNav("cwd", c, err)
			}
		}
		return nil
	})
}

// withinDir runs fn and then changes back to the directory that was
// current on entry, on every return path
func (s *Session) withinDir(ctx context.Context, op string, fn func() error) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}

	entry, err := s.conn.CurrentDir()
	if err != nil {
		return s.wrapNav("pwd", "", err)
	}

	defer func() {
		if rerr := s.conn.ChangeDir(entry); rerr != nil {
			s.logger.Error(ctx, "failed to restore working directory", rerr, logging.Fields{"op": op, "path": entry})
			if err == nil {
				err = s.wrapNav("restore", entry, rerr)
			}
		}
	}()

	return fn()
}

// walk enters each component of p. Caller restores the working directory.
func (s *Session) walk(p string) error {
	if strings.HasPrefix(p, "/") {
		if err := s.conn.ChangeDir("/"); err != nil {
			return s.wrapNav("cwd", "/", err)
		}
	}
	for _, c := range splitPath(p) {
		if err := s.conn.ChangeDir(c); err != nil {
			return s.wrapNav("cwd", c, err)
		}
	}
	return nil
}

func (s *Session) parentListing(ctx context.Context, op, p string) (models.Listing, error) {
	dir, _ := splitRemote(p)
	var listing models.Listing
	err := s.withinDir(ctx, op, func() error {
		if err := s.walk(dir); err != nil {
			return err
		}
		var err error
		listing, err = s.list(ctx, false)
		return err
	})
	if err != nil {
		s.logger.Debug(ctx, "parent not listable", logging.Fields{"op": op, "path": p, "error": err.Error()})
	}
	return listing, err
}

func (s *Session) list(ctx context.Context, ignoreEmptyFiles bool) (models.Listing, error) {
	entries, err := s.conn.List("")
	if err != nil {
		return models.Listing{}, s.wrapNav("list", "", err)
	}

	var listing models.Listing
	for _, e := range entries {
		if e.IsDir() {
			listing.Dirs = append(listing.Dirs, e)
			continue
		}
		if ignoreEmptyFiles && e.Size < 1 {
			continue
		}
		listing.Files = append(listing.Files, e)
	}
	return listing, nil
}

func (s *Session) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Connected() {
		return ErrNotConnected
	}
	return nil
}

// wrapNav classifies a failed command as a lost connection or a
// navigation failure
func (s *Session) wrapNav(op, p string, err error) error {
	if replyCode(err) == 0 && isTransportError(err) {
		return &ConnectionError{Host: s.host, Op: op, Err: err}
	}
	return &NavigationError{Op: op, Path: p, Err: err}
}

// connectionLost returns err as a *ConnectionError when it is a transport
// failure, or nil when the server answered. Cancellation is not a lost
// connection.
func (s *Session) connectionLost(op string, err error) *ConnectionError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	if replyCode(err) == 0 && isTransportError(err) {
		return &ConnectionError{Host: s.host, Op: op, Err: err}
	}
	return nil
}

// chunkReader caps every read at size bytes so uploads stream in fixed
// chunks
type chunkReader struct {
	r    io.Reader
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

func hostAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, fmt.Sprint(DefaultPort))
}

func displayUser(user string) string {
	if user == "" {
		return "anonymous"
	}
	return user
}
