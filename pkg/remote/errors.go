package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
)

var (
	// ErrNotConnected is returned by operations on a session without an
	// authenticated connection
	ErrNotConnected = errors.New("remote session not connected")

	// ErrLocalFileMissing is returned by StoreFile when the local file does not exist
	ErrLocalFileMissing = errors.New("local file does not exist")
)

// AuthenticationError describes a login rejected by the server
type AuthenticationError struct {
	Host string
	User string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login rejected for %s@%s: %v", e.User, e.Host, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConnectionError describes a transport failure: unreachable host, timeout,
// dropped control connection
type ConnectionError struct {
	Host string
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed during %s: %v", e.Host, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NavigationError describes a remote path component that could not be
// entered or created
type NavigationError struct {
	Op   string
	Path string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// TransferError describes a failed upload. The remote file may be truncated.
type TransferError struct {
	LocalPath  string
	RemotePath string
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to upload %s to %s: %v", e.LocalPath, e.RemotePath, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// isTransportError reports whether err came from the network rather than
// from an FTP reply
func isTransportError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "broken pipe", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// replyCode returns the FTP reply code carried by err, or 0
func replyCode(err error) int {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code
	}
	return 0
}
