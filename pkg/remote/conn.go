package remote

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/sdejongh/backup2ftp/pkg/models"
)

// Conn is an FTP control connection. It keeps a server-side working
// directory that ChangeDir moves and relative paths resolve against.
type Conn interface {
	Login(user, password string) error
	CurrentDir() (string, error)
	ChangeDir(path string) error
	MakeDir(path string) error
	// List lists path, or the working directory when path is empty
	List(path string) ([]models.RemoteEntry, error)
	Stor(path string, r io.Reader) error
	Quit() error
}

// Dialer opens a control connection to addr (host:port)
type Dialer func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// FTPDialer dials real servers with github.com/jlaffaye/ftp
type FTPDialer struct {
	// ForceList disables the MLSD extension so listings use LIST
	ForceList bool
	// DisableEPSV forces PASV for data connections
	DisableEPSV bool
	// Debug receives the raw protocol trace when set
	Debug io.Writer
}

// Dial implements Dialer
func (d FTPDialer) Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithDisabledEPSV(d.DisableEPSV),
		ftp.DialWithDisabledMLSD(d.ForceList),
	}
	if timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(timeout))
	}
	if d.Debug != nil {
		opts = append(opts, ftp.DialWithDebugOutput(d.Debug))
	}

	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &ftpConn{c: c}, nil
}

// ftpConn adapts *ftp.ServerConn to Conn
type ftpConn struct {
	c *ftp.ServerConn
}

var _ Conn = (*ftpConn)(nil)

func (f *ftpConn) Login(user, password string) error   { return f.c.Login(user, password) }
func (f *ftpConn) CurrentDir() (string, error)         { return f.c.CurrentDir() }
func (f *ftpConn) ChangeDir(path string) error         { return f.c.ChangeDir(path) }
func (f *ftpConn) MakeDir(path string) error           { return f.c.MakeDir(path) }
func (f *ftpConn) Stor(path string, r io.Reader) error { return f.c.Stor(path, r) }
func (f *ftpConn) Quit() error                         { return f.c.Quit() }

func (f *ftpConn) List(path string) ([]models.RemoteEntry, error) {
	entries, err := f.c.List(path)
	if err != nil {
		return nil, err
	}

	result := make([]models.RemoteEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		result = append(result, fromFTPEntry(e))
	}
	return result, nil
}

// fromFTPEntry converts a parsed library entry. MLSD replies carry no
// permission string, so one is synthesized from the entry type. Links
// keep an "l" type and are never directories, even when they point at
// one. The library drops the owner column, so Owner stays empty.
func fromFTPEntry(e *ftp.Entry) models.RemoteEntry {
	var perm string
	switch e.Type {
	case ftp.EntryTypeFolder:
		perm = "drwxr-xr-x"
	case ftp.EntryTypeLink:
		perm = "lrwxrwxrwx"
	default:
		perm = "-rw-r--r--"
	}

	return models.RemoteEntry{
		Name:    e.Name,
		Size:    int64(e.Size),
		ModTime: e.Time,
		Perm:    perm,
	}
}
