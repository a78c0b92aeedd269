// Package remotetest provides an in-memory FTP server for tests. Each
// connection keeps its own working directory over a shared file tree.
// Listings are rendered as classic Unix LIST lines and parsed back with
// remote.ParseListing.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/remote"
)

type node struct {
	dir      bool
	data     []byte
	modTime  time.Time
	children map[string]*node
}

// Server is an in-memory FTP server
type Server struct {
	mu sync.Mutex

	root  *node
	users map[string]string

	// Anonymous accepts the "anonymous" user with any password
	Anonymous bool

	// Now is the server clock used for modification times and listings
	Now func() time.Time

	// DialErr makes every Dial fail
	DialErr error
	// LoginErr is returned by every Login instead of checking credentials
	LoginErr error

	failStor    map[string]error
	failMkdir   map[string]error
	rawListings map[string][]string

	mkdirs     map[string]int
	stors      map[string]int
	maxChunk   int
	dials      int
	open       int
	lastLogin  string
	commandLog []string
}

// NewServer returns an empty server that accepts the given user
func NewServer(user, password string) *Server {
	return &Server{
		root:        &node{dir: true, children: map[string]*node{}},
		users:       map[string]string{user: password},
		Now:         time.Now,
		failStor:    map[string]error{},
		failMkdir:   map[string]error{},
		rawListings: map[string][]string{},
		mkdirs:      map[string]int{},
		stors:       map[string]int{},
	}
}

// Dial implements remote.Dialer
func (s *Server) Dial(ctx context.Context, addr string, timeout time.Duration) (remote.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.DialErr != nil {
		return nil, s.DialErr
	}
	s.dials++
	s.open++
	return &conn{srv: s, cwd: "/"}, nil
}

// AddDir creates directory p and its parents
func (s *Server) AddDir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(clean(p))
}

// AddFile creates file p with data, creating parent directories
func (s *Server) AddFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = clean(p)
	parent := s.mkdirAll(path.Dir(p))
	parent.children[path.Base(p)] = &node{data: append([]byte(nil), data...), modTime: s.Now()}
}

// SetListing makes LIST in directory p return lines verbatim
func (s *Server) SetListing(p string, lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawListings[clean(p)] = lines
}

// FailStor makes STOR of absolute path p store half the data and fail with err
func (s *Server) FailStor(p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStor[clean(p)] = err
}

// FailMkdir makes MKD of absolute path p fail with err
func (s *Server) FailMkdir(p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMkdir[clean(p)] = err
}

// File returns the content of file p
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(clean(p))
	if n == nil || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// IsDir reports whether directory p exists
func (s *Server) IsDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.lookup(clean(p))
	return n != nil && n.dir
}

// MkdirCount returns how many times directory p was created over the wire
func (s *Server) MkdirCount(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mkdirs[clean(p)]
}

// StorCount returns how many uploads to p were attempted
func (s *Server) StorCount(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stors[clean(p)]
}

// MaxChunk returns the largest single read observed during uploads
func (s *Server) MaxChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxChunk
}

// OpenConns returns the number of connections not yet closed with QUIT
func (s *Server) OpenConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// LastLogin returns the user of the last successful login
func (s *Server) LastLogin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLogin
}

// Commands returns every command received, in order
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commandLog...)
}

func (s *Server) mkdirAll(p string) *node {
	n := s.root
	for _, c := range strings.Split(strings.Trim(p, "/"), "/") {
		if c == "" {
			continue
		}
		child, ok := n.children[c]
		if !ok {
			child = &node{dir: true, children: map[string]*node{}, modTime: s.Now()}
			n.children[c] = child
		}
		n = child
	}
	return n
}

func (s *Server) lookup(p string) *node {
	n := s.root
	for _, c := range strings.Split(strings.Trim(p, "/"), "/") {
		if c == "" {
			continue
		}
		if !n.dir {
			return nil
		}
		child, ok := n.children[c]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// render formats the entries of dir as LIST lines
func (s *Server) render(p string, dir *node) []string {
	if raw, ok := s.rawListings[p]; ok {
		return raw
	}

	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names)

	now := s.Now()
	lines := []string{fmt.Sprintf("total %d", len(names))}
	for _, name := range names {
		n := dir.children[name]
		perm, size := "-rw-r--r--", int64(len(n.data))
		if n.dir {
			perm, size = "drwxr-xr-x", 4096
		}
		stamp := n.modTime.Format("Jan _2 15:04")
		if now.Sub(n.modTime) > 180*24*time.Hour {
			stamp = n.modTime.Format("Jan _2  2006")
		}
		lines = append(lines, fmt.Sprintf("%s 1 ftp ftp %12d %s %s", perm, size, stamp, name))
	}
	return lines
}

type conn struct {
	srv      *Server
	cwd      string
	loggedIn bool
	closed   bool
}

var _ remote.Conn = (*conn)(nil)

func reply(code int, msg string) error {
	return &textproto.Error{Code: code, Msg: msg}
}

// begin locks the server and checks the connection state
func (c *conn) begin(cmd string, needLogin bool) error {
	c.srv.mu.Lock()
	c.srv.commandLog = append(c.srv.commandLog, cmd)
	if c.closed {
		return net.ErrClosed
	}
	if needLogin && !c.loggedIn {
		return reply(530, "Please login with USER and PASS.")
	}
	return nil
}

func (c *conn) end() { c.srv.mu.Unlock() }

func (c *conn) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return clean(p)
	}
	return clean(path.Join(c.cwd, p))
}

func (c *conn) Login(user, password string) error {
	defer c.end()
	if err := c.begin("USER "+user, false); err != nil {
		return err
	}
	if c.srv.LoginErr != nil {
		return c.srv.LoginErr
	}

	if user == "anonymous" && c.srv.Anonymous {
		c.loggedIn = true
		c.srv.lastLogin = user
		return nil
	}
	if want, ok := c.srv.users[user]; ok && want == password {
		c.loggedIn = true
		c.srv.lastLogin = user
		return nil
	}
	return reply(530, "Login incorrect.")
}

func (c *conn) CurrentDir() (string, error) {
	defer c.end()
	if err := c.begin("PWD", true); err != nil {
		return "", err
	}
	return c.cwd, nil
}

func (c *conn) ChangeDir(p string) error {
	defer c.end()
	if err := c.begin("CWD "+p, true); err != nil {
		return err
	}
	target := c.abs(p)
	n := c.srv.lookup(target)
	if n == nil || !n.dir {
		return reply(550, p+": No such file or directory.")
	}
	c.cwd = target
	return nil
}

func (c *conn) MakeDir(p string) error {
	defer c.end()
	if err := c.begin("MKD "+p, true); err != nil {
		return err
	}
	target := c.abs(p)
	if err, ok := c.srv.failMkdir[target]; ok {
		return err
	}
	parent := c.srv.lookup(path.Dir(target))
	if parent == nil || !parent.dir {
		return reply(550, p+": No such file or directory.")
	}
	if _, exists := parent.children[path.Base(target)]; exists {
		return reply(550, p+": File exists.")
	}
	parent.children[path.Base(target)] = &node{dir: true, children: map[string]*node{}, modTime: c.srv.Now()}
	c.srv.mkdirs[target]++
	return nil
}

func (c *conn) List(p string) ([]models.RemoteEntry, error) {
	defer c.end()
	if err := c.begin(strings.TrimSpace("LIST "+p), true); err != nil {
		return nil, err
	}
	target := c.cwd
	if p != "" {
		target = c.abs(p)
	}
	n := c.srv.lookup(target)
	if n == nil || !n.dir {
		return nil, reply(550, p+": No such file or directory.")
	}
	return remote.ParseListing(c.srv.render(target, n), c.srv.Now()), nil
}

func (c *conn) Stor(p string, r io.Reader) error {
	// Read outside the lock so throttled or observed readers can block
	data, readErr := readChunks(r, c.srv)

	defer c.end()
	if err := c.begin("STOR "+p, true); err != nil {
		return err
	}
	target := c.abs(p)
	c.srv.stors[target]++

	parent := c.srv.lookup(path.Dir(target))
	if parent == nil || !parent.dir {
		return reply(553, p+": No such file or directory.")
	}
	if existing, ok := parent.children[path.Base(target)]; ok && existing.dir {
		return reply(553, p+": Is a directory.")
	}

	if err, ok := c.srv.failStor[target]; ok {
		parent.children[path.Base(target)] = &node{data: data[:len(data)/2], modTime: c.srv.Now()}
		return err
	}
	if readErr != nil {
		parent.children[path.Base(target)] = &node{data: data, modTime: c.srv.Now()}
		return readErr
	}

	parent.children[path.Base(target)] = &node{data: data, modTime: c.srv.Now()}
	return nil
}

func (c *conn) Quit() error {
	defer c.end()
	if err := c.begin("QUIT", false); err != nil {
		return err
	}
	c.closed = true
	c.srv.open--
	return nil
}

func readChunks(r io.Reader, srv *Server) ([]byte, error) {
	var data []byte
	buf := make([]byte, 64*1024)
	largest := 0
	for {
		n, err := r.Read(buf)
		if n > largest {
			largest = n
		}
		data = append(data, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			srv.mu.Lock()
			if largest > srv.maxChunk {
				srv.maxChunk = largest
			}
			srv.mu.Unlock()
			return data, err
		}
	}
	srv.mu.Lock()
	if largest > srv.maxChunk {
		srv.maxChunk = largest
	}
	srv.mu.Unlock()
	return data, nil
}

func clean(p string) string {
	return path.Clean("/" + p)
}
