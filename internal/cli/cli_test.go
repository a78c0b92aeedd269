package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sdejongh/backup2ftp/pkg/config"
	"github.com/sdejongh/backup2ftp/pkg/remote"
	"github.com/sdejongh/backup2ftp/pkg/remote/remotetest"
)

type testEnv struct {
	dir    string
	config string
	fs     afero.Fs
	srv    *remotetest.Server
}

// newTestEnv points the commands at an in-memory FTP server and local
// filesystem, with a config file in a temporary directory
func newTestEnv(t *testing.T, password string) *testEnv {
	t.Helper()

	env := &testEnv{
		dir: t.TempDir(),
		fs:  afero.NewMemMapFs(),
		srv: remotetest.NewServer("backup", "pw"),
	}
	env.config = filepath.Join(env.dir, "config.yaml")

	cfg := `remote:
  host: ftp.example.com
  user: backup
  password: ` + password + `
  root: /backup
backup:
  source: /data
  cache_dir: /cache
output:
  progress: false
logging:
  enabled: false
journal:
  path: ` + filepath.Join(env.dir, "journal.db") + `
metrics:
  textfile: ` + filepath.Join(env.dir, "backup2ftp.prom") + `
`
	if err := os.WriteFile(env.config, []byte(cfg), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	os.Unsetenv(config.PasswordEnv)

	prevDialer, prevFs := newDialer, localFs
	newDialer = func(*config.Config, io.Writer) remote.Dialer { return env.srv.Dial }
	localFs = env.fs
	t.Cleanup(func() {
		newDialer, localFs = prevDialer, prevFs
		globalFlags = GlobalFlags{}
	})

	return env
}

func (env *testEnv) writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := afero.WriteFile(env.fs, p, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", p, err)
	}
}

// run executes the root command with args and returns its stdout
func (env *testEnv) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", env.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestBackupCommand(t *testing.T) {
	env := newTestEnv(t, "pw")
	env.writeFile(t, "/data/docs/a.txt", "alpha")
	env.writeFile(t, "/data/docs/b.txt", "beta")
	env.writeFile(t, "/data/src/main.go", "package main")
	if err := env.fs.MkdirAll("/data/empty", 0755); err != nil {
		t.Fatal(err)
	}

	out, err := env.run("backup")
	if err != nil {
		t.Fatalf("backup error = %v\n%s", err, out)
	}

	for _, p := range []string{"/backup/docs/docs.tar.gz", "/backup/src/src.tar.gz"} {
		if _, ok := env.srv.File(p); !ok {
			t.Errorf("remote file %s missing", p)
		}
	}
	if !strings.Contains(out, "Backup completed") {
		t.Errorf("output missing summary:\n%s", out)
	}

	// uploaded archives are removed from the cache
	var leftover []string
	afero.Walk(env.fs, "/cache", func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			leftover = append(leftover, p)
		}
		return nil
	})
	if len(leftover) != 0 {
		t.Errorf("cache not cleaned: %v", leftover)
	}

	prom, err := os.ReadFile(filepath.Join(env.dir, "backup2ftp.prom"))
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	if !strings.Contains(string(prom), "backup2ftp_last_run_candidates 2") {
		t.Errorf("metrics textfile:\n%s", prom)
	}

	history, err := env.run("history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(history, "success") || !strings.Contains(history, "ftp.example.com") {
		t.Errorf("history output:\n%s", history)
	}
}

func TestBackupCommandPartialFailure(t *testing.T) {
	env := newTestEnv(t, "pw")
	env.writeFile(t, "/data/docs/a.txt", "alpha")
	env.writeFile(t, "/data/src/main.go", "package main")
	env.srv.FailStor("/backup/src/src.tar.gz", &textproto.Error{Code: 451, Msg: "Local error in processing."})

	_, err := env.run("backup", "--keep-archives", "--no-journal")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("backup error = %v, want ExitError", err)
	}
	if got := ExitCode(err); got != 1 {
		t.Errorf("ExitCode() = %d, want 1", got)
	}
	if _, ok := env.srv.File("/backup/docs/docs.tar.gz"); !ok {
		t.Error("successful archive was not uploaded")
	}

	// --keep-archives leaves every archive in the cache
	count := 0
	afero.Walk(env.fs, "/cache", func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	if count != 2 {
		t.Errorf("cache holds %d archives, want 2", count)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "journal.db")); !os.IsNotExist(err) {
		t.Error("journal written despite --no-journal")
	}
}

func TestBackupCommandDryRun(t *testing.T) {
	env := newTestEnv(t, "pw")
	env.writeFile(t, "/data/docs/a.txt", "alpha")

	out, err := env.run("backup", "--dry-run")
	if err != nil {
		t.Fatalf("backup --dry-run error = %v", err)
	}
	if _, ok := env.srv.File("/backup/docs/docs.tar.gz"); ok {
		t.Error("dry run uploaded a file")
	}
	if !strings.Contains(out, "would upload") {
		t.Errorf("output:\n%s", out)
	}
}

func TestBackupCommandLoginRejected(t *testing.T) {
	env := newTestEnv(t, "wrong")
	env.writeFile(t, "/data/docs/a.txt", "alpha")

	_, err := env.run("backup")

	var authErr *remote.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("backup error = %v, want AuthenticationError", err)
	}
	if got := ExitCode(err); got != 2 {
		t.Errorf("ExitCode() = %d, want 2", got)
	}
	if env.srv.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0", env.srv.OpenConns())
	}
}

func TestLsCommandHostWithPort(t *testing.T) {
	env := newTestEnv(t, "pw")
	var dialed string
	newDialer = func(*config.Config, io.Writer) remote.Dialer {
		return func(ctx context.Context, addr string, timeout time.Duration) (remote.Conn, error) {
			dialed = addr
			return env.srv.Dial(ctx, addr, timeout)
		}
	}

	if _, err := env.run("ls", "/", "--host", "ftp.example.com:2121"); err != nil {
		t.Fatalf("ls error = %v", err)
	}
	if dialed != "ftp.example.com:2121" {
		t.Errorf("dialed %q, want ftp.example.com:2121", dialed)
	}
}

func TestRemoteAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"ftp.example.com", 21, "ftp.example.com:21"},
		{"ftp.example.com", 2121, "ftp.example.com:2121"},
		{"ftp.example.com:2121", 21, "ftp.example.com:2121"},
		{"192.0.2.10", 21, "192.0.2.10:21"},
		{"::1", 21, "[::1]:21"},
		{"[::1]:990", 21, "[::1]:990"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := remoteAddr(tt.host, tt.port); got != tt.want {
				t.Errorf("remoteAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
			}
		})
	}
}

func TestPutCommand(t *testing.T) {
	env := newTestEnv(t, "pw")
	env.writeFile(t, "/home/me/report.txt", "quarterly")

	out, err := env.run("put", "/home/me/report.txt", "/upload/")
	if err != nil {
		t.Fatalf("put error = %v", err)
	}
	if out != "new /upload/report.txt\n" {
		t.Errorf("put output = %q", out)
	}
	data, ok := env.srv.File("/upload/report.txt")
	if !ok || string(data) != "quarterly" {
		t.Errorf("remote content = %q, %v", data, ok)
	}

	out, err = env.run("put", "/home/me/report.txt", "/upload/", "--replace", "never")
	if err != nil {
		t.Fatalf("second put error = %v", err)
	}
	if out != "skip /upload/report.txt\n" {
		t.Errorf("second put output = %q", out)
	}

	out, err = env.run("put", "/home/me/report.txt", "/upload/", "--replace", "always", "--dry-run")
	if err != nil {
		t.Fatalf("dry-run put error = %v", err)
	}
	if out != "replace-equal /upload/report.txt\n" {
		t.Errorf("dry-run put output = %q", out)
	}
	if n := env.srv.StorCount("/upload/report.txt"); n != 1 {
		t.Errorf("StorCount() = %d, want 1", n)
	}
}

func TestLsCommand(t *testing.T) {
	env := newTestEnv(t, "pw")
	env.srv.AddDir("/pub/sub")
	env.srv.AddFile("/pub/readme.txt", []byte("hello"))
	env.srv.AddFile("/pub/empty.txt", nil)

	out, err := env.run("ls", "/pub", "--names", "--ignore-empty")
	if err != nil {
		t.Fatalf("ls error = %v", err)
	}
	if out != "sub\nreadme.txt\n" {
		t.Errorf("ls output = %q", out)
	}

	out, err = env.run("ls", "/pub")
	if err != nil {
		t.Fatalf("ls error = %v", err)
	}
	if !strings.Contains(out, "sub/") || !strings.Contains(out, "empty.txt") {
		t.Errorf("long listing:\n%s", out)
	}
}

func TestMkdirCommand(t *testing.T) {
	env := newTestEnv(t, "pw")

	if _, err := env.run("mkdir", "/a/b/c"); err != nil {
		t.Fatalf("mkdir error = %v", err)
	}
	if !env.srv.IsDir("/a/b/c") {
		t.Error("remote directory not created")
	}

	env.srv.FailMkdir("/x", &textproto.Error{Code: 550, Msg: "Permission denied."})
	if _, err := env.run("mkdir", "/x/y"); err == nil {
		t.Error("mkdir succeeded despite MKD failure")
	}
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t, "secret")

	out, err := env.run("config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "secret") || !strings.Contains(out, "********") {
		t.Errorf("password not masked:\n%s", out)
	}
	if !strings.Contains(out, "host: ftp.example.com") {
		t.Errorf("config show output:\n%s", out)
	}

	if _, err := env.run("config", "init"); err == nil {
		t.Error("config init overwrote an existing file")
	}

	fresh := filepath.Join(env.dir, "fresh", "config.yaml")
	env.config = fresh
	if _, err := env.run("config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := config.LoadFromFile(fresh); err != nil {
		t.Errorf("generated config does not load: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t, "pw")
	out, err := env.run("version", "--short")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != Version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestParseBandwidth(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"800", 800, false},
		{"512K", 512 * 1024, false},
		{"10M", 10 * 1024 * 1024, false},
		{"1.5m", 1572864, false},
		{"1G", 1 << 30, false},
		{"2MB/s", 2 * 1024 * 1024, false},
		{"", 0, true},
		{"fast", 0, true},
		{"-1K", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBandwidth(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBandwidth(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseBandwidth(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", &ExitError{Code: 3}, 3},
		{"connection", &remote.ConnectionError{Host: "h:21", Op: "dial", Err: errors.New("refused")}, 2},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
