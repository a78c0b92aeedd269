package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/sdejongh/backup2ftp/pkg/config"
	"github.com/sdejongh/backup2ftp/pkg/logging"
	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/remote"
)

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit code. Connection and login failures
// count as a failed run.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var authErr *remote.AuthenticationError
	var connErr *remote.ConnectionError
	if errors.As(err, &authErr) || errors.As(err, &connErr) {
		return models.StatusFailed.ExitCode()
	}
	if errors.Is(err, context.Canceled) {
		return models.StatusCancelled.ExitCode()
	}
	return 1
}

// newDialer builds the dialer used by remote commands; tests replace it
var newDialer = func(cfg *config.Config, debug io.Writer) remote.Dialer {
	return remote.FTPDialer{
		ForceList:   cfg.Remote.ForceList,
		DisableEPSV: cfg.Remote.DisableEPSV,
		Debug:       debug,
	}.Dial
}

// localFs is the filesystem commands read local files from
var localFs = afero.NewOsFs()

// configPath returns the configuration file in use
func configPath() (string, error) {
	if globalFlags.ConfigFile != "" {
		return globalFlags.ConfigFile, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// createLogger creates a logger based on configuration
func createLogger(cfg *config.Config) (logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}

	// Parse log format
	var format logging.Format
	switch cfg.Logging.Format {
	case "json":
		format = logging.FormatJSON
	default:
		format = logging.FormatText
	}

	return logging.NewLogger(logging.Config{
		Path:       cfg.Logging.File,
		Writer:     os.Stderr,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Logging.Level),
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// connect opens an authenticated session. A rejected login is returned
// as the session's *remote.AuthenticationError.
func connect(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...remote.Option) (*remote.Session, error) {
	if cfg.Remote.Host == "" {
		return nil, &models.ValidationError{Field: "remote.host", Message: "remote host is required (--host or config)"}
	}

	var debug io.Writer
	if globalFlags.Debug {
		debug = os.Stderr
	}

	opts = append([]remote.Option{
		remote.WithLogger(logger),
		remote.WithFs(localFs),
		remote.WithTimeout(cfg.Remote.Timeout),
		remote.WithBufferSize(cfg.Performance.BufferSize),
	}, opts...)
	session := remote.NewSession(newDialer(cfg, debug), opts...)

	ok, err := session.Authenticate(ctx, remoteAddr(cfg.Remote.Host, cfg.Remote.Port), cfg.Remote.User, cfg.Remote.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		authErr := session.AuthError()
		session.Close()
		return nil, authErr
	}
	return session, nil
}

// remoteAddr joins host and port unless host already names a port
func remoteAddr(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
