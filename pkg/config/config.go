package config

import (
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/backup2ftp/pkg/archive"
	"github.com/sdejongh/backup2ftp/pkg/journal"
	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/policy"
	"github.com/sdejongh/backup2ftp/pkg/remote"
)

// PasswordEnv overrides remote.password when set
const PasswordEnv = "BACKUP2FTP_PASSWORD"

// Config represents the application configuration
type Config struct {
	Remote      RemoteConfig      `yaml:"remote"`
	Backup      BackupConfig      `yaml:"backup"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	Journal     JournalConfig     `yaml:"journal"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// RemoteConfig holds FTP server settings
type RemoteConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`     // empty = anonymous
	Password    string        `yaml:"password"` // prefer BACKUP2FTP_PASSWORD
	Timeout     time.Duration `yaml:"timeout"`
	Root        string        `yaml:"root"` // remote directory receiving the backup tree
	ForceList   bool          `yaml:"force_list"`
	DisableEPSV bool          `yaml:"disable_epsv"`
}

// BackupConfig holds the local side of a backup
type BackupConfig struct {
	Source       string   `yaml:"source"`
	CacheDir     string   `yaml:"cache_dir"`
	Pattern      string   `yaml:"pattern"` // glob matched against file names
	Exclude      []string `yaml:"exclude"`
	MaxDirs      int      `yaml:"max_dirs"`
	Replace      string   `yaml:"replace"` // never, always, if-local-larger, if-local-smaller or 0-3
	KeepArchives bool     `yaml:"keep_archives"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	BufferSize     int   `yaml:"buffer_size"`
	BandwidthLimit int64 `yaml:"bandwidth_limit"` // bytes per second, 0 = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = stderr)
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// JournalConfig holds the run history settings
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty = next to the config file
	Keep    int    `yaml:"keep"`
}

// MetricsConfig holds the Prometheus textfile settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty = disabled
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			Port:    remote.DefaultPort,
			Timeout: remote.DefaultTimeout,
			Root:    "/",
		},
		Backup: BackupConfig{
			CacheDir: defaultCacheDir(),
			Pattern:  archive.DefaultPattern,
			MaxDirs:  10,
			Replace:  string(policy.ReplaceNever),
			Exclude: []string{
				"*.tmp",
				".git/",
				"node_modules/",
			},
		},
		Performance: PerformanceConfig{
			BufferSize:     remote.DefaultBufferSize,
			BandwidthLimit: 0,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Format:     "text",
			Level:      "info",
			File:       "",
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 3,
		},
		Journal: JournalConfig{
			Enabled: true,
			Keep:    journal.DefaultKeep,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Remote.Port < 1 || c.Remote.Port > 65535 {
		return &models.ValidationError{
			Field:   "remote.port",
			Message: "must be between 1 and 65535",
		}
	}

	if c.Remote.Timeout < 0 {
		return &models.ValidationError{
			Field:   "remote.timeout",
			Message: "must not be negative",
		}
	}

	if _, err := policy.ParseReplaceMode(c.Backup.Replace); err != nil {
		return &models.ValidationError{
			Field:   "backup.replace",
			Message: "must be never, always, if-local-larger, if-local-smaller or 0-3",
		}
	}

	if c.Backup.MaxDirs < 0 || c.Backup.MaxDirs > archive.HardMaxDirs {
		return &models.ValidationError{
			Field:   "backup.max_dirs",
			Message: "must be between 0 and 1000",
		}
	}

	if c.Performance.BufferSize < 512 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 512 bytes",
		}
	}

	if c.Performance.BandwidthLimit < 0 {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: "must not be negative",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		c.Remote.Password = pw
	}
}

// Operation builds the backup operation described by the configuration
func (c *Config) Operation() (*models.BackupOperation, error) {
	mode, err := policy.ParseReplaceMode(c.Backup.Replace)
	if err != nil {
		return nil, &models.ValidationError{Field: "backup.replace", Message: err.Error()}
	}

	op := &models.BackupOperation{
		ID:          uuid.New().String(),
		SourcePath:  c.Backup.Source,
		CacheDir:    c.Backup.CacheDir,
		Pattern:     c.Backup.Pattern,
		Exclude:     c.Backup.Exclude,
		MaxDirs:     c.Backup.MaxDirs,
		Host:        c.Remote.Host,
		Port:        c.Remote.Port,
		User:        c.Remote.User,
		RemoteRoot:  c.Remote.Root,
		ReplaceMode: mode,
		KeepArchive: c.Backup.KeepArchives,
		BufferSize:  c.Performance.BufferSize,
		Bandwidth:   c.Performance.BandwidthLimit,
		CreatedAt:   time.Now(),
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return op, nil
}
