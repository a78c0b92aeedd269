package models

import (
	"time"

	"github.com/sdejongh/backup2ftp/pkg/policy"
)

// BackupOperation represents one configured backup run
type BackupOperation struct {
	ID          string
	SourcePath  string
	CacheDir    string
	Pattern     string
	Exclude     []string
	MaxDirs     int
	Host        string
	Port        int
	User        string
	RemoteRoot  string
	ReplaceMode policy.ReplaceMode
	DryRun      bool
	KeepArchive bool  // Keep local archives after a successful upload
	BufferSize  int   // Upload chunk size in bytes
	Bandwidth   int64 // bytes per second, 0 = unlimited
	CreatedAt   time.Time
}

// Validate checks if the operation configuration is valid
func (op *BackupOperation) Validate() error {
	if op.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if op.CacheDir == "" {
		return &ValidationError{Field: "CacheDir", Message: "cache directory is required"}
	}
	if op.Host == "" {
		return &ValidationError{Field: "Host", Message: "remote host is required"}
	}
	if !op.ReplaceMode.Valid() {
		return &ValidationError{Field: "ReplaceMode", Message: "unknown replace mode " + string(op.ReplaceMode)}
	}
	if op.BufferSize < 512 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 512 bytes"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
