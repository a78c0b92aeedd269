package remote

import (
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
)

func TestFromFTPEntry(t *testing.T) {
	stamp := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry ftp.Entry
		perm  string
		isDir bool
	}{
		{"file", ftp.Entry{Name: "docs.tar.gz", Type: ftp.EntryTypeFile, Size: 42, Time: stamp}, "-rw-r--r--", false},
		{"folder", ftp.Entry{Name: "music", Type: ftp.EntryTypeFolder, Time: stamp}, "drwxr-xr-x", true},
		{"link", ftp.Entry{Name: "latest", Type: ftp.EntryTypeLink, Target: "music", Time: stamp}, "lrwxrwxrwx", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromFTPEntry(&tt.entry)
			if got.Name != tt.entry.Name || got.Size != int64(tt.entry.Size) || !got.ModTime.Equal(stamp) {
				t.Errorf("fromFTPEntry() = %+v", got)
			}
			if got.Perm != tt.perm {
				t.Errorf("Perm = %q, want %q", got.Perm, tt.perm)
			}
			if got.IsDir() != tt.isDir {
				t.Errorf("IsDir() = %v, want %v", got.IsDir(), tt.isDir)
			}
			if got.Owner != "" {
				t.Errorf("Owner = %q, want empty", got.Owner)
			}
		})
	}
}
