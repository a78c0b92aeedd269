package models

import (
	"reflect"
	"testing"

	"github.com/sdejongh/backup2ftp/pkg/policy"
)

// ============== RemoteEntry Tests ==============

func TestRemoteEntryIsDir(t *testing.T) {
	tests := []struct {
		perm string
		want bool
	}{
		{"drwxr-xr-x", true},
		{"-rw-r--r--", false},
		{"lrwxrwxrwx", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.perm, func(t *testing.T) {
			entry := RemoteEntry{Name: "x", Perm: tt.perm}
			if got := entry.IsDir(); got != tt.want {
				t.Errorf("IsDir() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListing(t *testing.T) {
	listing := Listing{
		Dirs: []RemoteEntry{
			{Name: "photos", Perm: "drwxr-xr-x"},
		},
		Files: []RemoteEntry{
			{Name: "report.txt", Size: 4096, Perm: "-rw-r--r--"},
			{Name: "Report.txt", Size: 10, Perm: "-rw-r--r--"},
		},
	}

	t.Run("Names", func(t *testing.T) {
		want := []string{"photos", "report.txt", "Report.txt"}
		if got := listing.Names(); !reflect.DeepEqual(got, want) {
			t.Errorf("Names() = %v, want %v", got, want)
		}
	})

	t.Run("FileFound", func(t *testing.T) {
		f, ok := listing.File("report.txt")
		if !ok {
			t.Fatal("File(report.txt) not found")
		}
		if f.Size != 4096 {
			t.Errorf("Size = %d, want 4096", f.Size)
		}
	})

	t.Run("FileIsCaseSensitive", func(t *testing.T) {
		f, ok := listing.File("Report.txt")
		if !ok || f.Size != 10 {
			t.Errorf("File(Report.txt) = %+v, %v; want size 10", f, ok)
		}
		if _, ok := listing.File("REPORT.TXT"); ok {
			t.Error("File(REPORT.TXT) should not match")
		}
	})

	t.Run("DirectoryIsNotFile", func(t *testing.T) {
		if _, ok := listing.File("photos"); ok {
			t.Error("File(photos) should not return a directory")
		}
		if !listing.Contains("photos") {
			t.Error("Contains(photos) = false, want true")
		}
	})
}

// ============== BackupOperation Tests ==============

func validOperation() *BackupOperation {
	return &BackupOperation{
		SourcePath:  "/srv/data",
		CacheDir:    "/var/cache/backup2ftp",
		Host:        "ftp.example.com",
		ReplaceMode: policy.ReplaceNever,
		BufferSize:  8196,
	}
}

func TestBackupOperationValidate(t *testing.T) {
	t.Run("ValidOperation", func(t *testing.T) {
		if err := validOperation().Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(op *BackupOperation)
		field  string
	}{
		{"EmptySourcePath", func(op *BackupOperation) { op.SourcePath = "" }, "SourcePath"},
		{"EmptyCacheDir", func(op *BackupOperation) { op.CacheDir = "" }, "CacheDir"},
		{"EmptyHost", func(op *BackupOperation) { op.Host = "" }, "Host"},
		{"UnknownReplaceMode", func(op *BackupOperation) { op.ReplaceMode = "sometimes" }, "ReplaceMode"},
		{"SmallBufferSize", func(op *BackupOperation) { op.BufferSize = 100 }, "BufferSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := validOperation()
			tt.mutate(op)

			err := op.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %s, want %s", ve.Field, tt.field)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "TestField",
		Message: "test message",
	}

	expected := "TestField: test message"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

// ============== RunReport Tests ==============

func TestRunStatusExitCode(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   int
	}{
		{StatusSuccess, 0},
		{StatusPartial, 1},
		{StatusFailed, 2},
		{StatusCancelled, 3},
		{RunStatus("unknown"), 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatisticsSucceeded(t *testing.T) {
	stats := Statistics{Candidates: 6, Uploaded: 2, Replaced: 1, Skipped: 2, Failed: 1}
	if got := stats.Succeeded(); got != 5 {
		t.Errorf("Succeeded() = %d, want 5", got)
	}
}

func TestItemResultFailed(t *testing.T) {
	ok := ItemResult{Decision: policy.DecisionNew}
	if ok.Failed() {
		t.Error("Failed() = true for item without error")
	}
	bad := ItemResult{Decision: policy.DecisionNew, Error: "connection reset"}
	if !bad.Failed() {
		t.Error("Failed() = false for item with error")
	}
}
