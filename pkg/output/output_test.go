package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/backup2ftp/pkg/models"
	"github.com/sdejongh/backup2ftp/pkg/policy"
)

func sampleReport() *models.RunReport {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.RunReport{
		RunID:      "run-1",
		Host:       "ftp.example.com",
		RemoteRoot: "/backup",
		StartTime:  start,
		EndTime:    start.Add(2 * time.Second),
		Duration:   2 * time.Second,
		Stats: models.Statistics{
			Candidates:       3,
			Attempted:        3,
			Uploaded:         1,
			Replaced:         1,
			Failed:           1,
			BytesTransferred: 4096,
		},
		Items: []models.ItemResult{
			{LocalPath: "/cache/a/docs.tar.gz", RemotePath: "/backup/docs/docs.tar.gz", Size: 2048, Decision: policy.DecisionNew},
			{LocalPath: "/cache/b/src.tar.gz", RemotePath: "/backup/src/src.tar.gz", Size: 2048, Decision: policy.DecisionReplaceSmaller},
			{LocalPath: "/cache/c/img.tar.gz", RemotePath: "/backup/img/img.tar.gz", Decision: policy.DecisionFail, Error: "upload failed"},
		},
		Errors: []models.RunError{
			{FilePath: "/cache/c/img.tar.gz", Operation: "upload", Error: "upload failed"},
		},
		Status: models.StatusPartial,
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "human", false},
		{"human", "human", false},
		{"json", "json", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFormatter(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown format")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", f.Name(), tt.want)
			}
		})
	}
}

func TestHumanFormatter(t *testing.T) {
	t.Run("progress lines", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewHumanFormatter()
		if err := f.Start(&buf, "ftp.example.com", 2); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		f.Progress(ProgressUpdate{Type: UpdateItemStart, LocalPath: "/cache/a.tar.gz", RemotePath: "/a/a.tar.gz", Bytes: 10, Current: 1, Total: 2})
		f.Progress(ProgressUpdate{Type: UpdateItemComplete, RemotePath: "/a/a.tar.gz", Decision: policy.DecisionNew, Bytes: 10, Current: 1, Total: 2})
		f.Progress(ProgressUpdate{Type: UpdateItemComplete, RemotePath: "/b/b.tar.gz", Decision: policy.DecisionSkip, Current: 2, Total: 2, DryRun: true})
		f.Progress(ProgressUpdate{Type: UpdateItemError, SourceDir: "/data/c", Error: errors.New("boom"), Current: 3})

		out := buf.String()
		for _, want := range []string{
			"Starting backup to ftp.example.com: 2 directories",
			"[1/2] Uploading /cache/a.tar.gz -> /a/a.tar.gz (10 B)...",
			"[1/2] ✓ uploaded /a/a.tar.gz (10 B)",
			"[2/2] ✓ would keep /b/b.tar.gz",
			"[3] ✗ /data/c: boom",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("summary", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewHumanFormatter()
		f.Start(&buf, "ftp.example.com", 3)
		if err := f.Complete(sampleReport()); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"Backup completed in 2s",
			"Candidates:     3 (3 attempted)",
			"Uploaded:       1",
			"Replaced:       1",
			"Failed:         1",
			"Data:           4.0 KiB",
			"Average speed:  2.0 KiB/s",
			"Status: partial",
			"/cache/c/img.tar.gz: upload failed",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("summary missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("nil writer", func(t *testing.T) {
		f := NewHumanFormatter()
		if err := f.Progress(ProgressUpdate{Type: UpdateItemStart}); err != nil {
			t.Errorf("Progress without writer: %v", err)
		}
		if err := f.Complete(sampleReport()); err != nil {
			t.Errorf("Complete without writer: %v", err)
		}
	})
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter()
	f.Start(&buf, "fallback.example.com", 3)
	f.Progress(ProgressUpdate{Type: UpdateItemStart, LocalPath: "ignored"})
	f.Error(errors.New("listing failed"))

	if err := f.Complete(sampleReport()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var data JSONReportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("output is not a single JSON document: %v\n%s", err, buf.String())
	}

	if data.RunID != "run-1" || data.Host != "ftp.example.com" {
		t.Errorf("unexpected run identity: %+v", data)
	}
	if data.Status != "partial" {
		t.Errorf("Status = %q, want partial", data.Status)
	}
	if data.DurationMs != 2000 {
		t.Errorf("DurationMs = %d, want 2000", data.DurationMs)
	}
	if data.Stats.AverageSpeed != 2048 {
		t.Errorf("AverageSpeed = %d, want 2048", data.Stats.AverageSpeed)
	}
	if len(data.Items) != 3 || data.Items[1].Decision != "replace-smaller" {
		t.Errorf("unexpected items: %+v", data.Items)
	}
	if len(data.Errors) != 2 || data.Errors[0].Error != "listing failed" {
		t.Errorf("unexpected errors: %+v", data.Errors)
	}
	if strings.Contains(buf.String(), "ignored") {
		t.Error("progress updates should not be streamed")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressObserver(t *testing.T) {
	t.Run("disabled passes reader through", func(t *testing.T) {
		var buf bytes.Buffer
		o := NewProgressObserver(&buf, false)
		if o.Enabled() {
			t.Fatal("observer on a buffer should be disabled")
		}

		src := strings.NewReader("payload")
		if got := o.Begin("a.tar.gz", 7, src); got != io.Reader(src) {
			t.Error("disabled observer should return the original reader")
		}
		o.End("a.tar.gz", nil)
		if buf.Len() != 0 {
			t.Errorf("disabled observer wrote output: %q", buf.String())
		}
	})

	t.Run("forced bar proxies data", func(t *testing.T) {
		var buf bytes.Buffer
		o := NewProgressObserver(&buf, true)

		data := strings.Repeat("x", 10000)
		r := o.Begin("big.tar.gz", int64(len(data)), strings.NewReader(data))
		if o.Active() != 1 {
			t.Errorf("Active() = %d, want 1", o.Active())
		}

		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read through proxy failed: %v", err)
		}
		if string(got) != data {
			t.Error("proxy reader altered the data")
		}

		o.End("big.tar.gz", errors.New("server closed"))
		if o.Active() != 0 {
			t.Errorf("Active() = %d after End, want 0", o.Active())
		}
		// unknown names are ignored
		o.End("other", nil)
	})
}

func TestTruncateName(t *testing.T) {
	if got := truncateName("short", 40); got != "short" {
		t.Errorf("truncateName kept = %q", got)
	}
	if got := truncateName("/very/long/path/to/archive.tar.gz", 16); got != "...rchive.tar.gz" {
		t.Errorf("truncateName = %q", got)
	}
}
