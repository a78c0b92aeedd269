package platform

import (
	"errors"
	"testing"
)

func TestRemotePath(t *testing.T) {
	tests := []struct {
		local string
		want  string
	}{
		{"/home/user/report.txt", "/home/user/report.txt"},
		{"relative/file.txt", "relative/file.txt"},
		{`C:\Users\me\report.txt`, "Users/me/report.txt"},
		{`d:report.txt`, "report.txt"},
		{`D:/data/x.bin`, "data/x.bin"},
		{`\\server\share\dir\f.txt`, "server/share/dir/f.txt"},
		{`dir\\sub\f.txt`, "dir/sub/f.txt"},
		{"/srv//backup/f", "/srv/backup/f"},
	}

	for _, tt := range tests {
		t.Run(tt.local, func(t *testing.T) {
			if got := RemotePath(tt.local); got != tt.want {
				t.Errorf("RemotePath(%q) = %q, want %q", tt.local, got, tt.want)
			}
		})
	}
}

func TestHasDriveLetter(t *testing.T) {
	tests := map[string]bool{
		`C:\x`: true,
		"z:":   true,
		"1:":   false,
		"/c:":  false,
		"C":    false,
		"":     false,
	}
	for in, want := range tests {
		if got := HasDriveLetter(in); got != want {
			t.Errorf("HasDriveLetter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsUNCPath(t *testing.T) {
	if !IsUNCPath(`\\host\share`) {
		t.Error("expected UNC path")
	}
	if IsUNCPath("/host/share") {
		t.Error("unix path reported as UNC")
	}
}

func TestValidatePath(t *testing.T) {
	err := ValidatePath("")
	var perr *PathError
	if !errors.As(err, &perr) {
		t.Fatalf("ValidatePath(\"\") = %v, want PathError", err)
	}
	if perr.Error() != "invalid path '': path is empty" {
		t.Errorf("Error() = %q", perr.Error())
	}

	if err := ValidatePath("/data/backup"); err != nil {
		t.Errorf("ValidatePath() error = %v", err)
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath("/data/./backup/../files/"); got != "/data/files" {
		t.Errorf("NormalizePath() = %q", got)
	}
}
