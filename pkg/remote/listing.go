package remote

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sdejongh/backup2ftp/pkg/models"
)

// ErrMalformedListing is returned for listing lines that are not in the
// classic Unix format
var ErrMalformedListing = errors.New("malformed listing line")

// ParseListLine parses one classic Unix listing line:
//
//	perm links owner group size month day time-or-year name
//
// The group column may be missing. Names may contain spaces. A stamp
// without a year is placed in the year of now, or the year before when that
// would put it more than a day after now.
func ParseListLine(line string, now time.Time) (models.RemoteEntry, error) {
	fields, offsets := splitFields(line)
	if len(fields) < 8 {
		return models.RemoteEntry{}, fmt.Errorf("%w: %q", ErrMalformedListing, line)
	}

	perm := fields[0]
	if !validPerm(perm) {
		return models.RemoteEntry{}, fmt.Errorf("%w: bad permissions %q", ErrMalformedListing, perm)
	}

	// Locate the size column: index 4 with a group, index 3 without
	sizeIdx := -1
	if len(fields) >= 9 && isDigits(fields[4]) && isMonth(fields[5]) {
		sizeIdx = 4
	} else if isDigits(fields[3]) && isMonth(fields[4]) {
		sizeIdx = 3
	}
	if sizeIdx < 0 || len(fields) < sizeIdx+5 {
		return models.RemoteEntry{}, fmt.Errorf("%w: %q", ErrMalformedListing, line)
	}

	size, err := strconv.ParseInt(fields[sizeIdx], 10, 64)
	if err != nil || size < 0 {
		return models.RemoteEntry{}, fmt.Errorf("%w: bad size %q", ErrMalformedListing, fields[sizeIdx])
	}

	stamp, err := parseStamp(fields[sizeIdx+1], fields[sizeIdx+2], fields[sizeIdx+3], now)
	if err != nil {
		return models.RemoteEntry{}, fmt.Errorf("%w: %v", ErrMalformedListing, err)
	}

	name := strings.TrimRightFunc(line[offsets[sizeIdx+4]:], unicode.IsSpace)
	if perm[0] == 'l' {
		if i := strings.Index(name, " -> "); i >= 0 {
			name = name[:i]
		}
	}
	if name == "" {
		return models.RemoteEntry{}, fmt.Errorf("%w: empty name", ErrMalformedListing)
	}

	return models.RemoteEntry{
		Name:    name,
		Size:    size,
		ModTime: stamp,
		Perm:    perm,
		Owner:   fields[2],
	}, nil
}

// ParseListing parses a LIST reply, skipping "total N" headers, the "." and
// ".." entries and any line ParseListLine rejects
func ParseListing(lines []string, now time.Time) []models.RemoteEntry {
	entries := make([]models.RemoteEntry, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "total ") {
			continue
		}
		entry, err := ParseListLine(line, now)
		if err != nil {
			continue
		}
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// splitFields splits on whitespace and records where each field starts
func splitFields(line string) ([]string, []int) {
	var fields []string
	var offsets []int
	start := -1
	for i, r := range line {
		if unicode.IsSpace(r) {
			if start >= 0 {
				fields = append(fields, line[start:i])
				offsets = append(offsets, start)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
		offsets = append(offsets, start)
	}
	return fields, offsets
}

func validPerm(perm string) bool {
	if len(perm) < 10 {
		return false
	}
	return strings.ContainsRune("-dlbcps", rune(perm[0]))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isMonth(s string) bool {
	_, err := time.Parse("Jan", s)
	return err == nil
}

func parseStamp(month, day, timeOrYear string, now time.Time) (time.Time, error) {
	if strings.Contains(timeOrYear, ":") {
		t, err := time.Parse("Jan 2 15:04", month+" "+day+" "+timeOrYear)
		if err != nil {
			return time.Time{}, err
		}
		stamp := time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
		if stamp.After(now.Add(24 * time.Hour)) {
			stamp = stamp.AddDate(-1, 0, 0)
		}
		return stamp, nil
	}

	t, err := time.Parse("Jan 2 2006", month+" "+day+" "+timeOrYear)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
