package policy

import (
	"fmt"
	"strings"
)

// Absent is the remote size reported for a file that does not exist
const Absent int64 = -1

// ReplaceMode controls whether an existing remote file is overwritten
type ReplaceMode string

const (
	// ReplaceNever keeps any existing remote file
	ReplaceNever ReplaceMode = "never"
	// ReplaceAlways overwrites existing remote files
	ReplaceAlways ReplaceMode = "always"
	// ReplaceIfLocalLarger overwrites only when the local file is larger
	ReplaceIfLocalLarger ReplaceMode = "if-local-larger"
	// ReplaceIfLocalSmaller overwrites only when the local file is smaller
	ReplaceIfLocalSmaller ReplaceMode = "if-local-smaller"
)

// Valid reports whether m is a known replace mode
func (m ReplaceMode) Valid() bool {
	switch m {
	case ReplaceNever, ReplaceAlways, ReplaceIfLocalLarger, ReplaceIfLocalSmaller:
		return true
	default:
		return false
	}
}

// ParseReplaceMode parses a replace mode name.
// The numeric codes 0-3 of older backup2ftp configurations are accepted:
// 0 never, 1 always, 2 if-local-smaller, 3 if-local-larger.
func ParseReplaceMode(s string) (ReplaceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never", "0", "":
		return ReplaceNever, nil
	case "always", "1":
		return ReplaceAlways, nil
	case "if-local-smaller", "smaller", "2":
		return ReplaceIfLocalSmaller, nil
	case "if-local-larger", "larger", "3":
		return ReplaceIfLocalLarger, nil
	default:
		return "", fmt.Errorf("invalid replace mode: %s (valid: never, always, if-local-larger, if-local-smaller)", s)
	}
}

// Decision is the outcome of applying a ReplaceMode to a pair of sizes
type Decision string

const (
	// DecisionSkip leaves the remote file untouched
	DecisionSkip Decision = "skip"
	// DecisionNew uploads a file that is absent remotely
	DecisionNew Decision = "new"
	// DecisionReplaceSmaller replaces a remote file smaller than the local one
	DecisionReplaceSmaller Decision = "replace-smaller"
	// DecisionReplaceLarger replaces a remote file larger than the local one
	DecisionReplaceLarger Decision = "replace-larger"
	// DecisionReplaceEqual replaces a remote file of the same size
	DecisionReplaceEqual Decision = "replace-equal"
	// DecisionFail means the inputs were invalid
	DecisionFail Decision = "fail"
)

// Proceed reports whether the decision requires a transfer
func (d Decision) Proceed() bool {
	switch d {
	case DecisionNew, DecisionReplaceSmaller, DecisionReplaceLarger, DecisionReplaceEqual:
		return true
	default:
		return false
	}
}

// Replaces reports whether the decision overwrites an existing remote file
func (d Decision) Replaces() bool {
	return d.Proceed() && d != DecisionNew
}

// Decide returns the transfer decision for a local file of localSize bytes
// given the remote size (Absent, or any negative value, when the remote
// file does not exist).
func Decide(localSize, remoteSize int64, mode ReplaceMode) Decision {
	if localSize < 0 || !mode.Valid() {
		return DecisionFail
	}
	if remoteSize < 0 {
		return DecisionNew
	}

	replace := func(allowed bool) Decision {
		if !allowed {
			return DecisionSkip
		}
		switch {
		case localSize > remoteSize:
			return DecisionReplaceSmaller
		case localSize < remoteSize:
			return DecisionReplaceLarger
		default:
			return DecisionReplaceEqual
		}
	}

	switch mode {
	case ReplaceAlways:
		return replace(true)
	case ReplaceIfLocalLarger:
		return replace(localSize > remoteSize)
	case ReplaceIfLocalSmaller:
		return replace(localSize < remoteSize)
	default:
		return DecisionSkip
	}
}
