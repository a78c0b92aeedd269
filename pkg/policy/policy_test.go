package policy

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		local  int64
		remote int64
		mode   ReplaceMode
		want   Decision
	}{
		// remote absent
		{"AbsentNever", 100, Absent, ReplaceNever, DecisionNew},
		{"AbsentAlways", 100, Absent, ReplaceAlways, DecisionNew},
		{"AbsentIfLarger", 100, Absent, ReplaceIfLocalLarger, DecisionNew},
		{"AbsentIfSmaller", 100, Absent, ReplaceIfLocalSmaller, DecisionNew},

		// local > remote
		{"LargerNever", 200, 100, ReplaceNever, DecisionSkip},
		{"LargerAlways", 200, 100, ReplaceAlways, DecisionReplaceSmaller},
		{"LargerIfLarger", 200, 100, ReplaceIfLocalLarger, DecisionReplaceSmaller},
		{"LargerIfSmaller", 200, 100, ReplaceIfLocalSmaller, DecisionSkip},

		// local < remote
		{"SmallerNever", 50, 100, ReplaceNever, DecisionSkip},
		{"SmallerAlways", 50, 100, ReplaceAlways, DecisionReplaceLarger},
		{"SmallerIfLarger", 50, 100, ReplaceIfLocalLarger, DecisionSkip},
		{"SmallerIfSmaller", 50, 100, ReplaceIfLocalSmaller, DecisionReplaceLarger},

		// local == remote
		{"EqualNever", 100, 100, ReplaceNever, DecisionSkip},
		{"EqualAlways", 100, 100, ReplaceAlways, DecisionReplaceEqual},
		{"EqualIfLarger", 100, 100, ReplaceIfLocalLarger, DecisionSkip},
		{"EqualIfSmaller", 100, 100, ReplaceIfLocalSmaller, DecisionSkip},

		// empty files
		{"EmptyRemoteEmptyLocal", 0, 0, ReplaceAlways, DecisionReplaceEqual},
		{"EmptyLocalAbsent", 0, Absent, ReplaceNever, DecisionNew},

		// invalid input
		{"NegativeLocal", -1, 100, ReplaceAlways, DecisionFail},
		{"UnknownMode", 100, 100, ReplaceMode("sometimes"), DecisionFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.local, tt.remote, tt.mode)
			if got != tt.want {
				t.Errorf("Decide(%d, %d, %s) = %s, want %s", tt.local, tt.remote, tt.mode, got, tt.want)
			}
		})
	}
}

// Every (local, remote, mode) in range maps to exactly one decision and the
// same inputs always give the same answer.
func TestDecideTotalAndDeterministic(t *testing.T) {
	modes := []ReplaceMode{ReplaceNever, ReplaceAlways, ReplaceIfLocalLarger, ReplaceIfLocalSmaller}
	for _, mode := range modes {
		for local := int64(0); local <= 5; local++ {
			for remote := int64(-1); remote <= 5; remote++ {
				first := Decide(local, remote, mode)
				if first == DecisionFail || first == "" {
					t.Fatalf("Decide(%d, %d, %s) = %q for valid input", local, remote, mode, first)
				}
				if again := Decide(local, remote, mode); again != first {
					t.Fatalf("Decide(%d, %d, %s) not deterministic: %s then %s", local, remote, mode, first, again)
				}
				if remote < 0 && first != DecisionNew {
					t.Errorf("Decide(%d, absent, %s) = %s, want new", local, mode, first)
				}
				if mode == ReplaceNever && remote >= 0 && first != DecisionSkip {
					t.Errorf("Decide(%d, %d, never) = %s, want skip", local, remote, first)
				}
			}
		}
	}
}

func TestDecisionProceed(t *testing.T) {
	tests := []struct {
		decision Decision
		proceed  bool
		replaces bool
	}{
		{DecisionSkip, false, false},
		{DecisionNew, true, false},
		{DecisionReplaceSmaller, true, true},
		{DecisionReplaceLarger, true, true},
		{DecisionReplaceEqual, true, true},
		{DecisionFail, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			if got := tt.decision.Proceed(); got != tt.proceed {
				t.Errorf("Proceed() = %v, want %v", got, tt.proceed)
			}
			if got := tt.decision.Replaces(); got != tt.replaces {
				t.Errorf("Replaces() = %v, want %v", got, tt.replaces)
			}
		})
	}
}

func TestParseReplaceMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ReplaceMode
		wantErr bool
	}{
		{"never", ReplaceNever, false},
		{"", ReplaceNever, false},
		{"ALWAYS", ReplaceAlways, false},
		{"if-local-larger", ReplaceIfLocalLarger, false},
		{"if-local-smaller", ReplaceIfLocalSmaller, false},
		{"0", ReplaceNever, false},
		{"1", ReplaceAlways, false},
		{"2", ReplaceIfLocalSmaller, false},
		{"3", ReplaceIfLocalLarger, false},
		{"4", "", true},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseReplaceMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReplaceMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseReplaceMode(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
