package domain

import "testing"

func TestParseSettlementStep(t *testing.T) {
	for step := StepInit; step <= StepFailed; step++ {
		got, ok := ParseSettlementStep(step.String())
		if !ok || got != step {
			t.Errorf("ParseSettlementStep(%q) = %v, %v", step.String(), got, ok)
		}
	}

	if _, ok := ParseSettlementStep("unknown"); ok {
		t.Error("expected unknown step to be rejected")
	}
}

func TestSettlementStep_IsTerminal(t *testing.T) {
	terminal := map[SettlementStep]bool{StepRecorded: true, StepFailed: true}
	for step := StepInit; step <= StepFailed; step++ {
		if step.IsTerminal() != terminal[step] {
			t.Errorf("%s: IsTerminal() = %v", step, step.IsTerminal())
		}
	}
}

func TestIsUnresolvedFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&SettlementError{Err: ErrTransferOutcomeUnknown}, true},
		{&SettlementError{Err: ErrRecordingFailed}, true},
		{&SettlementError{Err: ErrTransferFailed}, false},
		{ErrInsufficientFunds, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsUnresolvedFailure(tt.err); got != tt.want {
			t.Errorf("IsUnresolvedFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
