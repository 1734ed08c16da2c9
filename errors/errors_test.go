package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(PhaseExpand, KindMissingKeyValue).
		Func(3).Instr(7).Member("KeyI2").Detail("no value configured").Build()
	want := "[expand] missing_key_value in func 3 at instr 7: KeyI2 - no value configured"
	if got := err.Error(); got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestErrorStringWithoutLocation(t *testing.T) {
	err := New(PhaseDecode, KindInvalidData).Detail("truncated section").Build()
	want := "[decode] invalid_data: truncated section"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestErrorIs(t *testing.T) {
	err := UnexpectedMarkerUse(1, 2, "Shuffle")
	if !stderrors.Is(err, Match(PhaseExpand, KindUnexpectedMarkerUse)) {
		t.Error("phase and kind should match")
	}
	if stderrors.Is(err, Match(PhaseStrip, KindUnexpectedMarkerUse)) {
		t.Error("different phase should not match")
	}
	if stderrors.Is(err, Match(PhaseExpand, KindMissingKeyValue)) {
		t.Error("different kind should not match")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := TraceFailure(0, 4, fmt.Errorf("argument 0: %w", cause))
	if !stderrors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestDetailFormatting(t *testing.T) {
	err := New(PhaseStrip, KindNotFound).Detail("export %q missing", "main").Build()
	if err.Detail != `export "main" missing` {
		t.Errorf("got %q", err.Detail)
	}
}
