package note

import (
	"errors"
	"testing"
)

func TestSelection_SpliceABCDE(t *testing.T) {
	c := NewSelectionController()
	if err := c.Select("ABCDE", 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	span, _ := c.Span()
	if span.Text != "BC" {
		t.Fatalf("expected captured text BC, got %q", span.Text)
	}
	req, err := c.Begin("ABCDE", "rewrite")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Segment != "BC" || req.FullNote != "ABCDE" {
		t.Errorf("unexpected request %+v", req)
	}
	if c.State() != SelectionRefining {
		t.Errorf("expected refining, got %s", c.State())
	}
	if got := c.Complete("XY"); got != "AXYDE" {
		t.Errorf("expected AXYDE, got %q", got)
	}
	if c.State() != SelectionIdle {
		t.Errorf("expected idle after completion, got %s", c.State())
	}
	if _, ok := c.Span(); ok {
		t.Error("expected span cleared")
	}
}

func TestSelection_BlankIsIdle(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("AB  CD", 0, 2)
	if err := c.Select("AB  CD", 2, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != SelectionIdle {
		t.Errorf("expected whitespace selection to be idle, got %s", c.State())
	}
	if err := c.Select("AB", 1, 1); err != nil || c.State() != SelectionIdle {
		t.Errorf("expected empty selection to be idle, err=%v state=%s", err, c.State())
	}
}

func TestSelection_OutOfRange(t *testing.T) {
	c := NewSelectionController()
	for _, r := range [][2]int{{-1, 2}, {3, 2}, {0, 6}} {
		if err := c.Select("ABCDE", r[0], r[1]); !errors.Is(err, ErrSelectionRange) {
			t.Errorf("Select(%d,%d): expected ErrSelectionRange, got %v", r[0], r[1], err)
		}
		if !errors.Is(ErrSelectionRange, ErrInvalidInput) {
			t.Error("expected range error to be an input error")
		}
	}
}

func TestSelection_CodePointOffsets(t *testing.T) {
	c := NewSelectionController()
	text := "體溫 38.5°C noted"
	if err := c.Select(text, 3, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	span, _ := c.Span()
	if span.Text != "38.5°C " {
		t.Fatalf("expected code point slice, got %q", span.Text)
	}
	req, err := c.Begin(text, "fix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Segment != "38.5°C" {
		t.Errorf("expected trimmed segment, got %q", req.Segment)
	}
	if got := c.Complete("T 38.5 °C"); got != "體溫 T 38.5 °Cnoted" {
		t.Errorf("unexpected splice %q", got)
	}
}

func TestSelection_Anchor(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("line one\nline two", 14, 17)
	a := c.Anchor()
	if a.Line != 2 || a.Column != 6 {
		t.Errorf("expected anchor 2:6, got %d:%d", a.Line, a.Column)
	}
}

func TestSelection_InstructionStates(t *testing.T) {
	c := NewSelectionController()
	if err := c.SetInstruction("x"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection, got %v", err)
	}
	_ = c.Select("ABCDE", 0, 2)
	_ = c.SetInstruction("shorter")
	if c.State() != SelectionAwaitingInstruction {
		t.Errorf("expected awaiting instruction, got %s", c.State())
	}
	_ = c.SetInstruction("")
	if c.State() != SelectionSelected {
		t.Errorf("expected selected, got %s", c.State())
	}
}

func TestSelection_BeginValidation(t *testing.T) {
	c := NewSelectionController()
	if _, err := c.Begin("ABCDE", "x"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection, got %v", err)
	}
	_ = c.Select("ABCDE", 0, 2)
	if _, err := c.Begin("ABCDE", "   "); !errors.Is(err, ErrEmptyInstruction) {
		t.Errorf("expected ErrEmptyInstruction, got %v", err)
	}
	if c.State() != SelectionSelected {
		t.Errorf("expected validation failure to leave state, got %s", c.State())
	}

	_ = c.SetInstruction("typed")
	req, err := c.Begin("ABCDE", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Instruction != "typed" {
		t.Errorf("expected typed instruction fallback, got %q", req.Instruction)
	}
}

func TestSelection_BusyWhileRefining(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("ABCDE", 0, 2)
	if _, err := c.Begin("ABCDE", "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Begin("ABCDE", "x"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected second Begin to be busy, got %v", err)
	}
	if err := c.Select("ABCDE", 2, 4); !errors.Is(err, ErrBusy) {
		t.Errorf("expected Select to be busy, got %v", err)
	}
	if err := c.Dismiss(); !errors.Is(err, ErrBusy) {
		t.Errorf("expected Dismiss to be busy, got %v", err)
	}
	if err := c.SetInstruction("y"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected SetInstruction to be busy, got %v", err)
	}
}

func TestSelection_FailKeepsSpan(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("ABCDE", 1, 3)
	_, _ = c.Begin("ABCDE", "rewrite")
	c.Fail()
	if c.State() != SelectionSelected {
		t.Errorf("expected selected after failure, got %s", c.State())
	}
	span, ok := c.Span()
	if !ok || span.Text != "BC" {
		t.Errorf("expected span kept, got %+v ok=%v", span, ok)
	}
	if c.Instruction() != "rewrite" {
		t.Errorf("expected instruction kept, got %q", c.Instruction())
	}
}

func TestSelection_Invalidate(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("ABCDE", 1, 3)
	c.Invalidate()
	if c.State() != SelectionIdle {
		t.Errorf("expected idle after invalidate, got %s", c.State())
	}

	_ = c.Select("ABCDE", 1, 3)
	_, _ = c.Begin("ABCDE", "rewrite")
	c.Invalidate()
	if c.State() != SelectionRefining {
		t.Fatalf("expected in-flight refinement to survive invalidate, got %s", c.State())
	}
	// The splice uses the text captured at Begin.
	if got := c.Complete("XY"); got != "AXYDE" {
		t.Errorf("expected stale-offset splice AXYDE, got %q", got)
	}
}

func TestSelection_BeginRejectsMismatchedText(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("ABCDE", 1, 3)
	if _, err := c.Begin("AZZDE", "x"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection for stale span, got %v", err)
	}
	if c.State() != SelectionIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestSelection_Dismiss(t *testing.T) {
	c := NewSelectionController()
	_ = c.Select("ABCDE", 1, 3)
	if err := c.Dismiss(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != SelectionIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}
