package note

import (
	"strings"
)

type SelectionState string

const (
	SelectionIdle                SelectionState = "idle"
	SelectionSelected            SelectionState = "selected"
	SelectionAwaitingInstruction SelectionState = "awaiting_instruction"
	SelectionRefining            SelectionState = "refining"
)

// SelectionSpan is a range of the editor text in code points, with the
// literal substring captured when it was selected.
type SelectionSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Anchor is the 1-based line and column of the selection start. Clients
// position the contextual refine tool with it.
type Anchor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SegmentRequest is what a caller needs to issue a segment refinement.
type SegmentRequest struct {
	Span        SelectionSpan
	Segment     string
	Instruction string
	FullNote    string
}

// SelectionController tracks the selected note segment and guards the
// segment refinement lifecycle. It has no locking of its own; the owning
// session serializes access.
type SelectionController struct {
	state       SelectionState
	span        *SelectionSpan
	anchor      Anchor
	instruction string

	// base is the editor text captured at Begin. The splice on Complete is
	// computed against it with the captured offsets, even if the editor has
	// changed since.
	base []rune
}

func NewSelectionController() *SelectionController {
	return &SelectionController{state: SelectionIdle}
}

func (c *SelectionController) State() SelectionState { return c.state }

// Span returns a copy of the captured span, if any.
func (c *SelectionController) Span() (SelectionSpan, bool) {
	if c.span == nil {
		return SelectionSpan{}, false
	}
	return *c.span, true
}

func (c *SelectionController) Anchor() Anchor { return c.anchor }

func (c *SelectionController) Instruction() string { return c.instruction }

// Select captures text[start:end] of the editor text. A blank selection
// returns the controller to Idle.
func (c *SelectionController) Select(editorText string, start, end int) error {
	if c.state == SelectionRefining {
		return ErrBusy
	}
	runes := []rune(editorText)
	if start < 0 || end < start || end > len(runes) {
		return ErrSelectionRange
	}
	literal := string(runes[start:end])
	if strings.TrimSpace(literal) == "" {
		c.reset()
		return nil
	}
	c.span = &SelectionSpan{Start: start, End: end, Text: literal}
	c.anchor = anchorAt(runes, start)
	c.instruction = ""
	c.state = SelectionSelected
	return nil
}

// SetInstruction records the instruction being typed into the tool.
func (c *SelectionController) SetInstruction(s string) error {
	if c.state == SelectionRefining {
		return ErrBusy
	}
	if c.span == nil {
		return ErrNoSelection
	}
	c.instruction = s
	if strings.TrimSpace(s) == "" {
		c.state = SelectionSelected
	} else {
		c.state = SelectionAwaitingInstruction
	}
	return nil
}

// Dismiss clears the selection.
func (c *SelectionController) Dismiss() error {
	if c.state == SelectionRefining {
		return ErrBusy
	}
	c.reset()
	return nil
}

// Begin moves to Refining and returns the request to send. An empty
// instruction falls back to the one already typed into the tool.
func (c *SelectionController) Begin(editorText, instruction string) (SegmentRequest, error) {
	if c.state == SelectionRefining {
		return SegmentRequest{}, ErrBusy
	}
	if c.span == nil {
		return SegmentRequest{}, ErrNoSelection
	}
	if instruction == "" {
		instruction = c.instruction
	}
	if strings.TrimSpace(instruction) == "" {
		return SegmentRequest{}, ErrEmptyInstruction
	}
	runes := []rune(editorText)
	if c.span.End > len(runes) || string(runes[c.span.Start:c.span.End]) != c.span.Text {
		c.reset()
		return SegmentRequest{}, ErrNoSelection
	}

	c.instruction = instruction
	c.base = runes
	c.state = SelectionRefining
	return SegmentRequest{
		Span:        *c.span,
		Segment:     strings.TrimSpace(c.span.Text),
		Instruction: instruction,
		FullNote:    editorText,
	}, nil
}

// Complete splices replacement into the text captured at Begin and returns
// the result. The controller goes back to Idle.
func (c *SelectionController) Complete(replacement string) string {
	if c.state != SelectionRefining || c.span == nil {
		return ""
	}
	out := Splice(c.base, c.span.Start, c.span.End, replacement)
	c.reset()
	return out
}

// Fail returns to Selected with the span and instruction kept for a retry.
func (c *SelectionController) Fail() {
	if c.state != SelectionRefining {
		return
	}
	c.base = nil
	c.state = SelectionSelected
}

// Invalidate is called whenever the editor text changes by another path. A
// selection that is merely Selected or AwaitingInstruction no longer matches
// the text and is cleared; an in-flight refinement keeps its snapshot.
func (c *SelectionController) Invalidate() {
	if c.state == SelectionRefining {
		return
	}
	c.reset()
}

func (c *SelectionController) reset() {
	c.state = SelectionIdle
	c.span = nil
	c.anchor = Anchor{}
	c.instruction = ""
	c.base = nil
}

// Splice returns base[:start] + replacement + base[end:].
func Splice(base []rune, start, end int, replacement string) string {
	var sb strings.Builder
	sb.WriteString(string(base[:start]))
	sb.WriteString(replacement)
	sb.WriteString(string(base[end:]))
	return sb.String()
}

func anchorAt(runes []rune, offset int) Anchor {
	a := Anchor{Line: 1, Column: 1}
	for _, r := range runes[:offset] {
		if r == '\n' {
			a.Line++
			a.Column = 1
			continue
		}
		a.Column++
	}
	return a
}
