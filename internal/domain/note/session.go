package note

import (
	"sync"
	"time"

	"github.com/ehr/scribe/internal/domain/record"
)

// Session owns one editing session: the clinical record, the note history,
// the editor text and both refinement controllers. Every field is guarded by
// mu; network calls are made with mu released.
type Session struct {
	mu sync.Mutex

	id        string
	userID    string
	createdAt time.Time
	updatedAt time.Time
	lastSeen  time.Time

	record     *record.Record
	history    *History
	editor     string
	selection  *SelectionController
	assistant  *AssistantController
	generating bool
	// ended is set once the session is discarded. Requests still in flight
	// must not commit or checkpoint after that.
	ended bool
}

func newSession(id, userID string, now time.Time) *Session {
	return &Session{
		id:        id,
		userID:    userID,
		createdAt: now,
		updatedAt: now,
		lastSeen:  now,
		record:    record.New(),
		history:   NewHistory(),
		selection: NewSelectionController(),
		assistant: NewAssistantController(),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// commit appends text to the history and shows it in the editor.
func (s *Session) commit(text string) {
	s.history.Commit(text)
	s.showCurrent()
}

// showCurrent makes the editor text equal to the current version.
func (s *Session) showCurrent() {
	s.editor = s.history.Current()
	s.selection.Invalidate()
}

func (s *Session) setEditorText(text string) {
	if text == s.editor {
		return
	}
	s.editor = text
	s.selection.Invalidate()
}

func (s *Session) touch(now time.Time) {
	s.updatedAt = now
	s.lastSeen = now
}

// View is the client-facing state of a session.
type View struct {
	ID         string         `json:"id"`
	Record     *record.Record `json:"record"`
	Diagnosis  string         `json:"diagnosis"`
	Note       string         `json:"note"`
	History    HistoryView    `json:"history"`
	Selection  SelectionView  `json:"selection"`
	Assistant  AssistantView  `json:"assistant"`
	Generating bool           `json:"generating"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type HistoryView struct {
	Cursor  int  `json:"cursor"`
	Length  int  `json:"length"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

type SelectionView struct {
	State       SelectionState `json:"state"`
	Span        *SelectionSpan `json:"span,omitempty"`
	Anchor      *Anchor        `json:"anchor,omitempty"`
	Instruction string         `json:"instruction,omitempty"`
}

type AssistantView struct {
	State AssistantState `json:"state"`
	Draft string         `json:"draft"`
}

// view must be called with mu held.
func (s *Session) view() *View {
	v := &View{
		ID:        s.id,
		Record:    s.record.Clone(),
		Diagnosis: s.record.DisplayDiagnosis(),
		Note:      s.editor,
		History: HistoryView{
			Cursor:  s.history.Cursor(),
			Length:  s.history.Len(),
			CanUndo: s.history.CanUndo(),
			CanRedo: s.history.CanRedo(),
		},
		Selection: SelectionView{
			State:       s.selection.State(),
			Instruction: s.selection.Instruction(),
		},
		Assistant: AssistantView{
			State: s.assistant.State(),
			Draft: s.assistant.Draft(),
		},
		Generating: s.generating,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
	if span, ok := s.selection.Span(); ok {
		anchor := s.selection.Anchor()
		v.Selection.Span = &span
		v.Selection.Anchor = &anchor
	}
	return v
}
