package note

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ehr/scribe/internal/domain/record"
	"github.com/ehr/scribe/internal/platform/generation"
	"github.com/ehr/scribe/pkg/pagination"
)

// Generator is the generation capability the service depends on.
// *generation.Adapter implements it.
type Generator interface {
	Generate(ctx context.Context, credential string, payload any) (string, error)
	RefineFull(ctx context.Context, credential string, payload any, currentNote, instruction string) (string, error)
	RefineSegment(ctx context.Context, credential string, payload any, fullNote, segment, instruction string) (string, error)
}

// CredentialSource resolves the generation credential for a user. An empty
// string means none is configured.
type CredentialSource interface {
	Credential(ctx context.Context, userID string) (string, error)
}

// Service runs the note operations of a session.
type Service struct {
	sessions *Manager
	gen      Generator
	creds    CredentialSource
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(sessions *Manager, gen Generator, creds CredentialSource, logger zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		gen:      gen,
		creds:    creds,
		logger:   logger.With().Str("component", "note").Logger(),
		now:      time.Now,
	}
}

func (s *Service) CreateSession(ctx context.Context, userID string) *View {
	sess := s.sessions.Create(ctx, userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

func (s *Service) GetSession(ctx context.Context, userID, id string) (*View, error) {
	return s.read(ctx, userID, id, func(*Session) error { return nil })
}

func (s *Service) EndSession(ctx context.Context, userID, id string) error {
	return s.sessions.End(ctx, userID, id)
}

// read runs fn under the session lock without checkpointing.
func (s *Service) read(ctx context.Context, userID, id string, fn func(*Session) error) (*View, error) {
	sess, err := s.sessions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ended {
		return nil, ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// mutate runs fn under the session lock and checkpoints on success.
func (s *Service) mutate(ctx context.Context, userID, id string, fn func(*Session) error) (*View, error) {
	sess, err := s.sessions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ended {
		return nil, ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.touch(s.now())
	s.sessions.checkpoint(ctx, sess)
	return sess.view(), nil
}

// -- Record --

func (s *Service) UpdateProfile(ctx context.Context, userID, id string, p record.ProfilePatch) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		return sess.record.UpdateProfile(p)
	})
}

func (s *Service) AddDisease(ctx context.Context, userID, id, name string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: disease name is required", ErrInvalidInput)
		}
		sess.record.AddDisease(name)
		return nil
	})
}

func (s *Service) RemoveDisease(ctx context.Context, userID, id, name string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		sess.record.RemoveDisease(name)
		return nil
	})
}

func (s *Service) AddTimepoint(ctx context.Context, userID, id string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		sess.record.AddTimepoint()
		return nil
	})
}

func (s *Service) UpdateTimepoint(ctx context.Context, userID, id, timepointID string, p record.TimepointPatch) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		return sess.record.UpdateTimepoint(timepointID, p)
	})
}

func (s *Service) RemoveTimepoint(ctx context.Context, userID, id, timepointID string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		return sess.record.RemoveTimepoint(timepointID)
	})
}

func (s *Service) CopyTimepoint(ctx context.Context, userID, id, targetID, sourceID string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		return sess.record.CopyFrom(targetID, sourceID)
	})
}

func (s *Service) ApplyItem(ctx context.Context, userID, id, target, category, item string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		return sess.record.ApplyItem(target, category, item)
	})
}

// Payload returns the generation payload for the session's record.
func (s *Service) Payload(ctx context.Context, userID, id string) (record.NotePayload, error) {
	var p record.NotePayload
	_, err := s.read(ctx, userID, id, func(sess *Session) error {
		p = sess.record.Payload()
		return nil
	})
	return p, err
}

// -- Note --

// SetNote replaces the editor text without creating a version.
func (s *Service) SetNote(ctx context.Context, userID, id, text string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		sess.setEditorText(text)
		return nil
	})
}

// Export returns the current editor text.
func (s *Service) Export(ctx context.Context, userID, id string) (string, error) {
	var text string
	_, err := s.read(ctx, userID, id, func(sess *Session) error {
		text = sess.editor
		return nil
	})
	return text, err
}

// credential resolves the user's credential. A missing one is reported as a
// generation error so callers handle it like any other generation failure.
func (s *Service) credential(ctx context.Context, userID, op string) (string, error) {
	cred, err := s.creds.Credential(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w", err)
	}
	if cred == "" {
		return "", &generation.Error{Kind: generation.KindMissingCredential, Op: op}
	}
	return cred, nil
}

// Generate produces a new note from the record and commits it.
func (s *Service) Generate(ctx context.Context, userID, id string) (*View, error) {
	sess, err := s.sessions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cred, err := s.credential(ctx, userID, "generate")
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.generating {
		sess.mu.Unlock()
		return nil, ErrBusy
	}
	sess.generating = true
	payload := sess.record.Payload()
	sess.mu.Unlock()

	text, genErr := s.gen.Generate(ctx, cred, payload)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.generating = false
	if sess.ended {
		return nil, ErrSessionNotFound
	}
	if genErr != nil {
		s.logger.Warn().Err(genErr).Str("session_id", id).Msg("note generation failed")
		return nil, genErr
	}
	sess.commit(text)
	sess.touch(s.now())
	s.sessions.checkpoint(ctx, sess)
	return sess.view(), nil
}

// SetDraft updates the assistant's free-text instruction field.
func (s *Service) SetDraft(ctx context.Context, userID, id, draft string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		sess.assistant.SetDraft(draft)
		return nil
	})
}

// RefineWithPreset rewrites the whole note with a fixed instruction.
func (s *Service) RefineWithPreset(ctx context.Context, userID, id, presetID string) (*View, error) {
	p, ok := PresetByID(presetID)
	if !ok {
		return nil, ErrUnknownPreset
	}
	return s.refineFull(ctx, userID, id, SourcePreset, p.Instruction)
}

// RefineWithDraft rewrites the whole note with a free-text instruction. An
// empty instruction uses the draft field.
func (s *Service) RefineWithDraft(ctx context.Context, userID, id, instruction string) (*View, error) {
	return s.refineFull(ctx, userID, id, SourceDraft, instruction)
}

func (s *Service) refineFull(ctx context.Context, userID, id string, source RequestSource, instruction string) (*View, error) {
	sess, err := s.sessions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cred, err := s.credential(ctx, userID, "refine_full")
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.assistant.State() == AssistantProcessing {
		sess.mu.Unlock()
		return nil, ErrBusy
	}
	if strings.TrimSpace(sess.editor) == "" {
		sess.mu.Unlock()
		return nil, ErrEmptyNote
	}
	instruction, err = sess.assistant.Begin(source, instruction)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	current := sess.editor
	payload := sess.record.Payload()
	sess.mu.Unlock()

	text, genErr := s.gen.RefineFull(ctx, cred, payload, current, instruction)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ended {
		sess.assistant.Fail()
		return nil, ErrSessionNotFound
	}
	if genErr != nil {
		sess.assistant.Fail()
		s.logger.Warn().Err(genErr).Str("session_id", id).Str("source", string(source)).Msg("full refinement failed")
		return nil, genErr
	}
	sess.assistant.Complete()
	sess.commit(text)
	sess.touch(s.now())
	s.sessions.checkpoint(ctx, sess)
	return sess.view(), nil
}

// -- Selection --

// Select captures a selection of the editor text. Offsets are code points.
func (s *Service) Select(ctx context.Context, userID, id string, start, end int) (*View, error) {
	return s.read(ctx, userID, id, func(sess *Session) error {
		return sess.selection.Select(sess.editor, start, end)
	})
}

func (s *Service) SetSelectionInstruction(ctx context.Context, userID, id, instruction string) (*View, error) {
	return s.read(ctx, userID, id, func(sess *Session) error {
		return sess.selection.SetInstruction(instruction)
	})
}

func (s *Service) DismissSelection(ctx context.Context, userID, id string) (*View, error) {
	return s.read(ctx, userID, id, func(sess *Session) error {
		return sess.selection.Dismiss()
	})
}

// RefineSelection rewrites the selected segment and commits the spliced
// note. The splice uses the offsets and text captured when the request was
// issued.
func (s *Service) RefineSelection(ctx context.Context, userID, id, instruction string) (*View, error) {
	sess, err := s.sessions.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cred, err := s.credential(ctx, userID, "refine_segment")
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	req, err := sess.selection.Begin(sess.editor, instruction)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	payload := sess.record.Payload()
	sess.mu.Unlock()

	replacement, genErr := s.gen.RefineSegment(ctx, cred, payload, req.FullNote, req.Segment, req.Instruction)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ended {
		sess.selection.Fail()
		return nil, ErrSessionNotFound
	}
	if genErr != nil {
		sess.selection.Fail()
		s.logger.Warn().Err(genErr).Str("session_id", id).Msg("segment refinement failed")
		return nil, genErr
	}
	sess.commit(sess.selection.Complete(replacement))
	sess.touch(s.now())
	s.sessions.checkpoint(ctx, sess)
	return sess.view(), nil
}

// -- History --

func (s *Service) Undo(ctx context.Context, userID, id string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		sess.history.Undo()
		sess.showCurrent()
		return nil
	})
}

func (s *Service) Redo(ctx context.Context, userID, id string) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		sess.history.Redo()
		sess.showCurrent()
		return nil
	})
}

// Restore jumps to the version at index.
func (s *Service) Restore(ctx context.Context, userID, id string, index int) (*View, error) {
	return s.mutate(ctx, userID, id, func(sess *Session) error {
		if _, ok := sess.history.JumpTo(index); !ok {
			return ErrVersionRange
		}
		sess.showCurrent()
		return nil
	})
}

const previewRunes = 120

// VersionEntry is one row of the history browser.
type VersionEntry struct {
	Index   int    `json:"index"`
	Active  bool   `json:"active"`
	Preview string `json:"preview"`
	Length  int    `json:"length"`
}

// ListHistory returns one page of versions, newest first, and the total
// number of versions.
func (s *Service) ListHistory(ctx context.Context, userID, id string, pg pagination.Params) ([]VersionEntry, int, error) {
	var (
		entries []VersionEntry
		total   int
	)
	_, err := s.read(ctx, userID, id, func(sess *Session) error {
		total = sess.history.Len()
		cursor := sess.history.Cursor()
		start, end := pg.Window(total)
		entries = make([]VersionEntry, 0, end-start)
		for k := start; k < end; k++ {
			i := total - 1 - k
			text, _ := sess.history.Version(i)
			entries = append(entries, VersionEntry{
				Index:   i,
				Active:  i == cursor,
				Preview: preview(text),
				Length:  utf8.RuneCountInString(text),
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
