package note

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/scribe/internal/domain/record"
	"github.com/ehr/scribe/internal/platform/generation"
	"github.com/ehr/scribe/internal/platform/sessionstore"
	"github.com/ehr/scribe/pkg/pagination"
)

// -- Mocks --

type mockGenerator struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	started chan struct{}
	release chan struct{}

	lastInstruction string
	lastNote        string
	lastSegment     string
}

func (m *mockGenerator) observe(note, segment, instruction string) {
	m.mu.Lock()
	m.calls++
	m.lastNote = note
	m.lastSegment = segment
	m.lastInstruction = instruction
	m.mu.Unlock()
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
}

func (m *mockGenerator) Generate(_ context.Context, cred string, _ any) (string, error) {
	m.observe("", "", "")
	return m.reply, m.err
}

func (m *mockGenerator) RefineFull(_ context.Context, cred string, _ any, note, instruction string) (string, error) {
	m.observe(note, "", instruction)
	return m.reply, m.err
}

func (m *mockGenerator) RefineSegment(_ context.Context, cred string, _ any, note, segment, instruction string) (string, error) {
	m.observe(note, segment, instruction)
	return m.reply, m.err
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type staticCredentials string

func (s staticCredentials) Credential(context.Context, string) (string, error) {
	return string(s), nil
}

type failingCredentials struct{}

func (failingCredentials) Credential(context.Context, string) (string, error) {
	return "", errors.New("database unavailable")
}

func newTestService(gen Generator, creds CredentialSource) *Service {
	m := NewManager(sessionstore.NewMemoryStore(), 0, zerolog.Nop())
	return NewService(m, gen, creds, zerolog.Nop())
}

const testUser = "user-1"

func newSessionWithNote(t *testing.T, svc *Service, gen *mockGenerator, text string) string {
	t.Helper()
	ctx := context.Background()
	v := svc.CreateSession(ctx, testUser)
	gen.reply = text
	if _, err := svc.Generate(ctx, testUser, v.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return v.ID
}

// -- Tests --

func TestService_CreateSession(t *testing.T) {
	svc := newTestService(&mockGenerator{}, staticCredentials("k"))
	v := svc.CreateSession(context.Background(), testUser)
	if v.ID == "" {
		t.Fatal("expected session id")
	}
	if len(v.Record.Timepoints) != 1 {
		t.Errorf("expected one timepoint, got %d", len(v.Record.Timepoints))
	}
	if v.History.Cursor != -1 || v.Note != "" {
		t.Errorf("expected empty history, got %+v note=%q", v.History, v.Note)
	}
	if v.Diagnosis != record.DiagnosisPending {
		t.Errorf("expected pending diagnosis, got %q", v.Diagnosis)
	}
}

func TestService_SessionOwnership(t *testing.T) {
	svc := newTestService(&mockGenerator{}, staticCredentials("k"))
	v := svc.CreateSession(context.Background(), testUser)
	if _, err := svc.GetSession(context.Background(), "someone-else", v.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for other user, got %v", err)
	}
}

func TestService_GenerateCommits(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "note v1")

	v, err := svc.GetSession(context.Background(), testUser, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Note != "note v1" || v.History.Length != 1 || v.History.Cursor != 0 {
		t.Errorf("unexpected view %+v", v)
	}
	if v.Generating {
		t.Error("expected generating flag cleared")
	}
}

func TestService_CredentialGating(t *testing.T) {
	gen := &mockGenerator{reply: "x"}
	svc := newTestService(gen, staticCredentials(""))
	ctx := context.Background()
	v := svc.CreateSession(ctx, testUser)

	_, err1 := svc.Generate(ctx, testUser, v.ID)
	_, err2 := svc.RefineWithPreset(ctx, testUser, v.ID, "concise")
	_, err3 := svc.RefineSelection(ctx, testUser, v.ID, "shorter")
	for i, err := range []error{err1, err2, err3} {
		if generation.KindOf(err) != generation.KindMissingCredential || !errors.Is(err, generation.ErrMissingCredential) {
			t.Errorf("call %d: expected missing credential, got %v", i, err)
		}
	}
	if gen.callCount() != 0 {
		t.Errorf("expected zero generation calls, got %d", gen.callCount())
	}
	after, _ := svc.GetSession(ctx, testUser, v.ID)
	if after.History.Length != 0 {
		t.Errorf("expected history unchanged, got length %d", after.History.Length)
	}
}

func TestService_CredentialLookupError(t *testing.T) {
	gen := &mockGenerator{reply: "x"}
	svc := newTestService(gen, failingCredentials{})
	v := svc.CreateSession(context.Background(), testUser)
	_, err := svc.Generate(context.Background(), testUser, v.ID)
	if err == nil || generation.KindOf(err) == generation.KindMissingCredential {
		t.Errorf("expected lookup error, got %v", err)
	}
	if gen.callCount() != 0 {
		t.Errorf("expected zero generation calls")
	}
}

func TestService_GenerateFailureKeepsHistory(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "v1")

	gen.reply = ""
	gen.err = &generation.Error{Kind: generation.KindFailed, Op: "generate"}
	if _, err := svc.Generate(context.Background(), testUser, id); !errors.Is(err, generation.ErrFailed) {
		t.Fatalf("expected failure, got %v", err)
	}
	v, _ := svc.GetSession(context.Background(), testUser, id)
	if v.Note != "v1" || v.History.Length != 1 {
		t.Errorf("expected note unchanged, got %q len %d", v.Note, v.History.Length)
	}
	if v.Generating {
		t.Error("expected generating flag cleared after failure")
	}
}

func TestService_FullRefineConcurrencyGuard(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "v1")
	ctx := context.Background()

	gen.started = make(chan struct{}, 1)
	gen.release = make(chan struct{})
	gen.reply = "v2 concise"

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = svc.RefineWithPreset(ctx, testUser, id, "concise")
	}()
	<-gen.started

	if _, err := svc.RefineWithDraft(ctx, testUser, id, "second request"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected second refinement to be busy, got %v", err)
	}
	if got := gen.callCount(); got != 2 {
		t.Errorf("expected exactly one refine call after generate, got %d total", got)
	}

	v, _ := svc.GetSession(ctx, testUser, id)
	if v.Assistant.State != AssistantProcessing {
		t.Errorf("expected processing while in flight, got %s", v.Assistant.State)
	}

	close(gen.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first refinement failed: %v", firstErr)
	}
	v, _ = svc.GetSession(ctx, testUser, id)
	if v.Note != "v2 concise" || v.History.Length != 2 {
		t.Errorf("expected first result committed, got %q len %d", v.Note, v.History.Length)
	}
	if v.Assistant.State != AssistantIdle {
		t.Errorf("expected idle after completion, got %s", v.Assistant.State)
	}
}

func TestService_RefineFullRequiresNote(t *testing.T) {
	gen := &mockGenerator{reply: "x"}
	svc := newTestService(gen, staticCredentials("k"))
	v := svc.CreateSession(context.Background(), testUser)
	if _, err := svc.RefineWithPreset(context.Background(), testUser, v.ID, "grammar"); !errors.Is(err, ErrEmptyNote) {
		t.Errorf("expected ErrEmptyNote, got %v", err)
	}
	if gen.callCount() != 0 {
		t.Error("expected no generation call")
	}
}

func TestService_RefineWithDraftClearsDraft(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "v1")
	ctx := context.Background()

	_, _ = svc.SetDraft(ctx, testUser, id, "use passive voice")
	gen.reply = "v2"
	v, err := svc.RefineWithDraft(ctx, testUser, id, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.lastInstruction != "use passive voice" || gen.lastNote != "v1" {
		t.Errorf("unexpected refine input %q / %q", gen.lastInstruction, gen.lastNote)
	}
	if v.Assistant.Draft != "" {
		t.Errorf("expected draft cleared, got %q", v.Assistant.Draft)
	}

	_, _ = svc.SetDraft(ctx, testUser, id, "keep me")
	gen.reply = "v3"
	v, _ = svc.RefineWithPreset(ctx, testUser, id, "grammar")
	if v.Assistant.Draft != "keep me" {
		t.Errorf("expected preset to leave draft, got %q", v.Assistant.Draft)
	}
}

func TestService_RefineUsesEditedText(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "v1")
	ctx := context.Background()

	v, _ := svc.SetNote(ctx, testUser, id, "v1 edited by hand")
	if v.History.Length != 1 {
		t.Errorf("expected free edit not to create a version")
	}
	gen.reply = "v2"
	_, _ = svc.RefineWithPreset(ctx, testUser, id, "concise")
	if gen.lastNote != "v1 edited by hand" {
		t.Errorf("expected refine to see editor text, got %q", gen.lastNote)
	}
}

func TestService_RefineSelectionSplices(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "ABCDE")
	ctx := context.Background()

	if _, err := svc.Select(ctx, testUser, id, 1, 3); err != nil {
		t.Fatalf("select: %v", err)
	}
	gen.reply = "XY"
	v, err := svc.RefineSelection(ctx, testUser, id, "rewrite")
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if v.Note != "AXYDE" {
		t.Errorf("expected AXYDE, got %q", v.Note)
	}
	if gen.lastSegment != "BC" || gen.lastNote != "ABCDE" {
		t.Errorf("unexpected segment request %q / %q", gen.lastSegment, gen.lastNote)
	}
	if v.Selection.State != SelectionIdle || v.Selection.Span != nil {
		t.Errorf("expected selection cleared, got %+v", v.Selection)
	}
	if v.History.Length != 2 {
		t.Errorf("expected splice committed, got length %d", v.History.Length)
	}
}

func TestService_RefineSelectionFailure(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "ABCDE")
	ctx := context.Background()

	_, _ = svc.Select(ctx, testUser, id, 1, 3)
	gen.reply = ""
	gen.err = &generation.Error{Kind: generation.KindInvalidCredential, Op: "refine_segment"}
	if _, err := svc.RefineSelection(ctx, testUser, id, "rewrite"); !errors.Is(err, generation.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
	v, _ := svc.GetSession(ctx, testUser, id)
	if v.Note != "ABCDE" || v.History.Length != 1 {
		t.Errorf("expected note unchanged, got %q", v.Note)
	}
	if v.Selection.State != SelectionSelected || v.Selection.Span == nil {
		t.Errorf("expected selection kept for retry, got %+v", v.Selection)
	}
}

func TestService_SelectionInvalidatedByOtherPaths(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "ABCDE")
	ctx := context.Background()

	_, _ = svc.Select(ctx, testUser, id, 1, 3)
	v, _ := svc.SetNote(ctx, testUser, id, "ABCDEF")
	if v.Selection.State != SelectionIdle {
		t.Errorf("expected edit to clear selection, got %s", v.Selection.State)
	}

	_, _ = svc.Select(ctx, testUser, id, 1, 3)
	gen.reply = "fresh"
	v, _ = svc.Generate(ctx, testUser, id)
	if v.Selection.State != SelectionIdle {
		t.Errorf("expected commit to clear selection, got %s", v.Selection.State)
	}
}

func TestService_SegmentRefineSurvivesConcurrentCommit(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "ABCDE")
	ctx := context.Background()

	_, _ = svc.Select(ctx, testUser, id, 1, 3)
	gen.started = make(chan struct{}, 1)
	gen.release = make(chan struct{})
	gen.reply = "XY"

	var wg sync.WaitGroup
	var res *View
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, _ = svc.RefineSelection(ctx, testUser, id, "rewrite")
	}()
	<-gen.started

	// A free edit while the segment call is outstanding does not cancel it.
	v, _ := svc.SetNote(ctx, testUser, id, "something else")
	if v.Selection.State != SelectionRefining {
		t.Errorf("expected refining to survive, got %s", v.Selection.State)
	}
	if _, err := svc.Select(ctx, testUser, id, 0, 2); !errors.Is(err, ErrBusy) {
		t.Errorf("expected select to be busy, got %v", err)
	}

	close(gen.release)
	wg.Wait()
	if res == nil || res.Note != "AXYDE" {
		t.Errorf("expected stale-offset splice AXYDE, got %+v", res)
	}
}

func TestService_UndoRedoRestore(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "v1")
	ctx := context.Background()
	gen.reply = "v2"
	_, _ = svc.Generate(ctx, testUser, id)
	gen.reply = "v3"
	_, _ = svc.Generate(ctx, testUser, id)

	v, _ := svc.Undo(ctx, testUser, id)
	if v.Note != "v2" || v.History.Cursor != 1 {
		t.Errorf("expected v2 at cursor 1, got %q %d", v.Note, v.History.Cursor)
	}
	v, _ = svc.Redo(ctx, testUser, id)
	if v.Note != "v3" {
		t.Errorf("expected v3, got %q", v.Note)
	}
	v, err := svc.Restore(ctx, testUser, id, 0)
	if err != nil || v.Note != "v1" {
		t.Errorf("expected restore to v1, got %q err=%v", v.Note, err)
	}
	if _, err := svc.Restore(ctx, testUser, id, 7); !errors.Is(err, ErrVersionRange) {
		t.Errorf("expected ErrVersionRange, got %v", err)
	}

	gen.reply = "v1b"
	v, _ = svc.Generate(ctx, testUser, id)
	if v.History.Length != 2 || v.History.Cursor != 1 {
		t.Errorf("expected branch-on-write after restore, got %+v", v.History)
	}
}

func TestService_ListHistory(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "first   version\ntext")
	ctx := context.Background()
	gen.reply = "second"
	_, _ = svc.Generate(ctx, testUser, id)
	gen.reply = "third"
	_, _ = svc.Generate(ctx, testUser, id)
	_, _ = svc.Undo(ctx, testUser, id)

	items, total, err := svc.ListHistory(ctx, testUser, id, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if items[0].Index != 2 || items[1].Index != 1 {
		t.Errorf("expected newest first, got %+v", items)
	}
	if !items[1].Active || items[0].Active {
		t.Errorf("expected index 1 active, got %+v", items)
	}

	items, _, _ = svc.ListHistory(ctx, testUser, id, pagination.Params{Limit: 2, Offset: 2})
	if len(items) != 1 || items[0].Preview != "first version text" {
		t.Errorf("unexpected last page %+v", items)
	}

	items, total, err = svc.ListHistory(ctx, testUser, id, pagination.Params{Limit: 2, Offset: 5})
	if err != nil || total != 3 || len(items) != 0 {
		t.Errorf("expected empty page past the end, got %+v (total %d, err %v)", items, total, err)
	}
}

func TestService_RecordEditing(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	ctx := context.Background()
	v := svc.CreateSession(ctx, testUser)
	tid := v.Record.Timepoints[0].ID

	if _, err := svc.ApplyItem(ctx, testUser, v.ID, tid, "Lab data", "WBC 12000"); err != nil {
		t.Fatalf("apply item: %v", err)
	}
	if _, err := svc.RemoveTimepoint(ctx, testUser, v.ID, tid); !errors.Is(err, record.ErrLastTimepoint) {
		t.Errorf("expected ErrLastTimepoint, got %v", err)
	}
	if _, err := svc.AddDisease(ctx, testUser, v.ID, " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	p, err := svc.Payload(ctx, testUser, v.ID)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Timepoints[0].LabData != "WBC 12000" {
		t.Errorf("unexpected payload %+v", p.Timepoints[0])
	}
}

func TestService_Export(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(gen, staticCredentials("k"))
	id := newSessionWithNote(t, svc, gen, "final note")
	text, err := svc.Export(context.Background(), testUser, id)
	if err != nil || text != "final note" {
		t.Errorf("expected export of editor text, got %q err=%v", text, err)
	}
}
