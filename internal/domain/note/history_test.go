package note

import "testing"

func TestHistory_Empty(t *testing.T) {
	h := NewHistory()
	if h.Cursor() != -1 {
		t.Errorf("expected cursor -1, got %d", h.Cursor())
	}
	if h.Current() != "" {
		t.Errorf("expected empty current, got %q", h.Current())
	}
	if h.Undo() != "" || h.Redo() != "" {
		t.Error("expected undo/redo on empty history to return empty text")
	}
	if h.Cursor() != -1 {
		t.Errorf("expected cursor to stay -1, got %d", h.Cursor())
	}
}

func TestHistory_CommitMonotonic(t *testing.T) {
	h := NewHistory()
	for i, v := range []string{"a", "b", "c", "d"} {
		h.Commit(v)
		if h.Cursor() != h.Len()-1 {
			t.Errorf("after commit %d: cursor %d, len %d", i, h.Cursor(), h.Len())
		}
		if h.Len() != i+1 {
			t.Errorf("after commit %d: expected len %d, got %d", i, i+1, h.Len())
		}
	}
}

func TestHistory_BranchOnWrite(t *testing.T) {
	h := NewHistory()
	h.Commit("v1")
	h.Commit("v2")
	h.Commit("v3")

	if got := h.Undo(); got != "v2" {
		t.Fatalf("expected undo to return v2, got %q", got)
	}
	if h.Cursor() != 1 {
		t.Fatalf("expected cursor 1, got %d", h.Cursor())
	}
	h.Commit("v2b")

	want := []string{"v1", "v2", "v2b"}
	got := h.Versions()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("version %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if h.Cursor() != 2 {
		t.Errorf("expected cursor 2, got %d", h.Cursor())
	}
	if h.CanRedo() {
		t.Error("expected redo branch to be discarded")
	}
}

func TestHistory_UndoRedoBoundaries(t *testing.T) {
	h := NewHistory()
	h.Commit("a")
	h.Commit("b")

	h.Undo()
	if got := h.Undo(); got != "a" || h.Cursor() != 0 {
		t.Errorf("expected undo at cursor 0 to be a no-op, got %q cursor %d", got, h.Cursor())
	}
	h.Redo()
	if got := h.Redo(); got != "b" || h.Cursor() != 1 {
		t.Errorf("expected redo at end to be a no-op, got %q cursor %d", got, h.Cursor())
	}
}

func TestHistory_JumpTo(t *testing.T) {
	h := NewHistory()
	h.Commit("a")
	h.Commit("b")
	h.Commit("c")

	text, ok := h.JumpTo(0)
	if !ok || text != "a" || h.Cursor() != 0 {
		t.Errorf("expected jump to 0, got %q ok=%v cursor=%d", text, ok, h.Cursor())
	}
	for _, idx := range []int{-1, 3, 99} {
		if _, ok := h.JumpTo(idx); ok {
			t.Errorf("expected JumpTo(%d) to be rejected", idx)
		}
		if h.Cursor() != 0 {
			t.Errorf("expected cursor unchanged after JumpTo(%d), got %d", idx, h.Cursor())
		}
	}
	if h.Len() != 3 {
		t.Errorf("expected jump not to alter versions")
	}
}

func TestHistory_CurrentIdempotent(t *testing.T) {
	h := NewHistory()
	h.Commit("stable")
	first := h.Current()
	for i := 0; i < 5; i++ {
		if h.Current() != first {
			t.Fatalf("Current changed without mutation")
		}
	}
	if h.Cursor() != 0 || h.Len() != 1 {
		t.Error("Current must not mutate the history")
	}
}

func TestHistory_VersionsAreCopies(t *testing.T) {
	h := NewHistory()
	h.Commit("a")
	vs := h.Versions()
	vs[0] = "mutated"
	if h.Current() != "a" {
		t.Errorf("expected stored version unchanged, got %q", h.Current())
	}
}

func TestRestoreHistory_ClampsCursor(t *testing.T) {
	h := restoreHistory([]string{"a", "b"}, 7)
	if h.Cursor() != 1 {
		t.Errorf("expected clamped cursor 1, got %d", h.Cursor())
	}
	h = restoreHistory(nil, 3)
	if h.Cursor() != -1 {
		t.Errorf("expected cursor -1 for empty history, got %d", h.Cursor())
	}
	h = restoreHistory([]string{"a", "b"}, 0)
	if h.Current() != "a" {
		t.Errorf("expected cursor kept at 0, got %q", h.Current())
	}
}
