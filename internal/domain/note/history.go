package note

// History is a linear, branch-on-write list of note versions with a cursor
// at the version being shown. Cursor is -1 while the history is empty.
type History struct {
	versions []string
	cursor   int
}

func NewHistory() *History {
	return &History{cursor: -1}
}

// restoreHistory rebuilds a history from a checkpoint, clamping the cursor
// into range.
func restoreHistory(versions []string, cursor int) *History {
	h := &History{versions: append([]string(nil), versions...), cursor: cursor}
	if h.cursor >= len(h.versions) {
		h.cursor = len(h.versions) - 1
	}
	if h.cursor < -1 || (h.cursor == -1 && len(h.versions) > 0) {
		h.cursor = len(h.versions) - 1
	}
	return h
}

// Commit discards every version after the cursor, appends text and moves the
// cursor to it.
func (h *History) Commit(text string) {
	h.versions = append(h.versions[:h.cursor+1:h.cursor+1], text)
	h.cursor = len(h.versions) - 1
}

// Undo steps back one version. At the first version it does nothing.
func (h *History) Undo() string {
	if h.cursor > 0 {
		h.cursor--
	}
	return h.Current()
}

// Redo steps forward one version. At the last version it does nothing.
func (h *History) Redo() string {
	if h.cursor < len(h.versions)-1 {
		h.cursor++
	}
	return h.Current()
}

// JumpTo moves the cursor to index. Out of range indices leave the history
// unchanged and report ok=false.
func (h *History) JumpTo(index int) (string, bool) {
	if index < 0 || index >= len(h.versions) {
		return h.Current(), false
	}
	h.cursor = index
	return h.Current(), true
}

func (h *History) Current() string {
	if h.cursor < 0 {
		return ""
	}
	return h.versions[h.cursor]
}

func (h *History) Cursor() int { return h.cursor }

func (h *History) Len() int { return len(h.versions) }

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor < len(h.versions)-1 }

// Version returns the text at index.
func (h *History) Version(index int) (string, bool) {
	if index < 0 || index >= len(h.versions) {
		return "", false
	}
	return h.versions[index], true
}

// Versions returns a copy of every version, oldest first.
func (h *History) Versions() []string {
	return append([]string(nil), h.versions...)
}
