package note

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ehr/scribe/internal/domain/record"
	"github.com/ehr/scribe/internal/platform/sessionstore"
)

// Snapshot is the persisted checkpoint of a session. Controller state is not
// part of it; a restored session starts with both controllers idle.
type Snapshot struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Record    *record.Record `json:"record"`
	Versions  []string       `json:"versions"`
	Cursor    int            `json:"cursor"`
	Editor    string         `json:"editor"`
	Draft     string         `json:"draft"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// snapshot must be called with mu held.
func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		UserID:    s.userID,
		Record:    s.record.Clone(),
		Versions:  s.history.Versions(),
		Cursor:    s.history.Cursor(),
		Editor:    s.editor,
		Draft:     s.assistant.Draft(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

func sessionFromSnapshot(snap Snapshot, now time.Time) *Session {
	s := newSession(snap.ID, snap.UserID, snap.CreatedAt)
	if snap.Record != nil && len(snap.Record.Timepoints) > 0 {
		s.record = snap.Record
		if s.record.Profile.UnderlyingDiseases == nil {
			s.record.Profile.UnderlyingDiseases = []string{}
		}
	}
	s.history = restoreHistory(snap.Versions, snap.Cursor)
	s.editor = snap.Editor
	s.assistant.SetDraft(snap.Draft)
	s.updatedAt = snap.UpdatedAt
	s.lastSeen = now
	return s
}

// checkpoints encodes snapshots onto a sessionstore.Store.
type checkpoints struct {
	store sessionstore.Store
	ttl   time.Duration
}

func (c checkpoints) save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.store.Put(ctx, snap.ID, data, c.ttl)
}

func (c checkpoints) load(ctx context.Context, id string) (*Snapshot, error) {
	data, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (c checkpoints) delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}
