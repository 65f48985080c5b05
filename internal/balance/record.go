package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/brainbites/internal/storage"
)

const (
	// TimerKey holds the balance record
	TimerKey = "brainbites_timer_data"

	// SessionKey holds the session shadow record
	SessionKey = "brainbites_session_data"
)

// Record is the persisted balance document.
type Record struct {
	AvailableSeconds int64  `json:"availableSeconds"`
	LastUpdated      string `json:"lastUpdated"`
}

// Shadow is the persisted snapshot of the running session, used after a
// restart to detect a session that was never closed.
type Shadow struct {
	SessionStartTime *int64  `json:"sessionStartTime"` // epoch milliseconds
	ActiveApp        *string `json:"activeApp"`
	SessionEnded     bool    `json:"sessionEnded"`
}

// NewShadow returns an open shadow for a session of appID started at start.
func NewShadow(appID string, start time.Time) Shadow {
	ms := start.UnixMilli()
	return Shadow{
		SessionStartTime: &ms,
		ActiveApp:        &appID,
	}
}

// Ended returns a copy of s marked as closed.
func (s Shadow) Ended() Shadow {
	s.SessionEnded = true
	return s
}

// StartTime returns the recorded start, if any.
func (s Shadow) StartTime() (time.Time, bool) {
	if s.SessionStartTime == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.SessionStartTime), true
}

// App returns the recorded app id or "".
func (s Shadow) App() string {
	if s.ActiveApp == nil {
		return ""
	}
	return *s.ActiveApp
}

// Dangling reports whether s describes a session that was started and
// never marked ended.
func (s Shadow) Dangling() bool {
	return s.SessionStartTime != nil && !s.SessionEnded
}

// ReadRecord reads the balance record from store. It returns
// storage.ErrNotFound when nothing has been persisted yet.
func ReadRecord(ctx context.Context, store storage.Store) (Record, error) {
	var rec Record
	if err := readJSON(ctx, store, TimerKey, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ReadShadow reads the session shadow from store. It returns
// storage.ErrNotFound when nothing has been persisted yet.
func ReadShadow(ctx context.Context, store storage.Store) (Shadow, error) {
	var sh Shadow
	if err := readJSON(ctx, store, SessionKey, &sh); err != nil {
		return Shadow{}, err
	}
	return sh, nil
}

func readJSON(ctx context.Context, store storage.Store, key string, v any) error {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}
