package usage

import (
	"time"
)

// SessionState mirrors whether the host is in the foreground.
type SessionState string

const (
	StateActive SessionState = "active"
	StatePaused SessionState = "paused"
)

// Session represents the one timed session owned by a SessionClock
type Session struct {
	AppID            string
	StartedAt        time.Time
	AccumulatedPause time.Duration
	PauseStartedAt   time.Time // zero while running
	State            SessionState
}

// elapsed returns active time at now. An in-progress pause does not count.
func (s *Session) elapsed(now time.Time) time.Duration {
	e := now.Sub(s.StartedAt) - s.AccumulatedPause
	if s.State == StatePaused && !s.PauseStartedAt.IsZero() {
		e -= now.Sub(s.PauseStartedAt)
	}
	if e < 0 {
		return 0
	}
	return e
}

// SessionView is a read-only snapshot of the current session
type SessionView struct {
	AppID                   string       `json:"appId"`
	StartedAt               time.Time    `json:"startedAt"`
	State                   SessionState `json:"state"`
	ElapsedSeconds          int64        `json:"elapsedSeconds"`
	RemainingSeconds        int64        `json:"remainingSeconds"`
	AccumulatedPauseSeconds int64        `json:"accumulatedPauseSeconds"`
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
