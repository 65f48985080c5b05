// Package events defines the typed event feed that the time-balance core
// publishes to its observers.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind tags an event on the wire.
type Kind string

const (
	KindSessionStarted Kind = "sessionStarted"
	KindTimeUpdate     Kind = "timeUpdate"
	KindSessionPaused  Kind = "sessionPaused"
	KindSessionResumed Kind = "sessionResumed"
	KindSessionEnded   Kind = "sessionEnded"
	KindCreditsAdded   Kind = "creditsAdded"
	KindTimeExpired    Kind = "timeExpired"
	KindTimeLoaded     Kind = "timeLoaded"
)

// Event is implemented by every event type. Consumers switch on the
// concrete type.
type Event interface {
	Kind() Kind
}

// SessionStarted is published when a session begins.
type SessionStarted struct {
	AppID         string `json:"appId"`
	AvailableTime int64  `json:"availableTime"`
}

// TimeUpdate is published on every tick of an active session.
type TimeUpdate struct {
	AppID     string `json:"appId"`
	Remaining int64  `json:"remaining"`
	Elapsed   int64  `json:"elapsed"`
	Total     int64  `json:"total"`
}

// SessionPaused is published when the host goes to the background.
type SessionPaused struct {
	AppID              string `json:"app"`
	ElapsedBeforePause int64  `json:"elapsedBeforePause"`
}

// SessionResumed is published when the host returns to the foreground.
type SessionResumed struct {
	AppID string `json:"app"`
}

// SessionEnded is published after a session has been settled.
type SessionEnded struct {
	AppID         string `json:"appId"`
	TimeSpent     int64  `json:"timeSpent"`
	RemainingTime int64  `json:"remainingTime"`
}

// CreditsAdded is published after seconds are credited.
type CreditsAdded struct {
	Seconds  int64 `json:"seconds"`
	NewTotal int64 `json:"newTotal"`
}

// TimeExpired is published when a start is refused for lack of time or a
// running session runs out. AppID is empty for a refused start.
type TimeExpired struct {
	AppID string `json:"appId,omitempty"`
}

// TimeLoaded is published once the persisted balance has been loaded.
// Reconciled holds the seconds debited for a stale session, if any.
type TimeLoaded struct {
	AvailableSeconds int64 `json:"availableSeconds"`
	Reconciled       int64 `json:"reconciled"`
}

func (SessionStarted) Kind() Kind { return KindSessionStarted }
func (TimeUpdate) Kind() Kind     { return KindTimeUpdate }
func (SessionPaused) Kind() Kind  { return KindSessionPaused }
func (SessionResumed) Kind() Kind { return KindSessionResumed }
func (SessionEnded) Kind() Kind   { return KindSessionEnded }
func (CreditsAdded) Kind() Kind   { return KindCreditsAdded }
func (TimeExpired) Kind() Kind    { return KindTimeExpired }
func (TimeLoaded) Kind() Kind     { return KindTimeLoaded }

type envelope struct {
	Type    Kind  `json:"type"`
	Payload Event `json:"payload"`
}

// Marshal encodes an event as {"type": ..., "payload": ...}.
func Marshal(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("marshal nil event")
	}
	return json.Marshal(envelope{Type: e.Kind(), Payload: e})
}
