// Package notify plans session reminders and hands them to a Sink. Delivery
// at the right wall-clock time is the sink's job.
package notify

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/goodtune/brainbites/internal/balance"
)

// ReminderKind identifies a reminder type.
type ReminderKind string

const (
	KindHalfway    ReminderKind = "halfway"
	KindFiveMinute ReminderKind = "fiveMinute"
	KindTimeUp     ReminderKind = "timeUp"
	KindPeriodic   ReminderKind = "periodic"
)

const (
	// minPlannable is the remaining time below which no reminders are planned
	minPlannable     = 60 * time.Second
	halfwayAfter     = 120 * time.Second
	fiveMinuteAfter  = 360 * time.Second
	periodicAfter    = 1200 * time.Second
	periodicInterval = 900 * time.Second
)

// Reminder is a notification due Offset after the session started.
type Reminder struct {
	Kind   ReminderKind  `json:"type"`
	AppID  string        `json:"appId"`
	Offset time.Duration `json:"offset"`
	Title  string        `json:"title"`
	Body   string        `json:"body"`
}

// Sink delivers reminders. Implementations are fire-and-forget.
type Sink interface {
	Schedule(ctx context.Context, reminders []Reminder) error
	CancelAll(ctx context.Context) error
}

// PlanReminders computes the reminders for a session of appID with the given
// remaining time, ordered by offset.
func PlanReminders(appID string, remaining time.Duration) []Reminder {
	if remaining < minPlannable {
		return nil
	}

	var plan []Reminder
	if remaining > halfwayAfter {
		plan = append(plan, Reminder{
			Kind:   KindHalfway,
			AppID:  appID,
			Offset: remaining / 2,
			Title:  "Halfway Point",
			Body:   fmt.Sprintf("You've used half of your allotted time for %s!", appID),
		})
	}
	if remaining > fiveMinuteAfter {
		plan = append(plan, Reminder{
			Kind:   KindFiveMinute,
			AppID:  appID,
			Offset: remaining - 5*time.Minute,
			Title:  "5 Minutes Left",
			Body:   "Only 5 minutes of app time remaining!",
		})
	}
	if remaining > periodicAfter {
		for at := periodicInterval; at < remaining; at += periodicInterval {
			plan = append(plan, Reminder{
				Kind:   KindPeriodic,
				AppID:  appID,
				Offset: at,
				Title:  "Time Check-in",
				Body: fmt.Sprintf("You've been using %s for a while. Time remaining: %s",
					appID, balance.Format(int64((remaining-at)/time.Second))),
			})
		}
	}
	plan = append(plan, Reminder{
		Kind:   KindTimeUp,
		AppID:  appID,
		Offset: remaining,
		Title:  "Time's Up!",
		Body:   fmt.Sprintf("Your allotted time for %s has ended.", appID),
	})

	slices.SortStableFunc(plan, func(a, b Reminder) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	return plan
}
