package notify

import (
	"testing"
	"time"
)

func TestPlanReminders(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      []ReminderKind
		offsets   []time.Duration
	}{
		{
			name:      "under a minute",
			remaining: 45 * time.Second,
		},
		{
			name:      "short session only gets time up",
			remaining: 90 * time.Second,
			want:      []ReminderKind{KindTimeUp},
			offsets:   []time.Duration{90 * time.Second},
		},
		{
			name:      "halfway after two minutes",
			remaining: 300 * time.Second,
			want:      []ReminderKind{KindHalfway, KindTimeUp},
			offsets:   []time.Duration{150 * time.Second, 300 * time.Second},
		},
		{
			name:      "ten minutes adds five minute warning",
			remaining: 600 * time.Second,
			want:      []ReminderKind{KindHalfway, KindFiveMinute, KindTimeUp},
			offsets:   []time.Duration{300 * time.Second, 300 * time.Second, 600 * time.Second},
		},
		{
			name:      "long session adds periodic check-ins",
			remaining: 2000 * time.Second,
			want:      []ReminderKind{KindPeriodic, KindHalfway, KindFiveMinute, KindPeriodic, KindTimeUp},
			offsets: []time.Duration{
				900 * time.Second,
				1000 * time.Second,
				1700 * time.Second,
				1800 * time.Second,
				2000 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanReminders("app1", tt.remaining)
			if len(plan) != len(tt.want) {
				t.Fatalf("Expected %d reminders, got %d: %+v", len(tt.want), len(plan), plan)
			}
			for i, r := range plan {
				if r.Kind != tt.want[i] {
					t.Errorf("reminder %d: expected kind %s, got %s", i, tt.want[i], r.Kind)
				}
				if r.Offset != tt.offsets[i] {
					t.Errorf("reminder %d: expected offset %v, got %v", i, tt.offsets[i], r.Offset)
				}
				if r.AppID != "app1" {
					t.Errorf("reminder %d: expected app1, got %s", i, r.AppID)
				}
			}
		})
	}
}

func TestPeriodicBodyShowsRemaining(t *testing.T) {
	plan := PlanReminders("app1", 2000*time.Second)
	want := "You've been using app1 for a while. Time remaining: 18:20"
	if plan[0].Body != want {
		t.Errorf("Expected %q, got %q", want, plan[0].Body)
	}
}
