package worker

import (
	"testing"
	"time"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/store"
)

func testSchedule() config.ScheduleConfig {
	s := config.Default().Schedule
	s.PerHour = 300
	s.MinHour = 9
	s.MaxHour = 21
	return s
}

func TestNextPublicationColdStart(t *testing.T) {
	s := testSchedule()

	// Before the window opens: snap to today's opening.
	now := time.Date(2026, 8, 24, 7, 30, 0, 0, time.UTC)
	unix, hour := nextPublication(nil, now, s)
	want := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	if unix != want.Unix() || hour != 9 {
		t.Errorf("before window: got (%s, %d), want (%s, 9)",
			time.Unix(unix, 0).UTC(), hour, want)
	}

	// Inside the window: publish now.
	now = time.Date(2026, 8, 24, 14, 45, 0, 0, time.UTC)
	unix, hour = nextPublication(nil, now, s)
	if unix != now.Unix() || hour != 14 {
		t.Errorf("inside window: got (%s, %d), want (%s, 14)",
			time.Unix(unix, 0).UTC(), hour, now)
	}

	// After the window closes: snap to tomorrow's opening.
	now = time.Date(2026, 8, 24, 22, 10, 0, 0, time.UTC)
	unix, hour = nextPublication(nil, now, s)
	want = time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	if unix != want.Unix() || hour != 9 {
		t.Errorf("after window: got (%s, %d), want (%s, 9)",
			time.Unix(unix, 0).UTC(), hour, want)
	}
}

func TestNextPublicationFromLastDelivery(t *testing.T) {
	s := testSchedule()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	// A 600-char post at 300 chars/hour earns two hours of air time.
	last := &store.LastPublication{
		Unix:   time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC).Unix(),
		Length: 600,
	}
	unix, hour := nextPublication(last, now, s)
	want := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	if unix != want.Unix() || hour != 14 {
		t.Errorf("in-window slot: got (%s, %d), want (%s, 14)",
			time.Unix(unix, 0).UTC(), hour, want)
	}
}

func TestNextPublicationWindowRollover(t *testing.T) {
	s := testSchedule()
	now := time.Date(2026, 8, 24, 20, 30, 0, 0, time.UTC)

	// 20:00 + 2h lands at 22:00, past the 21:00 close: roll to tomorrow's
	// opening.
	last := &store.LastPublication{
		Unix:   time.Date(2026, 8, 24, 20, 0, 0, 0, time.UTC).Unix(),
		Length: 600,
	}
	unix, hour := nextPublication(last, now, s)
	want := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	if unix != want.Unix() || hour != 9 {
		t.Errorf("rollover: got (%s, %d), want (%s, 9)",
			time.Unix(unix, 0).UTC(), hour, want)
	}
}

func TestNextPublicationBeforeWindow(t *testing.T) {
	s := testSchedule()
	now := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)

	// A slot landing before the window opens moves to that day's opening.
	last := &store.LastPublication{
		Unix:   time.Date(2026, 8, 25, 5, 0, 0, 0, time.UTC).Unix(),
		Length: 300,
	}
	unix, hour := nextPublication(last, now, s)
	want := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	if unix != want.Unix() || hour != 9 {
		t.Errorf("pre-window slot: got (%s, %d), want (%s, 9)",
			time.Unix(unix, 0).UTC(), hour, want)
	}
}

func TestNextPublicationShortPost(t *testing.T) {
	s := testSchedule()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	// A 150-char post earns half an hour.
	last := &store.LastPublication{
		Unix:   time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC).Unix(),
		Length: 150,
	}
	unix, _ := nextPublication(last, now, s)
	want := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)
	if unix != want.Unix() {
		t.Errorf("short post slot: got %s, want %s", time.Unix(unix, 0).UTC(), want)
	}
}
