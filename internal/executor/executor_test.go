package executor

import (
	"testing"
	"time"

	"github.com/brightears/bmasia-music-brief/internal/domain"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata unavailable for %s: %v", name, err)
	}
	return loc
}

func TestDaysAdmit(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC).Weekday()    // Monday
	saturday := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC).Weekday() // Saturday

	if !daysAdmit(domain.DaysDaily, saturday) {
		t.Fatal("daily should admit every day")
	}
	if daysAdmit(domain.DaysWeekday, saturday) {
		t.Fatal("weekday should not admit Saturday")
	}
	if !daysAdmit(domain.DaysWeekday, monday) {
		t.Fatal("weekday should admit Monday")
	}
	if !daysAdmit(domain.DaysWeekend, saturday) {
		t.Fatal("weekend should admit Saturday")
	}
	if daysAdmit(domain.DaysWeekend, monday) {
		t.Fatal("weekend should not admit Monday")
	}
}

func TestIsDueNow_WithinOneMinuteWindow(t *testing.T) {
	loc := mustLoc(t, "Asia/Bangkok")
	now := time.Date(2026, 8, 3, 18, 0, 30, 0, loc) // Monday 18:00:30 local

	entry := domain.ScheduleEntry{StartTime: "18:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok"}
	if !isDueNow(entry, now) {
		t.Fatal("expected entry at 18:00 to be due at 18:00:30")
	}

	farEntry := domain.ScheduleEntry{StartTime: "08:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok"}
	if isDueNow(farEntry, now) {
		t.Fatal("expected an 08:00 entry not to be due at 18:00:30")
	}
}

func TestIsDueNow_SkipsAlreadyAssignedToday(t *testing.T) {
	loc := mustLoc(t, "Asia/Bangkok")
	now := time.Date(2026, 8, 3, 18, 0, 30, 0, loc)
	assignedToday := now.Add(-time.Hour).UTC()

	entry := domain.ScheduleEntry{StartTime: "18:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok", LastAssignedAt: &assignedToday}
	if isDueNow(entry, now) {
		t.Fatal("expected entry already assigned earlier today not to be due again")
	}
}

func TestIsDueNow_RespectsDayFilter(t *testing.T) {
	loc := mustLoc(t, "Asia/Bangkok")
	saturday := time.Date(2026, 8, 8, 9, 0, 0, 0, loc) // a Saturday
	entry := domain.ScheduleEntry{StartTime: "09:00", Days: domain.DaysWeekday, Timezone: "Asia/Bangkok"}
	if isDueNow(entry, saturday) {
		t.Fatal("weekday entry ticked on Saturday should not be due")
	}
}

func TestIsOverdue_CatchUpAfterColdStart(t *testing.T) {
	loc := mustLoc(t, "Asia/Bangkok")
	// Monday 19:30 local; 08:00 and 12:00 and 18:00 entries all started earlier today.
	now := time.Date(2026, 8, 3, 19, 30, 0, 0, loc)

	zone := "zone-1"
	e08 := domain.ScheduleEntry{ZoneID: zone, StartTime: "08:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok"}
	e12 := domain.ScheduleEntry{ZoneID: zone, StartTime: "12:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok"}
	e18 := domain.ScheduleEntry{ZoneID: zone, StartTime: "18:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok"}

	for _, e := range []domain.ScheduleEntry{e08, e12, e18} {
		if !isOverdue(e, now) {
			t.Fatalf("expected entry at %s to be overdue at 19:30", e.StartTime)
		}
	}

	// Collapse-by-zone: only the latest start_time should survive per zone,
	// mirroring what catchUp does with the overdue set.
	entries := []domain.ScheduleEntry{e08, e12, e18}
	latestByZone := map[string]domain.ScheduleEntry{}
	for _, e := range entries {
		cur, ok := latestByZone[e.ZoneID]
		if !ok || e.StartTime > cur.StartTime {
			latestByZone[e.ZoneID] = e
		}
	}
	if len(latestByZone) != 1 {
		t.Fatalf("expected exactly one surviving entry per zone, got %d", len(latestByZone))
	}
	if latestByZone[zone].StartTime != "18:00" {
		t.Fatalf("expected the 18:00 entry to win the catch-up collapse, got %s", latestByZone[zone].StartTime)
	}
}

func TestIsOverdue_NotYetStarted(t *testing.T) {
	loc := mustLoc(t, "Asia/Bangkok")
	now := time.Date(2026, 8, 3, 7, 0, 0, 0, loc)
	entry := domain.ScheduleEntry{StartTime: "08:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok"}
	if isOverdue(entry, now) {
		t.Fatal("entry starting later today should not be overdue yet")
	}
}

func TestIsOverdue_AlreadyAssignedToday(t *testing.T) {
	loc := mustLoc(t, "Asia/Bangkok")
	now := time.Date(2026, 8, 3, 19, 0, 0, 0, loc)
	assignedToday := now.Add(-time.Hour).UTC()
	entry := domain.ScheduleEntry{StartTime: "08:00", Days: domain.DaysDaily, Timezone: "Asia/Bangkok", LastAssignedAt: &assignedToday}
	if isOverdue(entry, now) {
		t.Fatal("entry already assigned today should not be overdue")
	}
}
