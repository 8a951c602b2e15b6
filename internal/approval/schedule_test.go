package approval

import (
	"testing"

	"github.com/brightears/bmasia-music-brief/internal/brief"
	"github.com/brightears/bmasia-music-brief/internal/daypart"
)

func TestRruleSlots_StandardRotationCoversAllDays(t *testing.T) {
	zs := brief.ZoneSchedule{
		ZoneName: "Main Floor",
		Dayparts: []daypart.Daypart{
			{Key: "opening", TimeRange: "09:00-12:00"},
		},
		Liked: map[string]brief.PlaylistPick{
			"opening": {PlaylistID: "p1", PlaylistName: "Morning Glow"},
		},
	}
	slots := rruleSlots(zs, "Asia/Bangkok")
	if len(slots) != 7 {
		t.Fatalf("expected one slot per day of the week, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start != "090000" {
			t.Errorf("expected start 090000, got %s", s.Start)
		}
		if s.DurationMs != 3*60*60*1000 {
			t.Errorf("expected 3h duration, got %dms", s.DurationMs)
		}
		if len(s.PlaylistIDs) != 1 || s.PlaylistIDs[0] != "p1" {
			t.Errorf("expected playlist p1, got %v", s.PlaylistIDs)
		}
	}
}

func TestRruleSlots_WeekendOverrideAddsOnlyWeekendDays(t *testing.T) {
	zs := brief.ZoneSchedule{
		ZoneName: "Main Floor",
		Dayparts: []daypart.Daypart{
			{Key: "opening", TimeRange: "09:00-12:00"},
		},
		Liked: map[string]brief.PlaylistPick{
			"opening": {PlaylistID: "p1"},
		},
		WeekendLiked: map[string]brief.PlaylistPick{
			"opening": {PlaylistID: "p2"},
		},
	}
	slots := rruleSlots(zs, "Asia/Bangkok")
	if len(slots) != 9 {
		t.Fatalf("expected 7 standard + 2 weekend slots, got %d", len(slots))
	}
	var weekendCount int
	for _, s := range slots {
		for _, pid := range s.PlaylistIDs {
			if pid == "p2" {
				weekendCount++
			}
		}
	}
	if weekendCount != 2 {
		t.Fatalf("expected weekend override to add exactly 2 slots (SA, SU), got %d", weekendCount)
	}
}

func TestRruleSlots_WrapsPastMidnight(t *testing.T) {
	zs := brief.ZoneSchedule{
		Dayparts: []daypart.Daypart{{Key: "late", TimeRange: "23:00-02:00"}},
		Liked:    map[string]brief.PlaylistPick{"late": {PlaylistID: "p1"}},
	}
	slots := rruleSlots(zs, "Asia/Bangkok")
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	if slots[0].DurationMs != 3*60*60*1000 {
		t.Fatalf("expected 3h duration across midnight wrap, got %dms", slots[0].DurationMs)
	}
}
