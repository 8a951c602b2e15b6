package brief

import (
	"strings"

	"github.com/brightears/bmasia-music-brief/internal/daypart"
	"github.com/brightears/bmasia-music-brief/internal/domain"
)

// PlaylistPick is one operator-liked playlist bound to a single daypart.
type PlaylistPick struct {
	PlaylistID   string `json:"playlistId"`
	PlaylistName string `json:"playlistName"`
}

// ZoneSchedule is one zone's computed dayparts plus the operator's liked
// playlist per daypart, for the standard rotation and an optional weekend
// variant. ZoneName doubles as the logical zone key the approval flow
// resolves against a learned domain.ZoneMapping.
type ZoneSchedule struct {
	ZoneName     string                  `json:"zoneName"`
	Dayparts     []daypart.Daypart       `json:"dayparts"`
	Liked        map[string]PlaylistPick `json:"liked"`
	WeekendLiked map[string]PlaylistPick `json:"weekendLiked,omitempty"`
}

// ScheduleData is the full persisted Brief.schedule_data payload: the
// per-zone daypart/playlist layout the approval flow materializes into
// durable domain.ScheduleEntry rows once the operator approves.
type ScheduleData struct {
	MultiZone bool           `json:"multiZone"`
	ZoneNames []string        `json:"zoneNames"`
	Zones     []ZoneSchedule `json:"zones"`
}

// parseTimeRange splits a daypart's "HH:MM-HH:MM" range into its two ends.
// An unparseable range degrades to "00:00"/"00:00" rather than failing the
// whole materialization over one cosmetic field.
func parseTimeRange(r string) (start, end string) {
	parts := strings.SplitN(r, "-", 2)
	if len(parts) != 2 {
		return "00:00", "00:00"
	}
	return parts[0], parts[1]
}

// MaterializeEntries turns this brief's schedule data into the durable rows
// the executor assigns against, resolving each zone's logical name to its
// platform zone id via zoneIDs (venue_name/brief_zone_name -> syb_zone_id,
// populated by the just-completed approval-page submission, or from the
// venue's saved zone mappings when a brief is auto-scheduled). A zone with no
// resolved platform id is skipped: its entries would have nothing to assign
// against.
//
// Per spec's literal approval-materialization scenario, the standard
// rotation is always "daily" and a weekend override (when present) is
// "weekend" layered on top, rather than narrowing the standard rotation to
// "weekday" — this mirrors the source's literal day-set, not a corrected one.
func (d ScheduleData) MaterializeEntries(briefID int64, timezone string, zoneIDs map[string]string) []domain.ScheduleEntry {
	var out []domain.ScheduleEntry
	for _, zs := range d.Zones {
		zoneID, ok := zoneIDs[zs.ZoneName]
		if !ok || zoneID == "" {
			continue
		}
		dpByKey := make(map[string]daypart.Daypart, len(zs.Dayparts))
		for _, dp := range zs.Dayparts {
			dpByKey[dp.Key] = dp
		}

		for dpKey, pick := range zs.Liked {
			dp, ok := dpByKey[dpKey]
			if !ok {
				continue
			}
			start, end := parseTimeRange(dp.TimeRange)
			out = append(out, domain.ScheduleEntry{
				BriefID:       briefID,
				ZoneID:        zoneID,
				ZoneName:      zs.ZoneName,
				PlaylistSYBID: pick.PlaylistID,
				PlaylistName:  pick.PlaylistName,
				StartTime:     start,
				EndTime:       end,
				Days:          domain.DaysDaily,
				Timezone:      timezone,
				Status:        domain.EntryActive,
			})
		}
		for dpKey, pick := range zs.WeekendLiked {
			dp, ok := dpByKey[dpKey]
			if !ok {
				continue
			}
			start, end := parseTimeRange(dp.TimeRange)
			out = append(out, domain.ScheduleEntry{
				BriefID:       briefID,
				ZoneID:        zoneID,
				ZoneName:      zs.ZoneName,
				PlaylistSYBID: pick.PlaylistID,
				PlaylistName:  pick.PlaylistName,
				StartTime:     start,
				EndTime:       end,
				Days:          domain.DaysWeekend,
				Timezone:      timezone,
				Status:        domain.EntryActive,
			})
		}
	}
	return out
}
