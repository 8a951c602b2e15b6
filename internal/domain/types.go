// Package domain holds the persisted data model shared by the approval
// flow, the persistence layer, and the schedule executor.
package domain

import "time"

// BriefStatus tracks the one-directional lifecycle of a Brief:
// submitted -> approved -> scheduled -> completed. No backward transitions.
type BriefStatus string

const (
	BriefSubmitted BriefStatus = "submitted"
	BriefApproved  BriefStatus = "approved"
	BriefScheduled BriefStatus = "scheduled"
	BriefCompleted BriefStatus = "completed"
)

// Product identifies which external pipeline a brief belongs to. Only "syb"
// briefs drive the approval/zone-mapping/executor pipeline; "beatbreeze"
// briefs are captured for the record but never materialize schedule entries.
type Product string

const (
	ProductSYB        Product = "syb"
	ProductBeatbreeze Product = "beatbreeze"
)

// EntryDays selects which days of the week a ScheduleEntry is eligible on.
type EntryDays string

const (
	DaysDaily   EntryDays = "daily"
	DaysWeekday EntryDays = "weekday"
	DaysWeekend EntryDays = "weekend"
)

// EntryStatus tracks a ScheduleEntry's assignment lifecycle.
type EntryStatus string

const (
	EntryActive    EntryStatus = "active"
	EntryPaused    EntryStatus = "paused"
	EntryCompleted EntryStatus = "completed"
	EntryError     EntryStatus = "error"
)

// FollowUpType distinguishes the 7-day check-in from the 30-day refresh.
type FollowUpType string

const (
	FollowUp7Day  FollowUpType = "7day"
	FollowUp30Day FollowUpType = "30day"
)

// Brief is the persisted snapshot of one venue consultation.
type Brief struct {
	ID                  int64
	VenueName           string
	VenueType           string
	Location            string
	ContactName         string
	ContactEmail        string
	ContactPhone        string
	Product             Product
	LikedPlaylistIDs    []string
	ConversationSummary string
	RawData             []byte // full JSON snapshot: brief + designer brief
	ScheduleData         []byte // JSON: dayparts, order, liked playlists per zone, weekend variants, zone names
	Status              BriefStatus
	SYBAccountID        string
	SYBScheduleID       string
	AutomationTier      string
	CreatedAt           time.Time
}

// Venue is the one row per unique venue name, accreting state across briefs.
type Venue struct {
	VenueName          string
	Location           string
	VenueType          string
	SYBAccountID        string
	LatestBriefID       int64
	AutoSchedule        bool
	ApprovedBriefCount  int
	Timezone            string // IANA zone, default Asia/Bangkok
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AutoScheduleEligible mirrors the spec's §4.8 step 2 rule: eligible once the
// operator has opted the venue in AND at least two prior briefs were approved.
func (v Venue) AutoScheduleEligible() bool {
	return v.AutoSchedule && v.ApprovedBriefCount >= 2
}

// ZoneMapping associates a logical zone name used in conversation with a
// platform-side zone id. Learned at first approval, reused thereafter.
type ZoneMapping struct {
	ID        int64
	VenueName string
	ZoneKey   string // the brief's logical zone name, e.g. "Lobby"
	SYBZoneID string
	ZoneName  string // platform-side display name, cached for the approval page
	CreatedAt time.Time
}

// ScheduleEntry is the durable unit the executor runs against.
type ScheduleEntry struct {
	ID             int64
	BriefID        int64
	ZoneID         string
	ZoneName       string
	PlaylistSYBID  string
	PlaylistName   string
	StartTime      string // local wall-clock HH:MM
	EndTime        string // informational
	Days           EntryDays
	Timezone       string // IANA, denormalized from the owning venue
	Status         EntryStatus
	LastAssignedAt *time.Time // UTC
	RetryCount     int
}

// ApprovalToken is a single-use capability embedded in the approval URL.
type ApprovalToken struct {
	BriefID   int64
	Token     string // 256-bit hex
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Valid reports whether the token can still be redeemed.
func (t ApprovalToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// FollowUp is a scheduled 7-day or 30-day email, with an open-tracking pixel.
type FollowUp struct {
	ID           int64
	BriefID      int64
	Type         FollowUpType
	ScheduledFor time.Time
	SentAt       *time.Time
	OpenedAt     *time.Time
	TrackingID   string
}

// AuditEvent is an append-only record of a pipeline milestone, supplementing
// the spec with an operator-facing trail of what the approval flow and the
// executor actually did to a given brief.
type AuditEvent struct {
	ID        int64
	VenueName string
	BriefID   int64
	Kind      string // brief_submitted|brief_approved|schedule_bound|assignment_failed|...
	Payload   []byte // JSON
	CreatedAt time.Time
}
