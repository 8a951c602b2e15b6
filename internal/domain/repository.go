package domain

import "context"

// BriefRepository covers reads/writes for Brief rows.
type BriefRepository interface {
	InsertBrief(ctx context.Context, b *Brief) (int64, error)
	GetBrief(ctx context.Context, id int64) (*Brief, error)
	UpdateBriefStatus(ctx context.Context, id int64, status BriefStatus) error
	UpdateBriefSYBSchedule(ctx context.Context, id int64, scheduleID string) error
}

// VenueRepository covers the one-row-per-venue aggregate.
type VenueRepository interface {
	GetVenueByName(ctx context.Context, venueName string) (*Venue, error)
	UpsertVenue(ctx context.Context, v *Venue) error
	IncrementApprovedBriefCount(ctx context.Context, venueName string) error
}

// ZoneMappingRepository covers the learned logical-zone to platform-zone map.
type ZoneMappingRepository interface {
	GetZoneMappings(ctx context.Context, venueName string) ([]ZoneMapping, error)
	UpsertZoneMapping(ctx context.Context, m ZoneMapping) error
}

// ScheduleEntryRepository covers the durable rows the executor runs against.
type ScheduleEntryRepository interface {
	InsertScheduleEntry(ctx context.Context, e *ScheduleEntry) (int64, error)
	DueEntries(ctx context.Context, nowUTC string) ([]ScheduleEntry, error)
	OverdueEntries(ctx context.Context, nowUTC string) ([]ScheduleEntry, error)
	MarkAssigned(ctx context.Context, id int64, assignedAtUTC string) error
	MarkRetry(ctx context.Context, id int64, retryCount int, status EntryStatus) error
	ActiveEntryCount(ctx context.Context) (int, error)
}

// ApprovalTokenRepository covers capability-token issuance/redemption.
type ApprovalTokenRepository interface {
	InsertApprovalToken(ctx context.Context, t *ApprovalToken) error
	GetApprovalToken(ctx context.Context, token string) (*ApprovalToken, error)
	MarkTokenUsed(ctx context.Context, token string, usedAtUTC string) error
}

// FollowUpRepository covers the 7/30-day email schedule.
type FollowUpRepository interface {
	InsertFollowUp(ctx context.Context, f *FollowUp) error
	DueFollowUps(ctx context.Context, nowUTC string, limit int) ([]FollowUp, error)
	MarkFollowUpSent(ctx context.Context, id int64, sentAtUTC string) error
	MarkFollowUpOpened(ctx context.Context, trackingID string, openedAtUTC string) error
}

// AuditRepository covers the append-only operator trail.
type AuditRepository interface {
	AppendAudit(ctx context.Context, e AuditEvent) error
}

// Repository aggregates every sub-interface the application depends on.
// Interface segregation lets callers accept only the slice they need.
type Repository interface {
	BriefRepository
	VenueRepository
	ZoneMappingRepository
	ScheduleEntryRepository
	ApprovalTokenRepository
	FollowUpRepository
	AuditRepository
}
