package repository

import (
	"context"

	"github.com/brightears/bmasia-music-brief/internal/domain"
)

// store returns a store bound to the unscoped connection pool, used for every
// domain.Repository method outside of a transaction.
func (db *DB) store() store {
	return store{q: db.conn, readTimeout: db.readTimeout, writeTimeout: db.writeTimeout}
}

func (db *DB) InsertBrief(ctx context.Context, b *domain.Brief) (int64, error) {
	return db.store().InsertBrief(ctx, b)
}
func (db *DB) GetBrief(ctx context.Context, id int64) (*domain.Brief, error) {
	return db.store().GetBrief(ctx, id)
}
func (db *DB) UpdateBriefStatus(ctx context.Context, id int64, status domain.BriefStatus) error {
	return db.store().UpdateBriefStatus(ctx, id, status)
}
func (db *DB) UpdateBriefSYBSchedule(ctx context.Context, id int64, scheduleID string) error {
	return db.store().UpdateBriefSYBSchedule(ctx, id, scheduleID)
}
func (db *DB) GetVenueByName(ctx context.Context, venueName string) (*domain.Venue, error) {
	return db.store().GetVenueByName(ctx, venueName)
}
func (db *DB) UpsertVenue(ctx context.Context, v *domain.Venue) error {
	return db.store().UpsertVenue(ctx, v)
}
func (db *DB) IncrementApprovedBriefCount(ctx context.Context, venueName string) error {
	return db.store().IncrementApprovedBriefCount(ctx, venueName)
}
func (db *DB) GetZoneMappings(ctx context.Context, venueName string) ([]domain.ZoneMapping, error) {
	return db.store().GetZoneMappings(ctx, venueName)
}
func (db *DB) UpsertZoneMapping(ctx context.Context, m domain.ZoneMapping) error {
	return db.store().UpsertZoneMapping(ctx, m)
}
func (db *DB) InsertScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) (int64, error) {
	return db.store().InsertScheduleEntry(ctx, e)
}
func (db *DB) DueEntries(ctx context.Context, nowUTC string) ([]domain.ScheduleEntry, error) {
	return db.store().DueEntries(ctx, nowUTC)
}
func (db *DB) OverdueEntries(ctx context.Context, nowUTC string) ([]domain.ScheduleEntry, error) {
	return db.store().OverdueEntries(ctx, nowUTC)
}
func (db *DB) MarkAssigned(ctx context.Context, id int64, assignedAtUTC string) error {
	return db.store().MarkAssigned(ctx, id, assignedAtUTC)
}
func (db *DB) MarkRetry(ctx context.Context, id int64, retryCount int, status domain.EntryStatus) error {
	return db.store().MarkRetry(ctx, id, retryCount, status)
}
func (db *DB) ActiveEntryCount(ctx context.Context) (int, error) {
	return db.store().ActiveEntryCount(ctx)
}
func (db *DB) InsertApprovalToken(ctx context.Context, t *domain.ApprovalToken) error {
	return db.store().InsertApprovalToken(ctx, t)
}
func (db *DB) GetApprovalToken(ctx context.Context, token string) (*domain.ApprovalToken, error) {
	return db.store().GetApprovalToken(ctx, token)
}
func (db *DB) MarkTokenUsed(ctx context.Context, token string, usedAtUTC string) error {
	return db.store().MarkTokenUsed(ctx, token, usedAtUTC)
}
func (db *DB) InsertFollowUp(ctx context.Context, f *domain.FollowUp) error {
	return db.store().InsertFollowUp(ctx, f)
}
func (db *DB) DueFollowUps(ctx context.Context, nowUTC string, limit int) ([]domain.FollowUp, error) {
	return db.store().DueFollowUps(ctx, nowUTC, limit)
}
func (db *DB) MarkFollowUpSent(ctx context.Context, id int64, sentAtUTC string) error {
	return db.store().MarkFollowUpSent(ctx, id, sentAtUTC)
}
func (db *DB) MarkFollowUpOpened(ctx context.Context, trackingID string, openedAtUTC string) error {
	return db.store().MarkFollowUpOpened(ctx, trackingID, openedAtUTC)
}
func (db *DB) AppendAudit(ctx context.Context, e domain.AuditEvent) error {
	return db.store().AppendAudit(ctx, e)
}

var _ domain.Repository = (*DB)(nil)
