package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/brightears/bmasia-music-brief/internal/domain"
	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting every query
// method below run identically inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const timeLayout = "2006-01-02 15:04:05"

// store implements domain.Repository against any querier, so the same
// methods serve both the unscoped *DB and a single *sql.Tx inside a
// UnitOfWork.
type store struct {
	q            querier
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (s store) rctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.readTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.readTimeout)
}

func (s store) wctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.writeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.writeTimeout)
}

// InsertBrief persists a new brief and returns its generated ID.
func (s store) InsertBrief(ctx context.Context, b *domain.Brief) (int64, error) {
	ctx, cancel := s.wctx(ctx)
	defer cancel()

	liked, err := json.Marshal(b.LikedPlaylistIDs)
	if err != nil {
		return 0, errs.NewValidation("store.InsertBrief", "failed to encode liked playlist ids", err)
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO briefs
		(venue_name, venue_type, location, contact_name, contact_email, contact_phone, product,
		 liked_playlist_ids, conversation_summary, raw_data, schedule_data, status,
		 syb_account_id, syb_schedule_id, automation_tier)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.VenueName, b.VenueType, b.Location, b.ContactName, b.ContactEmail, b.ContactPhone, string(b.Product),
		liked, b.ConversationSummary, nullableJSON(b.RawData), nullableJSON(b.ScheduleData), string(b.Status),
		b.SYBAccountID, b.SYBScheduleID, b.AutomationTier)
	if err != nil {
		return 0, errs.NewDB("store.InsertBrief", "failed to insert brief", err)
	}
	return res.LastInsertId()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// GetBrief loads a brief by id.
func (s store) GetBrief(ctx context.Context, id int64) (*domain.Brief, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx, `SELECT id, venue_name, venue_type, location, contact_name, contact_email,
		contact_phone, product, liked_playlist_ids, conversation_summary, raw_data, schedule_data, status,
		syb_account_id, syb_schedule_id, automation_tier, created_at FROM briefs WHERE id=?`, id)

	var b domain.Brief
	var likedRaw []byte
	var product, status string
	var rawData, scheduleData sql.NullString
	var createdAt time.Time
	if err := row.Scan(&b.ID, &b.VenueName, &b.VenueType, &b.Location, &b.ContactName, &b.ContactEmail,
		&b.ContactPhone, &product, &likedRaw, &b.ConversationSummary, &rawData, &scheduleData, &status,
		&b.SYBAccountID, &b.SYBScheduleID, &b.AutomationTier, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewDB("store.GetBrief", "brief not found", err)
		}
		return nil, errs.NewDB("store.GetBrief", "failed to load brief", err)
	}
	b.Product = domain.Product(product)
	b.Status = domain.BriefStatus(status)
	b.CreatedAt = createdAt
	if rawData.Valid {
		b.RawData = []byte(rawData.String)
	}
	if scheduleData.Valid {
		b.ScheduleData = []byte(scheduleData.String)
	}
	_ = json.Unmarshal(likedRaw, &b.LikedPlaylistIDs)
	return &b, nil
}

// UpdateBriefStatus moves a brief forward in its lifecycle.
func (s store) UpdateBriefStatus(ctx context.Context, id int64, status domain.BriefStatus) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE briefs SET status=? WHERE id=?`, string(status), id)
	if err != nil {
		return errs.NewDB("store.UpdateBriefStatus", "failed to update brief status", err)
	}
	return nil
}

// UpdateBriefSYBSchedule records the remote schedule id bound at approval.
func (s store) UpdateBriefSYBSchedule(ctx context.Context, id int64, scheduleID string) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE briefs SET syb_schedule_id=? WHERE id=?`, scheduleID, id)
	if err != nil {
		return errs.NewDB("store.UpdateBriefSYBSchedule", "failed to update brief schedule id", err)
	}
	return nil
}

// GetVenueByName loads the one-row-per-venue aggregate, or nil if unseen.
func (s store) GetVenueByName(ctx context.Context, venueName string) (*domain.Venue, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	row := s.q.QueryRowContext(ctx, `SELECT venue_name, location, venue_type, syb_account_id, latest_brief_id,
		auto_schedule, approved_brief_count, timezone, created_at, updated_at FROM venues WHERE venue_name=?`, venueName)

	var v domain.Venue
	var latestBriefID sql.NullInt64
	if err := row.Scan(&v.VenueName, &v.Location, &v.VenueType, &v.SYBAccountID, &latestBriefID,
		&v.AutoSchedule, &v.ApprovedBriefCount, &v.Timezone, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.NewDB("store.GetVenueByName", "failed to load venue", err)
	}
	if latestBriefID.Valid {
		v.LatestBriefID = latestBriefID.Int64
	}
	return &v, nil
}

// UpsertVenue inserts or updates the venue aggregate by venue_name.
func (s store) UpsertVenue(ctx context.Context, v *domain.Venue) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `INSERT INTO venues
		(venue_name, location, venue_type, syb_account_id, latest_brief_id, auto_schedule, approved_brief_count, timezone)
		VALUES (?,?,?,?,?,?,?,?)
		ON DUPLICATE KEY UPDATE location=VALUES(location), venue_type=VALUES(venue_type),
			syb_account_id=VALUES(syb_account_id), latest_brief_id=VALUES(latest_brief_id),
			auto_schedule=VALUES(auto_schedule), timezone=VALUES(timezone)`,
		v.VenueName, v.Location, v.VenueType, v.SYBAccountID, v.LatestBriefID, v.AutoSchedule, v.ApprovedBriefCount, v.Timezone)
	if err != nil {
		return errs.NewDB("store.UpsertVenue", "failed to upsert venue", err)
	}
	return nil
}

// IncrementApprovedBriefCount bumps the monotonic approval counter that
// AutoScheduleEligible checks against.
func (s store) IncrementApprovedBriefCount(ctx context.Context, venueName string) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE venues SET approved_brief_count = approved_brief_count + 1 WHERE venue_name=?`, venueName)
	if err != nil {
		return errs.NewDB("store.IncrementApprovedBriefCount", "failed to increment approved brief count", err)
	}
	return nil
}

// GetZoneMappings returns the learned logical-to-platform zone map for a venue.
func (s store) GetZoneMappings(ctx context.Context, venueName string) ([]domain.ZoneMapping, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `SELECT id, venue_name, zone_key, syb_zone_id, zone_name, created_at
		FROM zone_mappings WHERE venue_name=?`, venueName)
	if err != nil {
		return nil, errs.NewDB("store.GetZoneMappings", "failed to load zone mappings", err)
	}
	defer rows.Close()

	var out []domain.ZoneMapping
	for rows.Next() {
		var m domain.ZoneMapping
		if err := rows.Scan(&m.ID, &m.VenueName, &m.ZoneKey, &m.SYBZoneID, &m.ZoneName, &m.CreatedAt); err != nil {
			return nil, errs.NewDB("store.GetZoneMappings", "failed to scan zone mapping", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertZoneMapping records or refreshes a single logical-zone binding.
func (s store) UpsertZoneMapping(ctx context.Context, m domain.ZoneMapping) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `INSERT INTO zone_mappings (venue_name, zone_key, syb_zone_id, zone_name)
		VALUES (?,?,?,?)
		ON DUPLICATE KEY UPDATE syb_zone_id=VALUES(syb_zone_id), zone_name=VALUES(zone_name)`,
		m.VenueName, m.ZoneKey, m.SYBZoneID, m.ZoneName)
	if err != nil {
		return errs.NewDB("store.UpsertZoneMapping", "failed to upsert zone mapping", err)
	}
	return nil
}

// InsertScheduleEntry persists a durable schedule entry the executor runs against.
func (s store) InsertScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) (int64, error) {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	res, err := s.q.ExecContext(ctx, `INSERT INTO schedule_entries
		(brief_id, zone_id, zone_name, playlist_syb_id, playlist_name, start_time, end_time, days, timezone, status, retry_count)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.BriefID, e.ZoneID, e.ZoneName, e.PlaylistSYBID, e.PlaylistName, e.StartTime, e.EndTime,
		string(e.Days), e.Timezone, string(e.Status), e.RetryCount)
	if err != nil {
		return 0, errs.NewDB("store.InsertScheduleEntry", "failed to insert schedule entry", err)
	}
	return res.LastInsertId()
}

func scanEntries(rows *sql.Rows) ([]domain.ScheduleEntry, error) {
	defer rows.Close()
	var out []domain.ScheduleEntry
	for rows.Next() {
		var e domain.ScheduleEntry
		var days, status string
		var lastAssigned sql.NullTime
		if err := rows.Scan(&e.ID, &e.BriefID, &e.ZoneID, &e.ZoneName, &e.PlaylistSYBID, &e.PlaylistName,
			&e.StartTime, &e.EndTime, &days, &e.Timezone, &status, &lastAssigned, &e.RetryCount); err != nil {
			return nil, errs.NewDB("store.scanEntries", "failed to scan schedule entry", err)
		}
		e.Days = domain.EntryDays(days)
		e.Status = domain.EntryStatus(status)
		if lastAssigned.Valid {
			t := lastAssigned.Time
			e.LastAssignedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const entryColumns = `id, brief_id, zone_id, zone_name, playlist_syb_id, playlist_name,
	start_time, end_time, days, timezone, status, last_assigned_at, retry_count`

// DueEntries returns every active entry; nowUTC is not used in the query.
// The caller filters to the due-now window, evaluating start time,
// day-of-week and per-zone timezone locally.
func (s store) DueEntries(ctx context.Context, nowUTC string) ([]domain.ScheduleEntry, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `SELECT `+entryColumns+` FROM schedule_entries WHERE status='active'`)
	if err != nil {
		return nil, errs.NewDB("store.DueEntries", "failed to query due entries", err)
	}
	return scanEntries(rows)
}

// OverdueEntries returns active entries that were never assigned, or whose
// last assignment is earlier than nowUTC — the catch-up /
// cold-start population the executor collapses by zone.
func (s store) OverdueEntries(ctx context.Context, nowUTC string) ([]domain.ScheduleEntry, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `SELECT `+entryColumns+` FROM schedule_entries
		WHERE status='active' AND (last_assigned_at IS NULL OR last_assigned_at < ?)`, nowUTC)
	if err != nil {
		return nil, errs.NewDB("store.OverdueEntries", "failed to query overdue entries", err)
	}
	return scanEntries(rows)
}

// MarkAssigned records a successful assignment and resets retry_count.
func (s store) MarkAssigned(ctx context.Context, id int64, assignedAtUTC string) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE schedule_entries SET last_assigned_at=?, retry_count=0, status='active' WHERE id=?`,
		assignedAtUTC, id)
	if err != nil {
		return errs.NewDB("store.MarkAssigned", "failed to mark entry assigned", err)
	}
	return nil
}

// MarkRetry records a failed assignment attempt. status should be 'active'
// while retries remain and 'error' once retry_count reaches 3 — terminal,
// per the decision recorded against spec §9's open question: an error-status
// entry never reactivates on its own.
func (s store) MarkRetry(ctx context.Context, id int64, retryCount int, status domain.EntryStatus) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE schedule_entries SET retry_count=?, status=? WHERE id=?`,
		retryCount, string(status), id)
	if err != nil {
		return errs.NewDB("store.MarkRetry", "failed to mark entry retry", err)
	}
	return nil
}

// ActiveEntryCount reports how many schedule entries are currently active.
func (s store) ActiveEntryCount(ctx context.Context) (int, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedule_entries WHERE status='active'`).Scan(&n); err != nil {
		return 0, errs.NewDB("store.ActiveEntryCount", "failed to count active entries", err)
	}
	return n, nil
}

// InsertApprovalToken issues a new single-use capability token.
func (s store) InsertApprovalToken(ctx context.Context, t *domain.ApprovalToken) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `INSERT INTO approval_tokens (token, brief_id, expires_at) VALUES (?,?,?)`,
		t.Token, t.BriefID, t.ExpiresAt)
	if err != nil {
		return errs.NewDB("store.InsertApprovalToken", "failed to insert approval token", err)
	}
	return nil
}

// GetApprovalToken loads a token row by its opaque token string.
func (s store) GetApprovalToken(ctx context.Context, token string) (*domain.ApprovalToken, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	row := s.q.QueryRowContext(ctx, `SELECT token, brief_id, expires_at, used_at, created_at
		FROM approval_tokens WHERE token=?`, token)

	var t domain.ApprovalToken
	var usedAt sql.NullTime
	if err := row.Scan(&t.Token, &t.BriefID, &t.ExpiresAt, &usedAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.NewDB("store.GetApprovalToken", "failed to load approval token", err)
	}
	if usedAt.Valid {
		v := usedAt.Time
		t.UsedAt = &v
	}
	return &t, nil
}

// MarkTokenUsed consumes a token; a token may be consumed at most once.
func (s store) MarkTokenUsed(ctx context.Context, token string, usedAtUTC string) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE approval_tokens SET used_at=? WHERE token=? AND used_at IS NULL`, usedAtUTC, token)
	if err != nil {
		return errs.NewDB("store.MarkTokenUsed", "failed to mark token used", err)
	}
	return nil
}

// InsertFollowUp schedules a 7-day or 30-day follow-up email.
func (s store) InsertFollowUp(ctx context.Context, f *domain.FollowUp) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `INSERT INTO follow_ups (brief_id, type, scheduled_for, tracking_id) VALUES (?,?,?,?)`,
		f.BriefID, string(f.Type), f.ScheduledFor, f.TrackingID)
	if err != nil {
		return errs.NewDB("store.InsertFollowUp", "failed to insert follow-up", err)
	}
	return nil
}

// DueFollowUps returns up to limit unsent follow-ups whose scheduled_for has
// passed, per spec §4.9's cap of 5 dispatched per tick.
func (s store) DueFollowUps(ctx context.Context, nowUTC string, limit int) ([]domain.FollowUp, error) {
	ctx, cancel := s.rctx(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `SELECT id, brief_id, type, scheduled_for, sent_at, opened_at, tracking_id
		FROM follow_ups WHERE sent_at IS NULL AND scheduled_for <= ? ORDER BY scheduled_for ASC LIMIT ?`, nowUTC, limit)
	if err != nil {
		return nil, errs.NewDB("store.DueFollowUps", "failed to query due follow-ups", err)
	}
	defer rows.Close()

	var out []domain.FollowUp
	for rows.Next() {
		var f domain.FollowUp
		var typ string
		var sentAt, openedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.BriefID, &typ, &f.ScheduledFor, &sentAt, &openedAt, &f.TrackingID); err != nil {
			return nil, errs.NewDB("store.DueFollowUps", "failed to scan follow-up", err)
		}
		f.Type = domain.FollowUpType(typ)
		if sentAt.Valid {
			t := sentAt.Time
			f.SentAt = &t
		}
		if openedAt.Valid {
			t := openedAt.Time
			f.OpenedAt = &t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkFollowUpSent marks a follow-up dispatched. Called regardless of SMTP
// outcome: per the decision recorded against spec §9's open question, a
// follow-up is marked sent even when delivery failed, trading the dropped
// email for a simple one-attempt-per-tick retry policy.
func (s store) MarkFollowUpSent(ctx context.Context, id int64, sentAtUTC string) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE follow_ups SET sent_at=? WHERE id=?`, sentAtUTC, id)
	if err != nil {
		return errs.NewDB("store.MarkFollowUpSent", "failed to mark follow-up sent", err)
	}
	return nil
}

// MarkFollowUpOpened records the tracking-pixel GET. The handler treats it
// as best-effort: it calls it synchronously and only logs a failure.
func (s store) MarkFollowUpOpened(ctx context.Context, trackingID string, openedAtUTC string) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `UPDATE follow_ups SET opened_at=? WHERE tracking_id=? AND opened_at IS NULL`,
		openedAtUTC, trackingID)
	if err != nil {
		return errs.NewDB("store.MarkFollowUpOpened", "failed to mark follow-up opened", err)
	}
	return nil
}

// AppendAudit writes one append-only operator-trail row.
func (s store) AppendAudit(ctx context.Context, e domain.AuditEvent) error {
	ctx, cancel := s.wctx(ctx)
	defer cancel()
	_, err := s.q.ExecContext(ctx, `INSERT INTO venue_audit_events (venue_name, brief_id, kind, payload) VALUES (?,?,?,?)`,
		e.VenueName, e.BriefID, e.Kind, nullableJSON(e.Payload))
	if err != nil {
		return errs.NewDB("store.AppendAudit", "failed to append audit event", err)
	}
	return nil
}

var _ domain.Repository = store{}
