// Package approval implements the submit-to-assignment pipeline: persisting
// a submitted brief, issuing a single-use capability token, pre-building a
// remote schedule when the account is already known, and — on the venue
// operator's click-through — binding the approved schedule atomically via a
// domain.UnitOfWork.
package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightears/bmasia-music-brief/internal/accountcache"
	"github.com/brightears/bmasia-music-brief/internal/adapters/mailer"
	"github.com/brightears/bmasia-music-brief/internal/adapters/musicplatform"
	"github.com/brightears/bmasia-music-brief/internal/brief"
	"github.com/brightears/bmasia-music-brief/internal/domain"
	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

const tokenTTL = 7 * 24 * time.Hour

// Service wires the repository and external adapters needed to run the
// submit and approve flows.
type Service struct {
	Repo           domain.Repository
	UOWFactory     domain.UnitOfWorkFactory
	MusicPlatform  *musicplatform.Client
	Accounts       *accountcache.Cache
	Mailer         *mailer.Mailer
	BaseURL        string
	RecipientEmail string
}

// SubmitInput carries the fields collected from the submission form, per
// spec §6.2's submit payload (the "website" honeypot field is handled by the
// HTTP layer before this is called, and never reaches the service).
type SubmitInput struct {
	VenueName           string
	VenueType           string
	Location            string
	ContactName         string
	ContactEmail        string
	ContactPhone        string
	Product             domain.Product
	LikedPlaylistIDs    []string
	ConversationSummary string
	RawData             []byte
	Schedule            brief.ScheduleData
	SYBAccountID        string
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// trackingID mints a follow-up tracking id. Unlike the approval token, this
// value has no authority attached to it — it only joins a GET request back
// to a FollowUp row — so a UUID is enough; it doesn't need randomToken's
// cryptographic guarantees.
func trackingID() string {
	return uuid.NewString()
}

// SubmitResult reports what Submit actually did, for the HTTP layer to
// render a confirmation page from.
type SubmitResult struct {
	BriefID            int64
	AutoScheduled      bool
	ApproveURL         string
	RemoteScheduleID   string   // pre-built remote schedule id, account-scoped, covers every zone
	RemoteScheduleZones []string // zone names the pre-built schedule is meant to cover
}

// Submit persists a new brief, decides auto-schedule eligibility, issues an
// approval token when human sign-off is still required, schedules the 7 and
// 30-day follow-ups, pre-builds a remote schedule when an account is already
// confirmed, and emails the recipient. Per spec §7, an email failure here
// surfaces as an error to the caller even though the brief is already
// durable: a client retry producing a duplicate brief row is an accepted
// tradeoff for never silently dropping a submission. Non-SYB ("beatbreeze")
// products are persisted but never drive the zone-mapping/executor pipeline.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	scheduleJSON, err := json.Marshal(in.Schedule)
	if err != nil {
		return SubmitResult{}, errs.NewValidation("approval.Submit", "failed to encode schedule data", err)
	}

	b := &domain.Brief{
		VenueName:           in.VenueName,
		VenueType:           in.VenueType,
		Location:            in.Location,
		ContactName:         in.ContactName,
		ContactEmail:        in.ContactEmail,
		ContactPhone:        in.ContactPhone,
		Product:             in.Product,
		LikedPlaylistIDs:    in.LikedPlaylistIDs,
		ConversationSummary: in.ConversationSummary,
		RawData:             in.RawData,
		ScheduleData:        scheduleJSON,
		Status:              domain.BriefSubmitted,
		SYBAccountID:        in.SYBAccountID,
	}

	briefID, err := s.Repo.InsertBrief(ctx, b)
	if err != nil {
		return SubmitResult{}, err
	}
	b.ID = briefID

	venue, err := s.Repo.GetVenueByName(ctx, in.VenueName)
	if err != nil {
		return SubmitResult{}, err
	}
	if venue == nil {
		venue = &domain.Venue{VenueName: in.VenueName, Location: in.Location, VenueType: in.VenueType, Timezone: "Asia/Bangkok"}
	}
	venue.LatestBriefID = briefID
	if in.SYBAccountID != "" {
		venue.SYBAccountID = in.SYBAccountID
	}
	if err := s.Repo.UpsertVenue(ctx, venue); err != nil {
		return SubmitResult{}, err
	}
	_ = s.Repo.AppendAudit(ctx, domain.AuditEvent{VenueName: in.VenueName, BriefID: briefID, Kind: "brief_submitted"})

	result := SubmitResult{BriefID: briefID}

	if in.Product != domain.ProductSYB {
		return result, nil
	}

	mappings, err := s.Repo.GetZoneMappings(ctx, in.VenueName)
	if err != nil {
		return SubmitResult{}, err
	}
	zoneIDs := make(map[string]string, len(mappings))
	for _, m := range mappings {
		zoneIDs[m.ZoneKey] = m.SYBZoneID
	}

	autoEligible := venue.AutoScheduleEligible() && len(mappings) > 0
	if autoEligible {
		entries := in.Schedule.MaterializeEntries(briefID, venue.Timezone, zoneIDs)
		for _, e := range entries {
			if _, err := s.Repo.InsertScheduleEntry(ctx, &e); err != nil {
				return SubmitResult{}, err
			}
		}
		if err := s.Repo.UpdateBriefStatus(ctx, briefID, domain.BriefApproved); err != nil {
			return SubmitResult{}, err
		}
		if err := s.Repo.IncrementApprovedBriefCount(ctx, in.VenueName); err != nil {
			return SubmitResult{}, err
		}
		_ = s.Repo.AppendAudit(ctx, domain.AuditEvent{VenueName: in.VenueName, BriefID: briefID, Kind: "brief_approved"})
		result.AutoScheduled = true
	} else {
		token, err := randomToken()
		if err != nil {
			return SubmitResult{}, errs.NewBiz("approval.Submit", "failed to generate approval token", err)
		}
		approvalToken := &domain.ApprovalToken{Token: token, BriefID: briefID, ExpiresAt: time.Now().Add(tokenTTL)}
		if err := s.Repo.InsertApprovalToken(ctx, approvalToken); err != nil {
			return SubmitResult{}, err
		}
		result.ApproveURL = fmt.Sprintf("%s/approve/%s", s.BaseURL, token)

		now := time.Now()
		sevenDay := &domain.FollowUp{BriefID: briefID, Type: domain.FollowUp7Day, ScheduledFor: now.Add(7 * 24 * time.Hour), TrackingID: trackingID()}
		thirtyDay := &domain.FollowUp{BriefID: briefID, Type: domain.FollowUp30Day, ScheduledFor: now.Add(30 * 24 * time.Hour), TrackingID: trackingID()}
		if err := s.Repo.InsertFollowUp(ctx, sevenDay); err != nil {
			return SubmitResult{}, err
		}
		if err := s.Repo.InsertFollowUp(ctx, thirtyDay); err != nil {
			return SubmitResult{}, err
		}
	}

	// Pre-build one remote schedule for the whole brief when the account is
	// already confirmed, per spec §4.5/§6.2: createSchedule is account-scoped
	// (ownerId), not zone-scoped, matching domain.Brief's single
	// SYBScheduleID field -- every zone shares the same daypart/liked-
	// playlist layout (see toScheduleData), so one zone's slots represent
	// the whole brief, and the schedule is bound to every mapped zone later
	// at approval. Best-effort per spec §4.8 step 4 and §7 — failure here
	// never blocks the submission, it just means approval later materializes
	// local entries instead of binding a remote schedule.
	if in.SYBAccountID != "" && s.MusicPlatform != nil && len(in.Schedule.Zones) > 0 {
		slots := rruleSlots(in.Schedule.Zones[0], venue.Timezone)
		if len(slots) > 0 {
			name := fmt.Sprintf("%s — by BMAsia", in.VenueName)
			desc := fmt.Sprintf("Brief #%d", briefID)
			if scheduleID, err := s.MusicPlatform.CreateSchedule(ctx, in.SYBAccountID, name, desc, slots); err == nil {
				result.RemoteScheduleID = scheduleID
				result.RemoteScheduleZones = in.Schedule.ZoneNames
				for _, slot := range slots {
					for _, pid := range slot.PlaylistIDs {
						_ = s.MusicPlatform.AddToMusicLibrary(ctx, in.SYBAccountID, pid)
					}
				}
				_ = s.Repo.UpdateBriefSYBSchedule(ctx, briefID, scheduleID)
			}
		}
	}

	subject := fmt.Sprintf("New music brief: %s", in.VenueName)
	var bodyBuilder strings.Builder
	fmt.Fprintf(&bodyBuilder, "<p>A new brief has been submitted for <b>%s</b>.</p>", in.VenueName)
	if result.ApproveURL != "" {
		fmt.Fprintf(&bodyBuilder, `<p><a href="%s">Review and approve</a></p>`, result.ApproveURL)
	}
	if result.RemoteScheduleID != "" {
		fmt.Fprintf(&bodyBuilder, "<p>Schedule pre-built on the music platform for: %s</p>", strings.Join(result.RemoteScheduleZones, ", "))
	}
	if s.Mailer != nil {
		if err := s.Mailer.Send(ctx, subject, bodyBuilder.String()); err != nil {
			return result, err
		}
	}

	return result, nil
}

// rruleSlots converts one zone's liked-playlist-per-daypart map into weekly
// RRULE slots, one slot per daypart and day-of-week: the standard liked
// picks cover all seven days, and weekend liked picks add SA and SU slots.
func rruleSlots(zs brief.ZoneSchedule, timezone string) []musicplatform.ScheduleSlot {
	dpByKey := make(map[string]int) // key -> index, to preserve daypart order for duration calc
	for i, dp := range zs.Dayparts {
		dpByKey[dp.Key] = i
	}

	var slots []musicplatform.ScheduleSlot
	appendFor := func(picks map[string]brief.PlaylistPick, days []string) {
		for dpKey, pick := range picks {
			idx, ok := dpByKey[dpKey]
			if !ok {
				continue
			}
			dp := zs.Dayparts[idx]
			start, end := splitRange(dp.TimeRange)
			duration := durationMs(start, end)
			for _, day := range days {
				slots = append(slots, musicplatform.ScheduleSlot{
					RRule:       fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s", day),
					Start:       strings.ReplaceAll(start, ":", "") + "00",
					DurationMs:  duration,
					PlaylistIDs: []string{pick.PlaylistID},
				})
			}
		}
	}

	appendFor(zs.Liked, allDays)
	if len(zs.WeekendLiked) > 0 {
		appendFor(zs.WeekendLiked, weekendDays)
	}
	return slots
}

var allDays = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}
var weekendDays = []string{"SA", "SU"}

func splitRange(r string) (start, end string) {
	parts := strings.SplitN(r, "-", 2)
	if len(parts) != 2 {
		return "00:00", "00:00"
	}
	return parts[0], parts[1]
}

func durationMs(start, end string) int64 {
	s := toMinutes(start)
	e := toMinutes(end)
	d := e - s
	if d <= 0 {
		d += 24 * 60
	}
	return int64(d) * 60 * 1000
}

func toMinutes(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

// ZoneChoice is one zone offered on the approval page, with the discovered
// platform zone id the operator's selection will bind to, and the prior
// mapping (if any) pre-selected.
type ZoneChoice struct {
	ZoneKey       string
	SYBZoneID     string
	AlreadyMapped string
}

// TokenStatus classifies a GET /approve/{token} request before rendering.
type TokenStatus int

const (
	TokenValid TokenStatus = iota
	TokenNotFound
	TokenExpired
	TokenUsed
)

// CheckToken validates a token and returns its brief and status.
func (s *Service) CheckToken(ctx context.Context, token string) (*domain.ApprovalToken, *domain.Brief, TokenStatus, error) {
	t, err := s.Repo.GetApprovalToken(ctx, token)
	if err != nil {
		return nil, nil, TokenNotFound, err
	}
	if t == nil {
		return nil, nil, TokenNotFound, nil
	}
	if t.UsedAt != nil {
		return t, nil, TokenUsed, nil
	}
	if !t.Valid(time.Now()) {
		return t, nil, TokenExpired, nil
	}
	b, err := s.Repo.GetBrief(ctx, t.BriefID)
	if err != nil {
		return t, nil, TokenNotFound, err
	}
	return t, b, TokenValid, nil
}

// ZoneChoicesForBrief discovers the venue's platform zones (via its
// confirmed account, or by venue-name search in the account cache) and joins
// them with any already-learned zone mappings so the approval page can
// pre-select drop-downs.
func (s *Service) ZoneChoicesForBrief(ctx context.Context, b *domain.Brief) ([]ZoneChoice, error) {
	existing, err := s.Repo.GetZoneMappings(ctx, b.VenueName)
	if err != nil {
		return nil, err
	}
	existingByZone := make(map[string]string, len(existing))
	for _, m := range existing {
		existingByZone[m.ZoneKey] = m.SYBZoneID
	}

	var zones []musicplatform.Zone
	accountID := b.SYBAccountID
	if accountID == "" && s.Accounts != nil {
		matches := s.Accounts.Search(ctx, b.VenueName)
		if len(matches) > 0 {
			accountID = matches[0].Account.ID
		}
	}
	if accountID != "" && s.MusicPlatform != nil {
		zones, _ = s.MusicPlatform.Zones(ctx, accountID)
	}

	var sched brief.ScheduleData
	_ = json.Unmarshal(b.ScheduleData, &sched)

	zoneByName := make(map[string]musicplatform.Zone, len(zones))
	for _, z := range zones {
		zoneByName[z.Name] = z
	}

	choices := make([]ZoneChoice, 0, len(sched.Zones))
	for _, zs := range sched.Zones {
		c := ZoneChoice{ZoneKey: zs.ZoneName}
		if z, ok := zoneByName[zs.ZoneName]; ok {
			c.SYBZoneID = z.ID
		}
		if mapped, ok := existingByZone[zs.ZoneName]; ok {
			c.AlreadyMapped = mapped
		}
		choices = append(choices, c)
	}
	if len(choices) == 0 {
		// single-zone briefs with no explicit zone list still need one choice
		choices = append(choices, ZoneChoice{ZoneKey: "default"})
	}
	return choices, nil
}

// ApproveInput carries the operator's zone selections from the approval form.
type ApproveInput struct {
	Token      string
	Selections map[string]string // zoneKey -> SYB zone id
}

// Approve runs the two-phase commit: upsert zone mappings, materialize
// schedule entries (or bind a remote schedule when one was pre-built), mark
// the token used, and bump the venue's approved-brief counter, all inside
// one transaction. Per spec §9, any failure before Commit leaves the token
// redeemable and no schedule entries persisted.
func (s *Service) Approve(ctx context.Context, in ApproveInput) error {
	uow, err := s.UOWFactory.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	token, err := uow.GetApprovalToken(ctx, in.Token)
	if err != nil {
		return err
	}
	if token == nil || token.UsedAt != nil || !token.Valid(time.Now()) {
		return errs.NewValidation("approval.Approve", "token is not valid for approval", nil)
	}

	b, err := uow.GetBrief(ctx, token.BriefID)
	if err != nil {
		return err
	}

	for zoneKey, sybZoneID := range in.Selections {
		if sybZoneID == "" {
			continue
		}
		if err := uow.UpsertZoneMapping(ctx, domain.ZoneMapping{
			VenueName: b.VenueName,
			ZoneKey:   zoneKey,
			SYBZoneID: sybZoneID,
		}); err != nil {
			return err
		}
	}

	venue, err := uow.GetVenueByName(ctx, b.VenueName)
	if err != nil {
		return err
	}
	if venue == nil {
		venue = &domain.Venue{VenueName: b.VenueName, Timezone: "Asia/Bangkok"}
	}

	if b.SYBScheduleID != "" {
		// A remote schedule was already pre-built at submit time: bind it
		// directly to every mapped zone instead of materializing local entries.
		for _, sybZoneID := range in.Selections {
			if sybZoneID == "" {
				continue
			}
			if err := s.MusicPlatform.SoundZoneAssignSource(ctx, sybZoneID, b.SYBScheduleID); err != nil {
				return errs.NewExternal("approval.Approve", "musicplatform", "failed to bind pre-built schedule to zone", err)
			}
		}
		if err := uow.UpdateBriefStatus(ctx, b.ID, domain.BriefScheduled); err != nil {
			return err
		}
	} else {
		var sched brief.ScheduleData
		_ = json.Unmarshal(b.ScheduleData, &sched)

		entries := sched.MaterializeEntries(b.ID, venue.Timezone, in.Selections)
		for _, e := range entries {
			if _, err := uow.InsertScheduleEntry(ctx, &e); err != nil {
				return err
			}
		}
		if err := uow.UpdateBriefStatus(ctx, b.ID, domain.BriefApproved); err != nil {
			return err
		}
	}

	if err := uow.MarkTokenUsed(ctx, in.Token, time.Now().UTC().Format("2006-01-02 15:04:05")); err != nil {
		return err
	}
	if err := uow.IncrementApprovedBriefCount(ctx, b.VenueName); err != nil {
		return err
	}
	if err := uow.AppendAudit(ctx, domain.AuditEvent{VenueName: b.VenueName, BriefID: b.ID, Kind: "brief_approved"}); err != nil {
		return err
	}

	return uow.Commit()
}
