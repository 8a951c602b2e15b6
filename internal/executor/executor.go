// Package executor runs the per-minute schedule assignment tick and the
// keepalive arbiter described in spec §4.9, following the teacher's
// single-ticker background-loop idiom (pkg/config's Watcher) but driven by
// github.com/robfig/cron/v3 since this domain needs two independent
// cadences (tick and keepalive) sharing one scheduler.
package executor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brightears/bmasia-music-brief/internal/adapters/mailer"
	"github.com/brightears/bmasia-music-brief/internal/adapters/musicplatform"
	"github.com/brightears/bmasia-music-brief/internal/domain"
	"github.com/brightears/bmasia-music-brief/pkg/metrics"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// Executor owns the cron-scheduled tick and keepalive jobs. Ticks never
// overlap: every job is wrapped in cron.SkipIfStillRunning, so an invocation
// that comes due while the previous run of the same job is still going is
// skipped.
type Executor struct {
	Repo          domain.Repository
	MusicPlatform *musicplatform.Client
	Mailer        *mailer.Mailer
	BaseURL       string
	HTTPClient    *http.Client

	cron *cron.Cron

	mu            sync.Mutex
	keepaliveOn   bool
	keepaliveStop context.CancelFunc

	assignedOK   *metrics.Counter
	assignedErr  *metrics.Counter
	followUpsOK  *metrics.Counter
	tickDuration *metrics.Histogram
}

// New constructs an Executor whose HTTPClient, used for the keepalive
// self-ping, is a default client with a 10s timeout.
func New(repo domain.Repository, mp *musicplatform.Client, m *mailer.Mailer, baseURL string) *Executor {
	return &Executor{
		Repo:          repo,
		MusicPlatform: mp,
		Mailer:        m,
		BaseURL:       baseURL,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		cron:          cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		assignedOK:    metrics.Default.Counter("executor_assignments_succeeded", "schedule assignments that succeeded"),
		assignedErr:   metrics.Default.Counter("executor_assignments_failed", "schedule assignments that failed"),
		followUpsOK:   metrics.Default.Counter("executor_followups_dispatched", "follow-up emails attempted"),
		tickDuration:  metrics.Default.Histogram("executor_tick_seconds", "executor tick wall time", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}),
	}
}

// Start registers the per-minute tick and the 5-minute keepalive check and
// begins running them in the background.
func (e *Executor) Start() error {
	if _, err := e.cron.AddFunc("* * * * *", e.tick); err != nil {
		return fmt.Errorf("executor: failed to schedule tick: %w", err)
	}
	if _, err := e.cron.AddFunc("*/5 * * * *", e.keepaliveCheck); err != nil {
		return fmt.Errorf("executor: failed to schedule keepalive check: %w", err)
	}
	e.cron.Start()
	return nil
}

// Stop halts the scheduler and any running keepalive pinger.
func (e *Executor) Stop() {
	<-e.cron.Stop().Done()
	e.mu.Lock()
	if e.keepaliveStop != nil {
		e.keepaliveStop()
		e.keepaliveStop = nil
	}
	e.mu.Unlock()
}

// tick runs one full executor pass: due-now assignment, cold-start catch-up,
// then follow-up dispatch, per spec §4.9 steps 1-4.
func (e *Executor) tick() {
	timer := e.tickDuration.Start()
	defer timer.Observe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	if err := e.assignDueNow(ctx); err != nil {
		log.Printf("executor: due-now pass failed: %v", err)
	}
	if err := e.catchUp(ctx); err != nil {
		log.Printf("executor: catch-up pass failed: %v", err)
	}
	if err := e.dispatchFollowUps(ctx); err != nil {
		log.Printf("executor: follow-up dispatch failed: %v", err)
	}
}

func daysAdmit(days domain.EntryDays, wd time.Weekday) bool {
	switch days {
	case domain.DaysWeekday:
		return wd >= time.Monday && wd <= time.Friday
	case domain.DaysWeekend:
		return wd == time.Saturday || wd == time.Sunday
	default: // daily, or unrecognized: fail open rather than silently stop playing
		return true
	}
}

func entryLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseHHMM parses a "HH:MM" wall-clock string; an unparseable value yields
// an error so the caller can skip the entry rather than mis-fire at midnight.
func parseHHMM(s string) (hour, minute int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("executor: out-of-range time %q", s)
	}
	return hour, minute, nil
}

func sameLocalDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// isDueNow implements spec §4.9 step 1: the entry's local start_time falls
// within one minute of localNow, today's weekday is admitted, and the entry
// was not already assigned earlier today.
func isDueNow(e domain.ScheduleEntry, now time.Time) bool {
	loc := entryLocation(e.Timezone)
	local := now.In(loc)
	if !daysAdmit(e.Days, local.Weekday()) {
		return false
	}
	h, m, err := parseHHMM(e.StartTime)
	if err != nil {
		return false
	}
	startToday := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
	diff := local.Sub(startToday)
	if diff < -time.Minute || diff > time.Minute {
		return false
	}
	if e.LastAssignedAt != nil && sameLocalDate(e.LastAssignedAt.In(loc), local) {
		return false
	}
	return true
}

// isOverdue implements the catch-up population in spec §4.9 step 3: active,
// admitted today, whose start_time already passed locally today, and not yet
// assigned today.
func isOverdue(e domain.ScheduleEntry, now time.Time) bool {
	loc := entryLocation(e.Timezone)
	local := now.In(loc)
	if !daysAdmit(e.Days, local.Weekday()) {
		return false
	}
	h, m, err := parseHHMM(e.StartTime)
	if err != nil {
		return false
	}
	startToday := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
	if !local.After(startToday) {
		return false
	}
	if e.LastAssignedAt != nil && sameLocalDate(e.LastAssignedAt.In(loc), local) {
		return false
	}
	return true
}

func (e *Executor) assignDueNow(ctx context.Context) error {
	entries, err := e.Repo.DueEntries(ctx, time.Now().UTC().Format(dbTimeLayout))
	if err != nil {
		return err
	}
	now := time.Now()
	for _, entry := range entries {
		if !isDueNow(entry, now) {
			continue
		}
		e.assign(ctx, entry)
	}
	return nil
}

// catchUp collapses the overdue population by zone, keeping only the entry
// with the latest start_time per zone_id — the one that should currently be
// playing — and assigns that one, per spec §4.9 step 3.
func (e *Executor) catchUp(ctx context.Context) error {
	entries, err := e.Repo.OverdueEntries(ctx, time.Now().UTC().Format(dbTimeLayout))
	if err != nil {
		return err
	}
	now := time.Now()

	var overdue []domain.ScheduleEntry
	for _, entry := range entries {
		if isOverdue(entry, now) {
			overdue = append(overdue, entry)
		}
	}
	sort.Slice(overdue, func(i, j int) bool { return overdue[i].StartTime < overdue[j].StartTime })

	latestByZone := make(map[string]domain.ScheduleEntry, len(overdue))
	for _, entry := range overdue {
		latestByZone[entry.ZoneID] = entry // later in sorted order overwrites earlier start_time
	}
	for _, entry := range latestByZone {
		e.assign(ctx, entry)
	}
	return nil
}

// assign calls the music platform to bind a zone to a playlist and updates
// the entry's retry bookkeeping per spec §4.9 step 2 / §5's retry discipline.
func (e *Executor) assign(ctx context.Context, entry domain.ScheduleEntry) {
	err := e.MusicPlatform.SoundZoneAssignSource(ctx, entry.ZoneID, entry.PlaylistSYBID)
	nowUTC := time.Now().UTC().Format(dbTimeLayout)

	if err == nil {
		if mErr := e.Repo.MarkAssigned(ctx, entry.ID, nowUTC); mErr != nil {
			log.Printf("executor: failed to mark entry %d assigned: %v", entry.ID, mErr)
		}
		e.assignedOK.Inc(1)
		return
	}

	retryCount := entry.RetryCount + 1
	status := domain.EntryActive
	if retryCount >= 3 {
		status = domain.EntryError
	}
	if mErr := e.Repo.MarkRetry(ctx, entry.ID, retryCount, status); mErr != nil {
		log.Printf("executor: failed to mark entry %d retry: %v", entry.ID, mErr)
	}
	e.assignedErr.Inc(1)
	log.Printf("executor: assignment failed for entry %d (zone %s): %v", entry.ID, entry.ZoneID, err)
}

// dispatchFollowUps sends up to five due follow-up emails per tick, per
// spec §4.9 step 4. sent_at is set regardless of outcome — a bounced address
// does not get retried indefinitely.
func (e *Executor) dispatchFollowUps(ctx context.Context) error {
	due, err := e.Repo.DueFollowUps(ctx, time.Now().UTC().Format(dbTimeLayout), 5)
	if err != nil {
		return err
	}
	for _, f := range due {
		nowUTC := time.Now().UTC().Format(dbTimeLayout)

		b, err := e.Repo.GetBrief(ctx, f.BriefID)
		if err != nil || b == nil || b.ContactEmail == "" {
			if mErr := e.Repo.MarkFollowUpSent(ctx, f.ID, nowUTC); mErr != nil {
				log.Printf("executor: failed to mark follow-up %d sent: %v", f.ID, mErr)
			}
			continue
		}

		subject, body := followUpContent(f, b, e.BaseURL)
		if e.Mailer != nil {
			if sErr := e.Mailer.SendTo(ctx, b.ContactEmail, subject, body); sErr != nil {
				log.Printf("executor: follow-up email failed for brief %d: %v", f.BriefID, sErr)
			}
		}
		e.followUpsOK.Inc(1)
		if mErr := e.Repo.MarkFollowUpSent(ctx, f.ID, nowUTC); mErr != nil {
			log.Printf("executor: failed to mark follow-up %d sent: %v", f.ID, mErr)
		}
	}
	return nil
}

func followUpContent(f domain.FollowUp, b *domain.Brief, baseURL string) (subject, body string) {
	pixel := fmt.Sprintf(`<img src="%s/follow-up/track/%s" width="1" height="1" alt="" style="display:none" />`, baseURL, f.TrackingID)
	switch f.Type {
	case domain.FollowUp7Day:
		subject = fmt.Sprintf("How's the music at %s?", b.VenueName)
		body = fmt.Sprintf("<p>Hi %s,</p><p>It's been a week since we set up your music at %s — how is it sounding so far? Reply any time with feedback or changes.</p>%s", b.ContactName, b.VenueName, pixel)
	case domain.FollowUp30Day:
		subject = fmt.Sprintf("Time to refresh the playlists at %s?", b.VenueName)
		body = fmt.Sprintf("<p>Hi %s,</p><p>It's been a month since your music brief for %s. Let us know if you'd like to refresh the playlist selection or adjust the schedule.</p>%s", b.ContactName, b.VenueName, pixel)
	default:
		subject = fmt.Sprintf("Checking in on %s", b.VenueName)
		body = fmt.Sprintf("<p>Hi %s,</p><p>Just checking in on the music at %s.</p>%s", b.ContactName, b.VenueName, pixel)
	}
	return subject, body
}

// keepaliveCheck implements spec §4.9 step 5: start a self-ping loop while
// any schedule entry is active, stop it once none are.
func (e *Executor) keepaliveCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := e.Repo.ActiveEntryCount(ctx)
	if err != nil {
		log.Printf("executor: keepalive active-count check failed: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case n > 0 && !e.keepaliveOn:
		pingCtx, pingCancel := context.WithCancel(context.Background())
		e.keepaliveStop = pingCancel
		e.keepaliveOn = true
		go e.runKeepalivePinger(pingCtx)
	case n == 0 && e.keepaliveOn:
		if e.keepaliveStop != nil {
			e.keepaliveStop()
		}
		e.keepaliveOn = false
	}
}

// runKeepalivePinger issues a self-GET to /health every 10 minutes until
// ctx is cancelled, keeping the process warm on hosts that sleep idle
// processes. Purpose and cadence per spec §4.9 step 5.
func (e *Executor) runKeepalivePinger(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/health", nil)
			if err != nil {
				continue
			}
			resp, err := e.HTTPClient.Do(req)
			if err != nil {
				log.Printf("executor: keepalive self-ping failed: %v", err)
				continue
			}
			resp.Body.Close()
		}
	}
}
