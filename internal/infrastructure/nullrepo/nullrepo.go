// Package nullrepo backs the degraded mode spec §6.1 and §7 call out
// explicitly: when DATABASE_URL is unset, "the DB layer is skipped and
// submission is email-only". Rather than threading nil-checks through
// approval.Service and the executor, this package satisfies domain.Repository
// and domain.UnitOfWorkFactory with no-ops, so the rest of the pipeline runs
// unmodified and simply never accumulates durable state.
package nullrepo

import (
	"context"

	"github.com/brightears/bmasia-music-brief/internal/domain"
)

// Repo is a domain.Repository that reads nothing and discards every write.
// Writes report success (per spec: skip persistence, don't fail the caller)
// and lookups report "not found" rather than erroring.
type Repo struct{}

var (
	_ domain.Repository        = Repo{}
	_ domain.UnitOfWorkFactory = Repo{}
)

func (Repo) InsertBrief(context.Context, *domain.Brief) (int64, error) { return 0, nil }
func (Repo) GetBrief(context.Context, int64) (*domain.Brief, error)    { return nil, nil }
func (Repo) UpdateBriefStatus(context.Context, int64, domain.BriefStatus) error { return nil }
func (Repo) UpdateBriefSYBSchedule(context.Context, int64, string) error        { return nil }

func (Repo) GetVenueByName(context.Context, string) (*domain.Venue, error) { return nil, nil }
func (Repo) UpsertVenue(context.Context, *domain.Venue) error              { return nil }
func (Repo) IncrementApprovedBriefCount(context.Context, string) error     { return nil }

func (Repo) GetZoneMappings(context.Context, string) ([]domain.ZoneMapping, error) { return nil, nil }
func (Repo) UpsertZoneMapping(context.Context, domain.ZoneMapping) error            { return nil }

func (Repo) InsertScheduleEntry(context.Context, *domain.ScheduleEntry) (int64, error) {
	return 0, nil
}
func (Repo) DueEntries(context.Context, string) ([]domain.ScheduleEntry, error)     { return nil, nil }
func (Repo) OverdueEntries(context.Context, string) ([]domain.ScheduleEntry, error) { return nil, nil }
func (Repo) MarkAssigned(context.Context, int64, string) error                      { return nil }
func (Repo) MarkRetry(context.Context, int64, int, domain.EntryStatus) error        { return nil }
func (Repo) ActiveEntryCount(context.Context) (int, error)                          { return 0, nil }

func (Repo) InsertApprovalToken(context.Context, *domain.ApprovalToken) error { return nil }
func (Repo) GetApprovalToken(context.Context, string) (*domain.ApprovalToken, error) {
	return nil, nil
}
func (Repo) MarkTokenUsed(context.Context, string, string) error { return nil }

func (Repo) InsertFollowUp(context.Context, *domain.FollowUp) error { return nil }
func (Repo) DueFollowUps(context.Context, string, int) ([]domain.FollowUp, error) {
	return nil, nil
}
func (Repo) MarkFollowUpSent(context.Context, int64, string) error        { return nil }
func (Repo) MarkFollowUpOpened(context.Context, string, string) error     { return nil }

func (Repo) AppendAudit(context.Context, domain.AuditEvent) error { return nil }

// uow wraps Repo so Begin can hand back a no-op transaction boundary: Commit
// and Rollback both succeed trivially, since there is never anything to undo.
type uow struct{ Repo }

func (uow) Commit() error   { return nil }
func (uow) Rollback() error { return nil }

func (Repo) Begin(context.Context) (domain.UnitOfWork, error) { return uow{}, nil }
