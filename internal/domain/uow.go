package domain

import "context"

// UnitOfWork is a single SQL transaction boundary exposing the same
// repository methods used outside a transaction. The approval POST handler
// uses one to make mapping upserts, schedule-entry materialization,
// token-consume, and the venue counter bump atomic: per spec §9, on any
// failure the token must remain redeemable and no half-state should persist.
//
// Usage:
//
//	uow, err := factory.Begin(ctx)
//	if err != nil { return err }
//	defer uow.Rollback()
//	... uow.UpsertZoneMapping(...), uow.InsertScheduleEntry(...), uow.MarkTokenUsed(...) ...
//	return uow.Commit()
type UnitOfWork interface {
	Commit() error
	Rollback() error

	ZoneMappingRepository
	ScheduleEntryRepository
	ApprovalTokenRepository
	BriefRepository
	VenueRepository
	AuditRepository
}

// UnitOfWorkFactory begins a new UnitOfWork bound to ctx.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
