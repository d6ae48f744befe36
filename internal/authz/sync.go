package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Synchronizer reconciles the compiled-in catalog into storage. Safe to run
// on every deployment and startup: permission metadata is always overwritten
// from the catalog, default grants are seeded only for roles that have no
// grants at all, so administrator customization is never touched.
type Synchronizer struct {
	store  SyncStore
	logger *slog.Logger
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(store SyncStore, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: store, logger: logger}
}

// Sync runs the reconciliation in a single transaction. Any persistence
// failure aborts and leaves the store at its pre-sync state.
func (s *Synchronizer) Sync(ctx context.Context) error {
	err := s.store.SyncTx(ctx, func(ops SyncOps) error {
		ids := make(map[string]uuid.UUID, len(catalog))
		for _, entry := range Catalog() {
			id, err := ops.UpsertPermission(ctx, entry)
			if err != nil {
				return err
			}
			ids[entry.Code] = id
		}
		for _, role := range Roles() {
			defaults := DefaultGrants(role)
			if len(defaults) == 0 {
				continue
			}
			has, err := ops.HasAnyGrants(ctx, role)
			if err != nil {
				return err
			}
			if has {
				continue
			}
			for _, code := range defaults {
				id, ok := ids[code]
				if !ok {
					// Default references a code absent from the catalog;
					// skip rather than abort.
					continue
				}
				if err := ops.InsertGrant(ctx, role, id); err != nil {
					return err
				}
			}
			if s.logger != nil {
				s.logger.Info("seeded default grants", slog.String("role", string(role)), slog.Int("count", len(defaults)))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("authz: sync: %w", err)
	}
	return nil
}
