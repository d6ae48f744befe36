package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atelier-crm/atelier-crm/internal/auth"
	"github.com/atelier-crm/atelier-crm/internal/authz"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync re-runs the permission catalog synchronizer so new
	// deployments converge without a manual sync call.
	TaskCatalogSync = "authz:sync_catalog"
	// TaskSessionPurge trims expired session audit rows.
	TaskSessionPurge = "auth:purge_sessions"
)

// NewCatalogSyncTask constructs the catalog sync task. It carries no payload.
func NewCatalogSyncTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogSync, nil)
}

// NewSessionPurgeTask constructs the session purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil)
}

// HandleCatalogSync returns the handler for TaskCatalogSync.
func HandleCatalogSync(sync *authz.Synchronizer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := sync.Sync(ctx); err != nil {
			logger.Error("catalog sync job", slog.Any("error", err))
			return err
		}
		return nil
	}
}

// HandleSessionPurge returns the handler for TaskSessionPurge.
func HandleSessionPurge(svc *auth.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		purged, err := svc.PurgeExpiredSessions(ctx)
		if err != nil {
			logger.Error("session purge job", slog.Any("error", err))
			return err
		}
		if purged > 0 {
			logger.Info("purged expired sessions", slog.Int64("count", purged))
		}
		return nil
	}
}
