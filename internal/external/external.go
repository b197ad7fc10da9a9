package external

import (
	"context"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/logger"
)

// Collaborator interfaces implemented outside this system. The defaults below
// only log; real deployments inject implementations backed by the auth,
// notification and audit services.

// PermissionChecker evaluates fine-grained permissions for an actor
type PermissionChecker interface {
	CheckPermission(ctx context.Context, actorID int64, role domain.UserRole, permissionKey string, entityID string) (bool, error)
}

// Notifier delivers localized push notifications. Failures never affect the
// outcome of the operation that triggered them.
type Notifier interface {
	SendNotification(ctx context.Context, targetUserID int64, notifType, titleKey, messageKey string, params map[string]string, payload map[string]string)
}

// ActivityLogger records audit events
type ActivityLogger interface {
	LogActivity(ctx context.Context, actionType string, details map[string]string, actorID int64)
}

type allowAllChecker struct{}

// NewAllowAllChecker returns a checker that grants everything. Permission
// evaluation lives in the external authorization service; this default is for
// deployments where that service fronts the API and has already decided.
func NewAllowAllChecker() PermissionChecker {
	return allowAllChecker{}
}

func (allowAllChecker) CheckPermission(ctx context.Context, actorID int64, role domain.UserRole, permissionKey string, entityID string) (bool, error) {
	return true, nil
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier that only logs the would-be notification
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) SendNotification(ctx context.Context, targetUserID int64, notifType, titleKey, messageKey string, params map[string]string, payload map[string]string) {
	logger.InfoContext(ctx, "Notification dispatched",
		"target_user_id", targetUserID, "type", notifType, "title_key", titleKey, "message_key", messageKey)
}

type logActivityLogger struct{}

// NewLogActivityLogger returns an ActivityLogger that only logs
func NewLogActivityLogger() ActivityLogger {
	return logActivityLogger{}
}

func (logActivityLogger) LogActivity(ctx context.Context, actionType string, details map[string]string, actorID int64) {
	logger.InfoContext(ctx, "Activity recorded", "action_type", actionType, "actor_id", actorID)
}
