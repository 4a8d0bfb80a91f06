package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tops/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that audit the machine through logger.
// Selections are logged at debug level, transitions at info and rejections at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSelect: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_select", "session_id", e.SessionID, "state", e.State)
		},
		OnDeselect: func(ctx context.Context, e *domain.StateEvent) {
			logger.DebugContext(ctx, "state_deselect", "session_id", e.SessionID, "state", e.State)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"session_id", e.SessionID,
				"request", e.Request,
				"from", e.From,
				"to", e.To,
			)
		},
		OnError: func(ctx context.Context, e *domain.ErrorEvent) {
			logger.WarnContext(ctx, "config_error",
				"session_id", e.SessionID,
				"request", e.Request,
				"err", e.Err,
			)
		},
	}
}
