package guard

import (
	"context"
	"time"

	"github.com/dmitrijs2005/privgate/internal/logging"
)

// AuditEvent records one denied authorization attempt.
type AuditEvent struct {
	ID          string
	PrincipalID int64
	DisplayName string
	Command     string
	Time        time.Time
}

// Auditor receives denial events.
type Auditor interface {
	Denied(ctx context.Context, ev AuditEvent)
}

// LogAuditor writes denial events to the structured log.
type LogAuditor struct {
	logger logging.Logger
}

func NewLogAuditor(l logging.Logger) *LogAuditor {
	return &LogAuditor{logger: l.With("module", "audit")}
}

func (a *LogAuditor) Denied(ctx context.Context, ev AuditEvent) {
	a.logger.Warn(ctx, "unauthorized access denied",
		"event_id", ev.ID,
		"principal_id", ev.PrincipalID,
		"display_name", ev.DisplayName,
		"command", ev.Command,
	)
}
