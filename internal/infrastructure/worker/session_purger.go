package worker

import (
	"context"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

// SessionPurger drops revoked-token records once the token itself has expired
type SessionPurger struct {
	periodic

	sessions port.SessionRepository
	now      func() time.Time
}

// NewSessionPurger creates a new session purger running every interval
func NewSessionPurger(interval time.Duration, sessions port.SessionRepository, logger *zap.Logger) *SessionPurger {
	if interval <= 0 {
		interval = time.Hour
	}
	s := &SessionPurger{sessions: sessions, now: time.Now}
	s.periodic = periodic{
		name:       "SessionPurger",
		interval:   interval,
		runOnStart: true,
		logger:     logger,
	}
	s.periodic.task = s.purge
	return s
}

func (s *SessionPurger) purge(ctx context.Context) error {
	n, err := s.sessions.PurgeExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("Purged expired session revocations", zap.Int64("count", n))
	}
	return nil
}
