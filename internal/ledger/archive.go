package ledger

import (
	"context"
	"fmt"

	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// EventsOnDay returns the events whose timestamp falls on day (YYYY-MM-DD)
// in the ledger's location, newest first.
func (l *Ledger) EventsOnDay(day string) []model.EarningEvent {
	return l.filter(func(ev *model.EarningEvent) bool {
		return model.CalendarDay(ev.Timestamp, l.loc) == day
	})
}

// ArchiveDay copies one calendar day of the log to the archiver and returns
// the object key. The log itself is never truncated.
func (l *Ledger) ArchiveDay(ctx context.Context, day string) (string, error) {
	if l.archiver == nil {
		return "", ErrArchiveDisabled
	}
	events := l.EventsOnDay(day)
	key, err := l.archiver.ArchiveSegment(ctx, day, events)
	metrics.RecordArchive(err)
	if err != nil {
		l.logger.Error(ctx, "archive failed", logger.String("day", day), logger.Error(err))
		return "", fmt.Errorf("archive %s: %w", day, err)
	}
	l.logger.Info(ctx, "day archived",
		logger.String("day", day),
		logger.String("key", key),
		logger.Int("events", len(events)),
	)
	return key, nil
}
