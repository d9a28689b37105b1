package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/metrics"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

const batchSize = 100

// Dispatcher publishes unpublished outbox rows in creation order. Delivery is at
// least once: an event is marked published only after the sink accepted it.
type Dispatcher struct {
	db        *gorm.DB
	publisher Publisher
	interval  time.Duration
	now       func() time.Time
}

func NewDispatcher(db *gorm.DB, publisher Publisher, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		db:        db,
		publisher: publisher,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil {
				slog.Error("event dispatch failed", "action", "dispatch", "error", err.Error())
			}
		case <-ctx.Done():
			return
		}
	}
}

// DispatchOnce publishes one batch and returns how many events were delivered.
// It stops at the first failing event so ordering per report is preserved.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	var events []models.ReportEvent
	err := d.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(batchSize).
		Find(&events).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}

	sent := 0
	for _, ev := range events {
		if err := d.publisher.Publish(ctx, ev.Payload); err != nil {
			metrics.RecordPublish(false)
			if uerr := d.db.WithContext(ctx).Model(&models.ReportEvent{}).
				Where("id = ?", ev.ID).
				UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; uerr != nil {
				slog.Error("failed to record publish attempt", "action", "dispatch", "event_id", ev.ID.String(), "error", uerr.Error())
			}
			return sent, fmt.Errorf("failed to publish event %s: %w", ev.ID, err)
		}
		metrics.RecordPublish(true)

		if err := d.db.WithContext(ctx).Model(&models.ReportEvent{}).
			Where("id = ?", ev.ID).
			Updates(map[string]interface{}{
				"published_at": d.now(),
				"attempts":     gorm.Expr("attempts + 1"),
			}).Error; err != nil {
			return sent, fmt.Errorf("failed to mark event %s published: %w", ev.ID, err)
		}
		sent++
	}
	return sent, nil
}
