package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/database/dbtest"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

type recordingPublisher struct {
	payloads []string
	failOn   int
}

func (p *recordingPublisher) Publish(_ context.Context, payload []byte) error {
	if p.failOn > 0 && len(p.payloads)+1 == p.failOn {
		return errors.New("sink unavailable")
	}
	p.payloads = append(p.payloads, string(payload))
	return nil
}

func TestDispatchOncePublishesInOrder(t *testing.T) {
	db := dbtest.New(t)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	reportID := uuid.New()
	for i, st := range []lifecycle.Status{lifecycle.StatusProcessing, lifecycle.StatusDone} {
		ev := models.ReportEvent{
			ReportID:       reportID,
			Kind:           models.EventStatusChanged,
			Status:         st,
			IdempotencyKey: lifecycle.IdempotencyKey(reportID, st, base, time.Minute),
			Payload:        datatypes.JSON(`{"to":"` + string(st) + `"}`),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&ev).Error; err != nil {
			t.Fatal(err)
		}
	}

	pub := &recordingPublisher{}
	d := NewDispatcher(db, pub, time.Second)

	sent, err := d.DispatchOnce(context.Background())
	if err != nil || sent != 2 {
		t.Fatalf("DispatchOnce() = %d, %v; want 2, nil", sent, err)
	}
	if pub.payloads[0] != `{"to":"Diproses"}` || pub.payloads[1] != `{"to":"Selesai"}` {
		t.Errorf("payloads out of order: %v", pub.payloads)
	}

	sent, err = d.DispatchOnce(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("second DispatchOnce() = %d, %v; want nothing left", sent, err)
	}
	if len(pub.payloads) != 2 {
		t.Errorf("events published twice: %v", pub.payloads)
	}
}

func TestDispatchOnceStopsAtFailure(t *testing.T) {
	db := dbtest.New(t)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		ev := models.ReportEvent{
			ReportID:       id,
			Kind:           models.EventStatusChanged,
			Status:         lifecycle.StatusProcessing,
			IdempotencyKey: lifecycle.IdempotencyKey(id, lifecycle.StatusProcessing, base, time.Minute),
			Payload:        datatypes.JSON(`{}`),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&ev).Error; err != nil {
			t.Fatal(err)
		}
	}

	pub := &recordingPublisher{failOn: 2}
	d := NewDispatcher(db, pub, time.Second)
	sent, err := d.DispatchOnce(context.Background())
	if err == nil || sent != 1 {
		t.Fatalf("DispatchOnce() = %d, %v; want 1 and an error", sent, err)
	}

	var pending []models.ReportEvent
	db.Where("published_at IS NULL").Order("created_at ASC").Find(&pending)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Attempts != 1 {
		t.Errorf("failed event attempts = %d, want 1", pending[0].Attempts)
	}

	pub.failOn = 0
	if sent, err := d.DispatchOnce(context.Background()); err != nil || sent != 2 {
		t.Fatalf("retry DispatchOnce() = %d, %v; want 2, nil", sent, err)
	}
}

// sabotagingPublisher drops the outbox table before failing, so the attempt
// counter cannot be written afterwards.
type sabotagingPublisher struct {
	db *gorm.DB
}

func (p *sabotagingPublisher) Publish(_ context.Context, _ []byte) error {
	if err := p.db.Migrator().DropTable(&models.ReportEvent{}); err != nil {
		return err
	}
	return errors.New("sink unavailable")
}

func TestDispatchOnceLogsFailedAttemptUpdate(t *testing.T) {
	db := dbtest.New(t)
	id := uuid.New()
	ev := models.ReportEvent{
		ReportID:       id,
		Kind:           models.EventStatusChanged,
		Status:         lifecycle.StatusDone,
		IdempotencyKey: lifecycle.IdempotencyKey(id, lifecycle.StatusDone, time.Now(), time.Minute),
		Payload:        datatypes.JSON(`{}`),
	}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	sent, err := NewDispatcher(db, &sabotagingPublisher{db: db}, time.Second).DispatchOnce(context.Background())
	if err == nil || sent != 0 {
		t.Fatalf("DispatchOnce() = %d, %v; want 0 and an error", sent, err)
	}
	if !strings.Contains(buf.String(), "failed to record publish attempt") {
		t.Errorf("attempt update failure was not logged; log = %s", buf.String())
	}
}
