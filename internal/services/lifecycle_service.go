package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/disposition"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/metrics"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// StatusEvent is the payload published for every applied transition.
type StatusEvent struct {
	ReportID        uuid.UUID        `json:"report_id"`
	TrackingID      string           `json:"tracking_id"`
	SubmitterID     uuid.UUID        `json:"submitter_id"`
	From            lifecycle.Status `json:"from"`
	To              lifecycle.Status `json:"to"`
	ActorID         uuid.UUID        `json:"actor_id"`
	ResolvedAdminID *uuid.UUID       `json:"resolved_admin_id"`
	Note            string           `json:"note"`
	At              time.Time        `json:"at"`
}

// AmendInput is a partial update; nil fields are left unchanged.
type AmendInput struct {
	Title       *string
	Description *string
	Wilayah     *string
	Lokasi      *string
	Latitude    *float64
	Longitude   *float64
	CategoryID  *uuid.UUID
	// ClearCategory moves the report to "no category".
	ClearCategory bool
	// ClearCoordinates removes latitude and longitude.
	ClearCoordinates bool
}

type LifecycleService struct {
	db     *gorm.DB
	bucket time.Duration
	now    func() time.Time
}

func NewLifecycleService(db *gorm.DB, bucket time.Duration) *LifecycleService {
	return &LifecycleService{db: db, bucket: bucket, now: utcNow}
}

// Transition moves a report to a new status. The history entry, the status update
// and the outbox event commit together or not at all. A retry inside the same
// idempotency bucket returns the entry written by the first attempt.
func (s *LifecycleService) Transition(ctx context.Context, a actor.Actor, reportID uuid.UUID, to lifecycle.Status, note string) (*models.StatusChange, error) {
	change, replayed, err := s.transition(ctx, a, reportID, to, note)
	switch {
	case err != nil:
		metrics.RecordTransition(string(to), outcome(err))
	case replayed:
		metrics.RecordTransition(string(to), "replayed")
	default:
		metrics.RecordTransition(string(to), "applied")
	}
	return change, err
}

func (s *LifecycleService) transition(ctx context.Context, a actor.Actor, reportID uuid.UUID, to lifecycle.Status, note string) (*models.StatusChange, bool, error) {
	to, err := lifecycle.Parse(string(to))
	if err != nil {
		return nil, false, err
	}

	var change models.StatusChange
	replayed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := loadReport(tx, reportID, true)
		if err != nil {
			return err
		}
		resolved := disposition.Resolve(report.ResponsibleAdminID())
		if err := disposition.Authorize(a, resolved); err != nil {
			return err
		}

		var last models.StatusChange
		if err := tx.Where("report_id = ?", report.ID).Order("created_at DESC").First(&last).Error; err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		clock := s.now()
		now := lifecycle.NextTimestamp(last.CreatedAt, clock)
		key := lifecycle.IdempotencyKey(report.ID, to, clock, s.bucket)

		var existing models.StatusChange
		err = tx.Where("idempotency_key = ?", key).First(&existing).Error
		if err == nil {
			change = existing
			replayed = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check idempotency key: %w", err)
		}

		if err := lifecycle.CanTransition(report.Status, to); err != nil {
			return err
		}

		if strings.TrimSpace(note) == "" {
			note = lifecycle.DefaultNote(to, report.Wilayah)
		}
		change = models.StatusChange{
			ReportID:        report.ID,
			Status:          to,
			ActorID:         &a.ID,
			ResolvedAdminID: resolved.Ptr(),
			Note:            strings.TrimSpace(note),
			IdempotencyKey:  key,
			CreatedAt:       now,
		}
		if err := tx.Create(&change).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Wrap(apperr.ErrConflict, "transition %s already recorded", key)
			}
			return fmt.Errorf("failed to append history: %w", err)
		}

		if err := bumpVersion(tx, report, map[string]interface{}{"status": to, "updated_at": now}); err != nil {
			return err
		}

		payload, err := json.Marshal(StatusEvent{
			ReportID:        report.ID,
			TrackingID:      report.TrackingID,
			SubmitterID:     report.SubmitterID,
			From:            report.Status,
			To:              to,
			ActorID:         a.ID,
			ResolvedAdminID: change.ResolvedAdminID,
			Note:            change.Note,
			At:              now,
		})
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		event := models.ReportEvent{
			ReportID:       report.ID,
			Kind:           models.EventStatusChanged,
			Status:         to,
			IdempotencyKey: key,
			Payload:        datatypes.JSON(payload),
			CreatedAt:      now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to enqueue event: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidTransition) && !errors.Is(err, apperr.ErrUnauthorized) && !errors.Is(err, apperr.ErrNotFound) {
			slog.Error("transition failed", "report_id", reportID.String(), "actor_id", a.ID.String(), "action", "transition", "error", err.Error())
		}
		return nil, false, err
	}

	if !replayed {
		slog.Info("report transitioned", "report_id", reportID.String(), "actor_id", a.ID.String(), "status", string(to))
	}
	return &change, replayed, nil
}

// Amend edits report fields without touching its history.
func (s *LifecycleService) Amend(ctx context.Context, a actor.Actor, reportID uuid.UUID, in AmendInput) (*models.Report, error) {
	updates, err := amendUpdates(in)
	if err != nil {
		return nil, err
	}

	var report *models.Report
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err = loadReport(tx, reportID, true)
		if err != nil {
			return err
		}
		if err := disposition.Authorize(a, disposition.Resolve(report.ResponsibleAdminID())); err != nil {
			return err
		}
		if report.Status.IsTerminal() {
			return apperr.Wrap(apperr.ErrInvalidTransition, "report is already %s", report.Status)
		}
		if in.CategoryID != nil && !in.ClearCategory {
			if _, err := findCategory(tx, in.CategoryID); err != nil {
				return err
			}
		}
		if err := checkAmendedCoordinates(report, in); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = s.now()
		return bumpVersion(tx, report, updates)
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Category").First(report, "id = ?", reportID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload report: %w", err)
	}
	return report, nil
}

func amendUpdates(in AmendInput) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	fields := map[string]string{}

	text := func(column string, v *string, max int) {
		if v == nil {
			return
		}
		trimmed := strings.TrimSpace(*v)
		switch {
		case trimmed == "":
			fields[column] = "must not be empty"
		case max > 0 && len(trimmed) > max:
			fields[column] = fmt.Sprintf("must be at most %d characters", max)
		default:
			updates[column] = trimmed
		}
	}
	text("title", in.Title, 255)
	text("description", in.Description, 0)
	text("wilayah", in.Wilayah, 120)
	text("lokasi", in.Lokasi, 255)

	switch {
	case in.ClearCoordinates:
		updates["latitude"] = nil
		updates["longitude"] = nil
	case in.Latitude != nil || in.Longitude != nil:
		if in.Latitude != nil {
			updates["latitude"] = *in.Latitude
		}
		if in.Longitude != nil {
			updates["longitude"] = *in.Longitude
		}
	}

	switch {
	case in.ClearCategory:
		updates["category_id"] = nil
	case in.CategoryID != nil:
		updates["category_id"] = *in.CategoryID
	}

	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}
	return updates, nil
}

// checkAmendedCoordinates validates the coordinates the report would end up with.
func checkAmendedCoordinates(report *models.Report, in AmendInput) error {
	if in.ClearCoordinates {
		return nil
	}
	lat, lon := report.Latitude, report.Longitude
	if in.Latitude != nil {
		lat = in.Latitude
	}
	if in.Longitude != nil {
		lon = in.Longitude
	}
	if msg := coordinateError(lat, lon); msg != "" {
		return apperr.Invalid("coordinates", msg)
	}
	return nil
}
