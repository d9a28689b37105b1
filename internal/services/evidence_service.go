package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/disposition"
	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
	"github.com/pengaduan/pengaduan-backend/internal/metrics"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// FileRef points at a blob that has already been stored.
type FileRef struct {
	Path        string
	ContentType string
	Size        int64
}

type EvidenceStats struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	SoftDeleted int64 `json:"soft_deleted"`
	Purged      int64 `json:"purged"`
}

type EvidenceService struct {
	db       *gorm.DB
	blobs    BlobStore
	maxFiles int
	now      func() time.Time
}

func NewEvidenceService(db *gorm.DB, blobs BlobStore, maxFiles int) *EvidenceService {
	return &EvidenceService{db: db, blobs: blobs, maxFiles: maxFiles, now: utcNow}
}

// Attach adds Active evidence to a report. Passing the id of an earlier attempt
// returns that evidence instead of attaching twice.
func (s *EvidenceService) Attach(ctx context.Context, a actor.Actor, reportID uuid.UUID, ref FileRef, evidenceID *uuid.UUID) (*models.Evidence, error) {
	kind, ok := evidence.KindFromMIME(ref.ContentType)
	if !ok {
		return nil, apperr.Invalid("evidence", "only images and PDF files are accepted")
	}
	if ref.Path == "" {
		return nil, apperr.Invalid("evidence", "file reference is required")
	}

	var ev models.Evidence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := loadReport(tx, reportID, true)
		if err != nil {
			return err
		}
		if report.SubmitterID != a.ID {
			if err := disposition.Authorize(a, disposition.Resolve(report.ResponsibleAdminID())); err != nil {
				return err
			}
		}

		if evidenceID != nil && *evidenceID != uuid.Nil {
			err := tx.Unscoped().First(&ev, "id = ?", *evidenceID).Error
			if err == nil {
				if ev.ReportID != reportID {
					return apperr.Wrap(apperr.ErrConflict, "evidence %s belongs to another report", ev.ID)
				}
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load evidence: %w", err)
			}
			var purged int64
			if err := tx.Model(&models.EvidenceTombstone{}).Where("id = ?", *evidenceID).Count(&purged).Error; err != nil {
				return fmt.Errorf("failed to check tombstone: %w", err)
			}
			if purged > 0 {
				return apperr.Wrap(apperr.ErrInvalidState, "evidence %s was permanently deleted", *evidenceID)
			}
		}

		if report.Status.IsTerminal() {
			return apperr.Wrap(apperr.ErrInvalidTransition, "report is already %s", report.Status)
		}

		var count int64
		if err := tx.Unscoped().Model(&models.Evidence{}).Where("report_id = ?", reportID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count evidence: %w", err)
		}
		if count >= int64(s.maxFiles) {
			return apperr.Wrap(apperr.ErrLimitExceeded, "a report holds at most %d attachments", s.maxFiles)
		}

		now := s.now()
		ev = models.Evidence{
			ReportID:   reportID,
			PhotoURL:   ref.Path,
			MediaKind:  kind,
			SizeBytes:  ref.Size,
			State:      evidence.StateActive,
			UploadedBy: a.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if evidenceID != nil {
			ev.ID = *evidenceID
		}
		if err := tx.Create(&ev).Error; err != nil {
			return fmt.Errorf("failed to attach evidence: %w", err)
		}
		return nil
	})
	metrics.RecordEvidenceAction("attach", outcome(err))
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *EvidenceService) SoftDelete(ctx context.Context, a actor.Actor, evidenceID uuid.UUID) (*models.Evidence, error) {
	return s.apply(ctx, a, evidenceID, evidence.ActionSoftDelete)
}

func (s *EvidenceService) Restore(ctx context.Context, a actor.Actor, evidenceID uuid.UUID) (*models.Evidence, error) {
	return s.apply(ctx, a, evidenceID, evidence.ActionRestore)
}

// PermanentlyDelete removes soft-deleted evidence for good. The returned value
// describes the evidence as it was just before removal, in its final state.
func (s *EvidenceService) PermanentlyDelete(ctx context.Context, a actor.Actor, evidenceID uuid.UUID) (*models.Evidence, error) {
	return s.apply(ctx, a, evidenceID, evidence.ActionPurge)
}

func (s *EvidenceService) apply(ctx context.Context, a actor.Actor, evidenceID uuid.UUID, action evidence.Action) (*models.Evidence, error) {
	var ev models.Evidence
	var purgedRef string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, reportID, err := s.currentState(tx, evidenceID, &ev)
		if err != nil {
			return err
		}

		report, err := loadReport(tx, reportID, false)
		if err != nil {
			return err
		}
		if err := disposition.Authorize(a, disposition.Resolve(report.ResponsibleAdminID())); err != nil {
			return err
		}

		out, err := evidence.Apply(current, action)
		if err != nil {
			return err
		}
		if out.Replay {
			return nil
		}

		now := s.now()
		switch out.Next {
		case evidence.StateSoftDeleted:
			ev.State = evidence.StateSoftDeleted
			ev.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
		case evidence.StateActive:
			ev.State = evidence.StateActive
			ev.DeletedAt = gorm.DeletedAt{}
		case evidence.StatePermanentlyDeleted:
			tomb := models.EvidenceTombstone{ID: ev.ID, ReportID: ev.ReportID, PurgedBy: a.ID, PurgedAt: now}
			if err := tx.Create(&tomb).Error; err != nil {
				return fmt.Errorf("failed to write tombstone: %w", err)
			}
			if err := tx.Unscoped().Delete(&models.Evidence{}, "id = ?", ev.ID).Error; err != nil {
				return fmt.Errorf("failed to purge evidence: %w", err)
			}
			purgedRef = ev.PhotoURL
			ev.State = evidence.StatePermanentlyDeleted
			return nil
		}

		ev.UpdatedAt = now
		return tx.Unscoped().Model(&models.Evidence{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
			"state":      ev.State,
			"deleted_at": ev.DeletedAt,
			"updated_at": now,
		}).Error
	})
	metrics.RecordEvidenceAction(string(action), outcome(err))
	if err != nil {
		return nil, err
	}

	if purgedRef != "" {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), purgedRef); err != nil {
			slog.Error("failed to delete purged blob", "action", "evidence_purge", "evidence_id", evidenceID.String(), "error", err.Error())
		}
	}
	return &ev, nil
}

// currentState reads the evidence row, falling back to its tombstone. A purged
// item reports StatePermanentlyDeleted so the guards can reject it as invalid.
func (s *EvidenceService) currentState(tx *gorm.DB, id uuid.UUID, ev *models.Evidence) (evidence.State, uuid.UUID, error) {
	err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).First(ev, "id = ?", id).Error
	if err == nil {
		return ev.State, ev.ReportID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", uuid.Nil, fmt.Errorf("failed to load evidence: %w", err)
	}

	var tomb models.EvidenceTombstone
	if err := tx.First(&tomb, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", uuid.Nil, apperr.Wrap(apperr.ErrNotFound, "evidence %s", id)
		}
		return "", uuid.Nil, fmt.Errorf("failed to load tombstone: %w", err)
	}
	*ev = models.Evidence{ID: tomb.ID, ReportID: tomb.ReportID, State: evidence.StatePermanentlyDeleted}
	return evidence.StatePermanentlyDeleted, tomb.ReportID, nil
}

// List returns a report's evidence. Soft-deleted items are only visible to the
// admin responsible for the report.
func (s *EvidenceService) List(ctx context.Context, a actor.Actor, reportID uuid.UUID, includeDeleted bool) ([]models.Evidence, error) {
	db := s.db.WithContext(ctx)
	report, err := loadReport(db, reportID, false)
	if err != nil {
		return nil, err
	}

	q := db.Where("report_id = ?", reportID)
	if includeDeleted {
		if err := disposition.Authorize(a, disposition.Resolve(report.ResponsibleAdminID())); err != nil {
			return nil, err
		}
		q = q.Unscoped().Where("state IN ?", []evidence.State{evidence.StateActive, evidence.StateSoftDeleted})
	}

	var items []models.Evidence
	if err := q.Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	return items, nil
}

// Stats counts evidence by state, limited to reports the admin may see.
func (s *EvidenceService) Stats(ctx context.Context, a actor.Actor) (*EvidenceStats, error) {
	if !a.IsStaff() {
		return nil, apperr.ErrUnauthorized
	}
	db := s.db.WithContext(ctx)
	reports := db.Session(&gorm.Session{NewDB: true}).Model(&models.Report{}).Select("reports.id").Scopes(VisibleTo(a))

	var stats EvidenceStats
	if err := db.Unscoped().Model(&models.Evidence{}).
		Where("report_id IN (?) AND state = ?", reports, evidence.StateActive).
		Count(&stats.Active).Error; err != nil {
		return nil, fmt.Errorf("failed to count evidence: %w", err)
	}
	if err := db.Unscoped().Model(&models.Evidence{}).
		Where("report_id IN (?) AND state = ?", reports, evidence.StateSoftDeleted).
		Count(&stats.SoftDeleted).Error; err != nil {
		return nil, fmt.Errorf("failed to count evidence: %w", err)
	}
	if err := db.Model(&models.EvidenceTombstone{}).
		Where("report_id IN (?)", reports).
		Count(&stats.Purged).Error; err != nil {
		return nil, fmt.Errorf("failed to count tombstones: %w", err)
	}
	stats.Total = stats.Active + stats.SoftDeleted + stats.Purged
	return &stats, nil
}
