package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/disposition"
	"github.com/pengaduan/pengaduan-backend/internal/core/thread"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

type ThreadService struct {
	db       *gorm.DB
	maxRunes int
	now      func() time.Time
}

func NewThreadService(db *gorm.DB, maxRunes int) *ThreadService {
	return &ThreadService{db: db, maxRunes: maxRunes, now: utcNow}
}

// AddComment is open to any authenticated actor, whatever the report status.
func (s *ThreadService) AddComment(ctx context.Context, a actor.Actor, reportID uuid.UUID, text string) (*models.ThreadEntry, error) {
	if a.ID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	body, err := thread.CommentBody(text, s.maxRunes)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, a, reportID, thread.KindComment, body, "", nil)
}

// AddFollowUp records an action taken by the responsible admin ("tindak lanjut").
func (s *ThreadService) AddFollowUp(ctx context.Context, a actor.Actor, reportID uuid.UUID, text, photoURL string) (*models.ThreadEntry, error) {
	if !a.IsStaff() {
		return nil, apperr.Wrap(apperr.ErrUnauthorized, "follow-ups are written by admins")
	}
	body, err := thread.FollowUpBody(text)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, a, reportID, thread.KindFollowUp, body, photoURL, func(report *models.Report) error {
		return disposition.Authorize(a, disposition.Resolve(report.ResponsibleAdminID()))
	})
}

func (s *ThreadService) append(ctx context.Context, a actor.Actor, reportID uuid.UUID, kind thread.Kind, body, photoURL string, authorize func(*models.Report) error) (*models.ThreadEntry, error) {
	var entry models.ThreadEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := loadReport(tx, reportID, true)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(report); err != nil {
				return err
			}
		}

		var last models.ThreadEntry
		createdAt := s.now()
		err = tx.Where("report_id = ?", reportID).Order("created_at DESC").First(&last).Error
		switch {
		case err == nil:
			createdAt = thread.NextCreatedAt(last.CreatedAt, createdAt)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to load thread: %w", err)
		}

		entry = models.ThreadEntry{
			ReportID:   reportID,
			Kind:       kind,
			AuthorID:   a.ID,
			AuthorRole: thread.RoleOf(a),
			Body:       body,
			PhotoURL:   photoURL,
			CreatedAt:  createdAt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", kind, err)
		}
		entry.Author = models.User{ID: a.ID, Name: a.Name, Role: a.Role}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns entries of one kind, oldest first, with their authors loaded.
func (s *ThreadService) List(ctx context.Context, reportID uuid.UUID, kind thread.Kind) ([]models.ThreadEntry, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadReport(db, reportID, false); err != nil {
		return nil, err
	}
	var entries []models.ThreadEntry
	err := db.Preload("Author").
		Where("report_id = ? AND kind = ?", reportID, kind).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}
	return entries, nil
}
