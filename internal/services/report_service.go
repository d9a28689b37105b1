package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/core/disposition"
	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

const trackingAttempts = 10

// ReportInput holds the citizen-editable fields of a report.
type ReportInput struct {
	Title       string
	Description string
	CategoryID  *uuid.UUID
	Wilayah     string
	Lokasi      string
	Latitude    *float64
	Longitude   *float64
	IsAnonymous bool
}

// Upload is one evidence file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ReportService struct {
	db     *gorm.DB
	cfg    *config.Config
	blobs  BlobStore
	now    func() time.Time
	random func() int
}

func NewReportService(db *gorm.DB, cfg *config.Config, blobs BlobStore) *ReportService {
	return &ReportService{
		db:     db,
		cfg:    cfg,
		blobs:  blobs,
		now:    utcNow,
		random: func() int { return 1000 + rand.Intn(9000) },
	}
}

// Create files a new report with its initial riwayat entry and evidence.
func (s *ReportService) Create(ctx context.Context, a actor.Actor, in ReportInput, files []Upload) (*models.Report, error) {
	if a.ID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	in = normalizeInput(in)
	if err := validateReportInput(in); err != nil {
		return nil, err
	}
	kinds, err := s.validateUploads(files)
	if err != nil {
		return nil, err
	}

	stored := make([]string, 0, len(files))
	cleanup := func() {
		for _, ref := range stored {
			if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
				slog.Warn("failed to remove orphaned blob", "ref", ref, "error", err)
			}
		}
	}
	for _, f := range files {
		ref, err := s.blobs.Put(ctx, f.Filename, f.Body)
		if err != nil {
			cleanup()
			return nil, err
		}
		stored = append(stored, ref)
	}

	now := s.now()
	report := models.Report{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Wilayah:     in.Wilayah,
		Lokasi:      in.Lokasi,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		IsAnonymous: in.IsAnonymous,
		Status:      lifecycle.InitialStatus(),
		SubmitterID: a.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category, err := findCategory(tx, in.CategoryID)
		if err != nil {
			return err
		}
		if report.TrackingID, err = s.uniqueTrackingID(tx, now); err != nil {
			return err
		}
		if err := tx.Create(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Wrap(apperr.ErrConflict, "tracking id %s already taken", report.TrackingID)
			}
			return fmt.Errorf("failed to create report: %w", err)
		}

		var responsible *uuid.UUID
		if category != nil {
			responsible = category.ResponsibleAdminID
		}
		initial := models.StatusChange{
			ReportID:        report.ID,
			Status:          report.Status,
			ResolvedAdminID: disposition.Resolve(responsible).Ptr(),
			Note:            lifecycle.DefaultNote(report.Status, report.Wilayah),
			IdempotencyKey:  lifecycle.InitialKey(report.ID),
			CreatedAt:       now,
		}
		if err := tx.Create(&initial).Error; err != nil {
			return fmt.Errorf("failed to create initial history: %w", err)
		}

		for i, ref := range stored {
			ev := models.Evidence{
				ReportID:   report.ID,
				PhotoURL:   ref,
				MediaKind:  kinds[i],
				SizeBytes:  files[i].Size,
				State:      evidence.StateActive,
				UploadedBy: a.ID,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.Create(&ev).Error; err != nil {
				return fmt.Errorf("failed to store evidence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	slog.Info("report created", "report_id", report.ID.String(), "tracking_id", report.TrackingID, "evidence", len(stored))
	return s.Get(ctx, report.ID)
}

// Get returns a report with category, submitter, history and active evidence.
func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	return s.getWhere(ctx, "id = ?", id)
}

func (s *ReportService) GetByTrackingID(ctx context.Context, trackingID string) (*models.Report, error) {
	trackingID = strings.ToUpper(strings.TrimSpace(trackingID))
	if trackingID == "" {
		return nil, apperr.Invalid("tracking_id", "tracking id is required")
	}
	return s.getWhere(ctx, "tracking_id = ?", trackingID)
}

func (s *ReportService) getWhere(ctx context.Context, query string, arg interface{}) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Submitter").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Evidence", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where(query, arg).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "report")
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return &report, nil
}

// ListMine pages through the caller's own reports, newest first.
func (s *ReportService) ListMine(ctx context.Context, a actor.Actor, page Page) (*ReportPage, error) {
	if a.ID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	q := s.db.WithContext(ctx).Model(&models.Report{}).Where("submitter_id = ?", a.ID)
	return s.paginate(q, s.normalizePage(page))
}

// Latest returns the newest n reports for the public feed.
func (s *ReportService) Latest(ctx context.Context, n int) ([]models.Report, error) {
	if n <= 0 || n > s.cfg.MaxPageSize {
		n = s.cfg.PublicLatestLimit
	}
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Submitter").
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list latest reports: %w", err)
	}
	return reports, nil
}

// Query is the admin search. Every filter is a predicate on reports itself, so a
// report matching several sub-conditions still appears once.
func (s *ReportService) Query(ctx context.Context, a actor.Actor, f ReportFilter, page Page) (*ReportPage, error) {
	if !a.IsStaff() {
		return nil, apperr.ErrUnauthorized
	}
	scopes, err := f.scopes(s.now())
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Report{}).
		Scopes(VisibleTo(a)).
		Scopes(scopes...)
	return s.paginate(q, s.normalizePage(page))
}

func (s *ReportService) paginate(q *gorm.DB, page Page) (*ReportPage, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	var reports []models.Report
	err := q.Session(&gorm.Session{}).
		Preload("Category").
		Preload("Submitter").
		Order("reports.created_at DESC, reports.id DESC").
		Limit(page.PageSize).
		Offset((page.Page - 1) * page.PageSize).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return &ReportPage{Reports: reports, Total: total, Page: page.Page, PageSize: page.PageSize}, nil
}

func (s *ReportService) normalizePage(p Page) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = s.cfg.DefaultPageSize
	}
	if p.PageSize > s.cfg.MaxPageSize {
		p.PageSize = s.cfg.MaxPageSize
	}
	return p
}

func (s *ReportService) uniqueTrackingID(tx *gorm.DB, now time.Time) (string, error) {
	prefix := "YK" + now.Format("060102")
	for i := 0; i < trackingAttempts; i++ {
		candidate := fmt.Sprintf("%s%04d", prefix, s.random())
		var n int64
		if err := tx.Model(&models.Report{}).Where("tracking_id = ?", candidate).Count(&n).Error; err != nil {
			return "", fmt.Errorf("failed to check tracking id: %w", err)
		}
		if n == 0 {
			return candidate, nil
		}
	}
	return "", apperr.Wrap(apperr.ErrConflict, "no free tracking id for %s", prefix)
}

func (s *ReportService) validateUploads(files []Upload) ([]evidence.MediaKind, error) {
	if len(files) > s.cfg.MaxEvidenceFiles {
		return nil, apperr.Invalid("evidence", fmt.Sprintf("at most %d files are allowed", s.cfg.MaxEvidenceFiles))
	}
	kinds := make([]evidence.MediaKind, len(files))
	var total int64
	for i, f := range files {
		kind, ok := evidence.KindFromMIME(f.ContentType)
		if !ok {
			return nil, apperr.Invalid("evidence", fmt.Sprintf("%s: only images and PDF files are accepted", f.Filename))
		}
		kinds[i] = kind
		total += f.Size
	}
	if total > s.cfg.MaxEvidenceBytes {
		return nil, apperr.Invalid("evidence", fmt.Sprintf("total size exceeds %d MB", s.cfg.MaxEvidenceBytes/(1024*1024)))
	}
	return kinds, nil
}

func normalizeInput(in ReportInput) ReportInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Wilayah = strings.TrimSpace(in.Wilayah)
	in.Lokasi = strings.TrimSpace(in.Lokasi)
	if in.CategoryID != nil && *in.CategoryID == uuid.Nil {
		in.CategoryID = nil
	}
	return in
}

func validateReportInput(in ReportInput) error {
	fields := map[string]string{}
	required := map[string]string{
		"title":       in.Title,
		"description": in.Description,
		"wilayah":     in.Wilayah,
		"lokasi":      in.Lokasi,
	}
	for name, v := range required {
		if v == "" {
			fields[name] = "is required"
		}
	}
	if len(in.Title) > 255 {
		fields["title"] = "must be at most 255 characters"
	}
	if msg := coordinateError(in.Latitude, in.Longitude); msg != "" {
		fields["coordinates"] = msg
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func coordinateError(lat, lon *float64) string {
	switch {
	case lat == nil && lon == nil:
		return ""
	case lat == nil || lon == nil:
		return "latitude and longitude must be given together"
	case *lat < -90 || *lat > 90:
		return "latitude must be between -90 and 90"
	case *lon < -180 || *lon > 180:
		return "longitude must be between -180 and 180"
	}
	return ""
}

func findCategory(tx *gorm.DB, id *uuid.UUID) (*models.Category, error) {
	if id == nil {
		return nil, nil
	}
	var category models.Category
	if err := tx.First(&category, "id = ?", *id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("category_id", "unknown category")
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return &category, nil
}
