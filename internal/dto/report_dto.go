package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// AnonymousName replaces the submitter's name on anonymous reports.
const AnonymousName = "Anonim"

// CreateReportRequest is the multipart form of POST /reports; files arrive as "evidence".
type CreateReportRequest struct {
	Title       string `form:"title" validate:"required,max=255"`
	Description string `form:"description" validate:"required"`
	CategoryID  string `form:"category_id" validate:"omitempty,uuid"`
	Wilayah     string `form:"wilayah" validate:"required,max=120"`
	Lokasi      string `form:"lokasi" validate:"required,max=255"`
	Latitude    string `form:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude   string `form:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
	IsAnonymous bool   `form:"is_anonymous"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=2000"`
}

// AmendReportRequest is a partial update; absent fields stay unchanged.
type AmendReportRequest struct {
	Title            *string    `json:"title" validate:"omitempty,max=255"`
	Description      *string    `json:"description"`
	Wilayah          *string    `json:"wilayah" validate:"omitempty,max=120"`
	Lokasi           *string    `json:"lokasi" validate:"omitempty,max=255"`
	Latitude         *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude        *float64   `json:"longitude" validate:"omitempty,longitude"`
	CategoryID       *uuid.UUID `json:"category_id"`
	ClearCategory    bool       `json:"clear_category"`
	ClearCoordinates bool       `json:"clear_coordinates"`
}

type CategorySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type SubmitterResponse struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
}

type StatusChangeResponse struct {
	ID              uuid.UUID        `json:"id"`
	Status          lifecycle.Status `json:"status"`
	Note            string           `json:"note"`
	ActorID         *uuid.UUID       `json:"actor_id"`
	ResolvedAdminID *uuid.UUID       `json:"resolved_admin_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

type EvidenceResponse struct {
	ID        uuid.UUID          `json:"id"`
	ReportID  uuid.UUID          `json:"report_id"`
	PhotoURL  string             `json:"photo_url,omitempty"`
	MediaKind evidence.MediaKind `json:"media_kind,omitempty"`
	SizeBytes int64              `json:"size_bytes,omitempty"`
	State     evidence.State     `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
	DeletedAt *time.Time         `json:"deleted_at,omitempty"`
}

type ReportResponse struct {
	ID          uuid.UUID              `json:"id"`
	TrackingID  string                 `json:"tracking_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Category    *CategorySummary       `json:"category"`
	Wilayah     string                 `json:"wilayah"`
	Lokasi      string                 `json:"lokasi"`
	Latitude    *float64               `json:"latitude"`
	Longitude   *float64               `json:"longitude"`
	IsAnonymous bool                   `json:"is_anonymous"`
	Status      lifecycle.Status       `json:"status"`
	Submitter   SubmitterResponse      `json:"submitter"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	History     []StatusChangeResponse `json:"history,omitempty"`
	Evidence    []EvidenceResponse     `json:"evidence,omitempty"`
}

// ProjectReport is the only way a report leaves the service. Anonymous reports
// never expose the submitter to anyone but the submitter.
func ProjectReport(r models.Report, viewer actor.Actor) ReportResponse {
	out := ReportResponse{
		ID:          r.ID,
		TrackingID:  r.TrackingID,
		Title:       r.Title,
		Description: r.Description,
		Wilayah:     r.Wilayah,
		Lokasi:      r.Lokasi,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		IsAnonymous: r.IsAnonymous,
		Status:      r.Status,
		Submitter:   projectSubmitter(r, viewer),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Category != nil {
		out.Category = &CategorySummary{ID: r.Category.ID, Name: r.Category.Name}
	}
	for _, h := range r.History {
		out.History = append(out.History, ProjectStatusChange(h))
	}
	for _, ev := range r.Evidence {
		out.Evidence = append(out.Evidence, ProjectEvidence(ev))
	}
	return out
}

func ProjectReports(reports []models.Report, viewer actor.Actor) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, ProjectReport(r, viewer))
	}
	return out
}

func projectSubmitter(r models.Report, viewer actor.Actor) SubmitterResponse {
	if r.IsAnonymous && viewer.ID != r.SubmitterID {
		return SubmitterResponse{Name: AnonymousName}
	}
	id := r.SubmitterID
	return SubmitterResponse{ID: &id, Name: r.Submitter.Name}
}

func ProjectStatusChange(h models.StatusChange) StatusChangeResponse {
	return StatusChangeResponse{
		ID:              h.ID,
		Status:          h.Status,
		Note:            h.Note,
		ActorID:         h.ActorID,
		ResolvedAdminID: h.ResolvedAdminID,
		CreatedAt:       h.CreatedAt,
	}
}

func ProjectEvidence(ev models.Evidence) EvidenceResponse {
	out := EvidenceResponse{
		ID:        ev.ID,
		ReportID:  ev.ReportID,
		PhotoURL:  ev.PhotoURL,
		MediaKind: ev.MediaKind,
		SizeBytes: ev.SizeBytes,
		State:     ev.State,
		CreatedAt: ev.CreatedAt,
	}
	if ev.DeletedAt.Valid {
		t := ev.DeletedAt.Time
		out.DeletedAt = &t
	}
	if ev.State == evidence.StatePermanentlyDeleted {
		out.PhotoURL = ""
	}
	return out
}

// ReportQueryRequest holds the admin search parameters. Status and category_id
// accept comma-separated lists.
type ReportQueryRequest struct {
	Status     string `query:"status"`
	Month      string `query:"month"`
	MonthFrom  string `query:"month_from"`
	MonthTo    string `query:"month_to"`
	Period     string `query:"period" validate:"omitempty,oneof=today week month"`
	Search     string `query:"q" validate:"max=200"`
	CategoryID string `query:"category_id"`
	Page       int    `query:"page" validate:"gte=0"`
	PageSize   int    `query:"page_size" validate:"gte=0"`
}

type PageRequest struct {
	Page     int `query:"page" validate:"gte=0"`
	PageSize int `query:"page_size" validate:"gte=0"`
}
