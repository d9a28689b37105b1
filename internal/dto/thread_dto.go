package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/core/thread"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// FollowUpRequest is multipart; an optional photo arrives as "photo".
type FollowUpRequest struct {
	Deskripsi string `form:"deskripsi" validate:"required"`
}

type AuthorResponse struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
}

type ThreadEntryResponse struct {
	ID         uuid.UUID         `json:"id"`
	ReportID   uuid.UUID         `json:"report_id"`
	Kind       thread.Kind       `json:"kind"`
	Body       string            `json:"body"`
	PhotoURL   string            `json:"photo_url,omitempty"`
	AuthorRole thread.AuthorRole `json:"author_role"`
	Author     AuthorResponse    `json:"author"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ProjectThreadEntry applies the report's anonymity to entries its submitter wrote.
func ProjectThreadEntry(e models.ThreadEntry, report models.Report, viewer actor.Actor) ThreadEntryResponse {
	out := ThreadEntryResponse{
		ID:         e.ID,
		ReportID:   e.ReportID,
		Kind:       e.Kind,
		Body:       e.Body,
		PhotoURL:   e.PhotoURL,
		AuthorRole: e.AuthorRole,
		CreatedAt:  e.CreatedAt,
	}
	if report.IsAnonymous && e.AuthorID == report.SubmitterID && viewer.ID != report.SubmitterID {
		out.Author = AuthorResponse{Name: AnonymousName}
		return out
	}
	id := e.AuthorID
	out.Author = AuthorResponse{ID: &id, Name: e.Author.Name}
	return out
}

// ProjectOwnThreadEntry projects an entry for its own author, who always sees
// their name.
func ProjectOwnThreadEntry(e models.ThreadEntry) ThreadEntryResponse {
	return ProjectThreadEntry(e, models.Report{}, actor.Actor{ID: e.AuthorID})
}

func ProjectThread(entries []models.ThreadEntry, report models.Report, viewer actor.Actor) []ThreadEntryResponse {
	out := make([]ThreadEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProjectThreadEntry(e, report, viewer))
	}
	return out
}
