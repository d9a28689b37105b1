package handlers

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/services"
)

const evidenceField = "evidence"

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Create handles POST /reports (multipart: report fields plus up to three "evidence" files).
func (h *ReportHandler) Create(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}
	in, err := reportInput(req)
	if err != nil {
		return respondError(c, err)
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File[evidenceField]
	}
	uploads, closeAll, err := openUploads(headers)
	if err != nil {
		return badRequest(c, "Failed to read uploaded file")
	}
	defer closeAll()

	report, err := h.reportService.Create(c.UserContext(), a, in, uploads)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ProjectReport(*report, a))
}

// Get handles GET /reports/:id.
func (h *ReportHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.reportService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectReport(*report, viewer(c)))
}

// Track handles GET /reports/track?tracking_id=.
func (h *ReportHandler) Track(c *fiber.Ctx) error {
	report, err := h.reportService.GetByTrackingID(c.UserContext(), c.Query("tracking_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectReport(*report, viewer(c)))
}

// Public handles GET /reports/public, the latest reports feed.
func (h *ReportHandler) Public(c *fiber.Ctx) error {
	reports, err := h.reportService.Latest(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ProjectReports(reports, viewer(c)))
}

// Mine handles GET /reports/my.
func (h *ReportHandler) Mine(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.PageRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}
	page, err := h.reportService.ListMine(c.UserContext(), a, services.Page{Page: req.Page, PageSize: req.PageSize})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pageResponse(page, a))
}

// Query handles GET /admin/reports.
func (h *ReportHandler) Query(c *fiber.Ctx) error {
	a, ok := currentActor(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.ReportQueryRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	if err := dto.Validate(req); err != nil {
		return respondError(c, err)
	}
	filter, err := reportFilter(req)
	if err != nil {
		return respondError(c, err)
	}

	page, err := h.reportService.Query(c.UserContext(), a, filter, services.Page{Page: req.Page, PageSize: req.PageSize})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pageResponse(page, a))
}

func pageResponse(page *services.ReportPage, a actor.Actor) dto.PageResponse[dto.ReportResponse] {
	return dto.PageResponse[dto.ReportResponse]{
		Data:     dto.ProjectReports(page.Reports, a),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
}

func reportInput(req dto.CreateReportRequest) (services.ReportInput, error) {
	in := services.ReportInput{
		Title:       req.Title,
		Description: req.Description,
		Wilayah:     req.Wilayah,
		Lokasi:      req.Lokasi,
		IsAnonymous: req.IsAnonymous,
	}
	if req.CategoryID != "" {
		id, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return in, apperr.Invalid("category_id", "must be a UUID")
		}
		in.CategoryID = &id
	}
	var err error
	if in.Latitude, err = parseCoordinate("latitude", req.Latitude); err != nil {
		return in, err
	}
	if in.Longitude, err = parseCoordinate("longitude", req.Longitude); err != nil {
		return in, err
	}
	return in, nil
}

func parseCoordinate(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Invalid(field, "must be a number")
	}
	return &v, nil
}

func reportFilter(req dto.ReportQueryRequest) (services.ReportFilter, error) {
	f := services.ReportFilter{
		MonthFrom: req.MonthFrom,
		MonthTo:   req.MonthTo,
		Period:    req.Period,
		Search:    req.Search,
	}
	if req.Month != "" && f.MonthFrom == "" {
		f.MonthFrom, f.MonthTo = req.Month, req.Month
	}
	for _, raw := range splitList(req.Status) {
		status, err := lifecycle.Parse(raw)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, raw := range splitList(req.CategoryID) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, apperr.Invalid("category_id", "must be a comma-separated list of UUIDs")
		}
		f.CategoryIDs = append(f.CategoryIDs, id)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// openUploads opens every file part; the returned func closes whatever was opened.
func openUploads(headers []*multipart.FileHeader) ([]services.Upload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		uploads = append(uploads, services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
