package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/database/dbtest"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

const testSecret = "test-secret"

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, filename string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "bukti_foto/" + uuid.NewString() + "-" + filename
	m.blobs[ref] = b
	return ref, nil
}

func (m *memBlobs) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ref)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type testServer struct {
	app      *fiber.App
	db       *gorm.DB
	blobs    *memBlobs
	super    models.User
	adminA   models.User
	adminB   models.User
	citizen  models.User
	other    models.User
	inactive models.User
	catA     models.Category
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.New(t)
	cfg := &config.Config{
		JWTSecret:         testSecret,
		CORSOrigins:       "*",
		RequestTimeout:    5 * time.Second,
		BodyLimitBytes:    8 * 1024 * 1024,
		UploadDir:         t.TempDir(),
		MaxEvidenceFiles:  3,
		MaxEvidenceBytes:  5 * 1024 * 1024,
		CommentMaxRunes:   500,
		DefaultPageSize:   10,
		MaxPageSize:       100,
		TransitionBucket:  time.Minute,
		PublicLatestLimit: 8,
		TrendMonths:       12,
	}
	s := &testServer{db: db, blobs: &memBlobs{blobs: map[string][]byte{}}}
	s.super = s.user(t, "Super", actor.RoleSuperadmin, true)
	s.adminA = s.user(t, "Admin Jalan", actor.RoleAdmin, true)
	s.adminB = s.user(t, "Admin Sampah", actor.RoleAdmin, true)
	s.citizen = s.user(t, "Budi Santoso", actor.RoleCitizen, true)
	s.other = s.user(t, "Ani", actor.RoleCitizen, true)
	s.inactive = s.user(t, "Nonaktif", actor.RoleCitizen, false)

	s.catA = models.Category{Name: "Jalan Rusak", ResponsibleAdminID: &s.adminA.ID}
	if err := db.Create(&s.catA).Error; err != nil {
		t.Fatal(err)
	}
	s.app = New(cfg, db, Options{Blobs: s.blobs, Ping: func() error { return nil }})
	return s
}

func (s *testServer) user(t *testing.T, name string, role actor.Role, active bool) models.User {
	t.Helper()
	u := models.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Password: "x",
		Role:     role,
		IsActive: active,
	}
	if err := s.db.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u
}

func token(t *testing.T, u models.User) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": u.ID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func (s *testServer) do(t *testing.T, req *http.Request, as *models.User) *http.Response {
	t.Helper()
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *as))
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func (s *testServer) json(t *testing.T, method, path string, body interface{}, as *models.User) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, as)
}

type file struct {
	name, contentType string
	data              []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fieldName string, files ...file) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body = %s", resp.StatusCode, want, b)
	}
}

func (s *testServer) createReport(t *testing.T, anonymous bool) dto.ReportResponse {
	t.Helper()
	req := multipartRequest(t, "/api/reports", map[string]string{
		"title":        "Jalan berlubang",
		"description":  "Lubang besar di depan pasar",
		"category_id":  s.catA.ID.String(),
		"wilayah":      "Sleman",
		"lokasi":       "Jl. Kaliurang km 5",
		"latitude":     "-7.75",
		"longitude":    "110.38",
		"is_anonymous": fmt.Sprint(anonymous),
	}, "evidence", file{"lubang.jpg", "image/jpeg", []byte("jpeg")})
	resp := s.do(t, req, &s.citizen)
	expectStatus(t, resp, fiber.StatusCreated)
	return decode[dto.ReportResponse](t, resp)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp := s.json(t, http.MethodGet, "/api/health", nil, nil)
	expectStatus(t, resp, fiber.StatusOK)
	if h := decode[dto.HealthResponse](t, resp); h.DB != "ok" {
		t.Errorf("health db = %q", h.DB)
	}

	resp = s.json(t, http.MethodGet, "/metrics", nil, nil)
	expectStatus(t, resp, fiber.StatusOK)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.json(t, http.MethodGet, "/api/reports/my", nil, nil), fiber.StatusUnauthorized)
	expectStatus(t, s.json(t, http.MethodGet, "/api/reports/my", nil, &s.inactive), fiber.StatusUnauthorized)
	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/reports", nil, &s.citizen), fiber.StatusForbidden)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/my", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	expectStatus(t, s.do(t, req, nil), fiber.StatusUnauthorized)
}

func TestCreateReport(t *testing.T) {
	s := newTestServer(t)

	report := s.createReport(t, false)
	if !strings.HasPrefix(report.TrackingID, "YK") || len(report.TrackingID) != 12 {
		t.Errorf("tracking id = %q", report.TrackingID)
	}
	if report.Status != "Diajukan" || len(report.History) != 1 || len(report.Evidence) != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Submitter.Name != "Budi Santoso" {
		t.Errorf("submitter = %+v", report.Submitter)
	}
	if s.blobs.count() != 1 {
		t.Errorf("stored blobs = %d, want 1", s.blobs.count())
	}

	resp := s.do(t, multipartRequest(t, "/api/reports", map[string]string{
		"description": "tanpa judul",
		"wilayah":     "Sleman",
		"lokasi":      "Pasar",
		"latitude":    "-7.75",
	}, "evidence"), &s.citizen)
	expectStatus(t, resp, fiber.StatusBadRequest)
	body := decode[dto.ErrorResponse](t, resp)
	for _, field := range []string{"title", "longitude"} {
		if _, ok := body.Fields[field]; !ok {
			t.Errorf("missing field error for %s: %+v", field, body.Fields)
		}
	}

	resp = s.do(t, multipartRequest(t, "/api/reports", map[string]string{
		"title": "Dokumen", "description": "d", "wilayah": "Sleman", "lokasi": "Pasar",
	}, "evidence", file{"a.exe", "application/x-msdownload", []byte("MZ")}), &s.citizen)
	expectStatus(t, resp, fiber.StatusBadRequest)
}

func TestAnonymousReportProjection(t *testing.T) {
	s := newTestServer(t)
	report := s.createReport(t, true)

	resp := s.json(t, http.MethodGet, "/api/reports/track?tracking_id="+strings.ToLower(report.TrackingID), nil, nil)
	expectStatus(t, resp, fiber.StatusOK)
	public := decode[dto.ReportResponse](t, resp)
	if public.Submitter.Name != dto.AnonymousName || public.Submitter.ID != nil {
		t.Errorf("public submitter = %+v, want masked", public.Submitter)
	}

	resp = s.json(t, http.MethodGet, "/api/reports/"+report.ID.String(), nil, &s.adminA)
	expectStatus(t, resp, fiber.StatusOK)
	if got := decode[dto.ReportResponse](t, resp); got.Submitter.ID != nil {
		t.Errorf("admin sees submitter %+v, want masked", got.Submitter)
	}

	resp = s.json(t, http.MethodGet, "/api/reports/"+report.ID.String(), nil, &s.citizen)
	expectStatus(t, resp, fiber.StatusOK)
	if got := decode[dto.ReportResponse](t, resp); got.Submitter.ID == nil || *got.Submitter.ID != s.citizen.ID {
		t.Errorf("owner sees submitter %+v, want own id", got.Submitter)
	}

	expectStatus(t, s.json(t, http.MethodPost, "/api/reports/"+report.ID.String()+"/comments",
		dto.CommentRequest{Text: "Mohon segera"}, &s.citizen), fiber.StatusCreated)
	expectStatus(t, s.json(t, http.MethodPost, "/api/reports/"+report.ID.String()+"/comments",
		dto.CommentRequest{Text: "Saya juga lihat"}, &s.other), fiber.StatusCreated)

	resp = s.json(t, http.MethodGet, "/api/reports/"+report.ID.String()+"/comments", nil, &s.other)
	expectStatus(t, resp, fiber.StatusOK)
	entries := decode[[]dto.ThreadEntryResponse](t, resp)
	if len(entries) != 2 {
		t.Fatalf("comments = %d, want 2", len(entries))
	}
	if entries[0].Author.Name != dto.AnonymousName || entries[0].Author.ID != nil {
		t.Errorf("submitter comment author = %+v, want masked", entries[0].Author)
	}
	if entries[1].Author.Name != "Ani" {
		t.Errorf("other comment author = %+v", entries[1].Author)
	}
}

func TestTransitionEndpoint(t *testing.T) {
	s := newTestServer(t)
	report := s.createReport(t, false)
	path := "/api/admin/reports/" + report.ID.String() + "/status"

	expectStatus(t, s.json(t, http.MethodPatch, path, dto.TransitionRequest{Status: "diproses"}, &s.adminB), fiber.StatusForbidden)

	resp := s.json(t, http.MethodPatch, path, dto.TransitionRequest{Status: "bogus"}, &s.adminA)
	expectStatus(t, resp, fiber.StatusBadRequest)
	if body := decode[dto.ErrorResponse](t, resp); body.Fields["status"] == "" {
		t.Errorf("fields = %+v, want status error", body.Fields)
	}

	resp = s.json(t, http.MethodPatch, path, dto.TransitionRequest{Status: "diproses", Note: "Sedang ditangani"}, &s.adminA)
	expectStatus(t, resp, fiber.StatusOK)
	entry := decode[dto.StatusChangeResponse](t, resp)
	if entry.Status != "Diproses" || entry.ResolvedAdminID == nil || *entry.ResolvedAdminID != s.adminA.ID {
		t.Errorf("entry = %+v", entry)
	}

	expectStatus(t, s.json(t, http.MethodPatch, path, dto.TransitionRequest{Status: "selesai"}, &s.super), fiber.StatusOK)
	expectStatus(t, s.json(t, http.MethodPatch, path, dto.TransitionRequest{Status: "ditolak"}, &s.adminA), fiber.StatusConflict)
	expectStatus(t, s.json(t, http.MethodPatch, "/api/admin/reports/"+uuid.NewString()+"/status",
		dto.TransitionRequest{Status: "diproses"}, &s.adminA), fiber.StatusNotFound)

	var events int64
	if err := s.db.Model(&models.ReportEvent{}).Where("report_id = ?", report.ID).Count(&events).Error; err != nil {
		t.Fatal(err)
	}
	if events != 2 {
		t.Errorf("outbox events = %d, want 2", events)
	}
}

func TestAdminQueryScope(t *testing.T) {
	s := newTestServer(t)
	s.createReport(t, false)

	resp := s.json(t, http.MethodGet, "/api/admin/reports?status=diajukan&q=lubang", nil, &s.adminA)
	expectStatus(t, resp, fiber.StatusOK)
	if page := decode[dto.PageResponse[dto.ReportResponse]](t, resp); page.Total != 1 || len(page.Data) != 1 {
		t.Errorf("adminA page = %+v, want 1 report", page)
	}

	resp = s.json(t, http.MethodGet, "/api/admin/reports", nil, &s.adminB)
	expectStatus(t, resp, fiber.StatusOK)
	if page := decode[dto.PageResponse[dto.ReportResponse]](t, resp); page.Total != 0 {
		t.Errorf("adminB total = %d, want 0", page.Total)
	}

	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/reports?period=year", nil, &s.super), fiber.StatusBadRequest)
	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/reports?status=unknown", nil, &s.super), fiber.StatusBadRequest)
}

func TestEvidenceEndpoints(t *testing.T) {
	s := newTestServer(t)
	report := s.createReport(t, false)
	base := "/api/reports/" + report.ID.String() + "/evidence"

	resp := s.do(t, multipartRequest(t, base, nil, "evidence", file{"surat.pdf", "application/pdf", []byte("%PDF")}), &s.citizen)
	expectStatus(t, resp, fiber.StatusCreated)
	pdf := decode[dto.EvidenceResponse](t, resp)

	expectStatus(t, s.json(t, http.MethodDelete, "/api/admin/evidence/"+pdf.ID.String()+"/permanent", nil, &s.adminA), fiber.StatusConflict)
	expectStatus(t, s.json(t, http.MethodDelete, "/api/admin/evidence/"+pdf.ID.String(), nil, &s.adminB), fiber.StatusForbidden)
	expectStatus(t, s.json(t, http.MethodDelete, "/api/admin/evidence/"+pdf.ID.String(), nil, &s.adminA), fiber.StatusOK)

	resp = s.json(t, http.MethodGet, base, nil, &s.citizen)
	expectStatus(t, resp, fiber.StatusOK)
	if items := decode[[]dto.EvidenceResponse](t, resp); len(items) != 1 {
		t.Errorf("active evidence = %d, want 1", len(items))
	}
	expectStatus(t, s.json(t, http.MethodGet, base+"?include_deleted=true", nil, &s.citizen), fiber.StatusForbidden)
	resp = s.json(t, http.MethodGet, base+"?include_deleted=true", nil, &s.adminA)
	expectStatus(t, resp, fiber.StatusOK)
	if items := decode[[]dto.EvidenceResponse](t, resp); len(items) != 2 {
		t.Errorf("evidence incl. deleted = %d, want 2", len(items))
	}

	// One slot is still held by the soft-deleted file.
	expectStatus(t, s.do(t, multipartRequest(t, base, nil, "evidence", file{"b.png", "image/png", []byte("png")}), &s.citizen), fiber.StatusCreated)
	before := s.blobs.count()
	resp = s.do(t, multipartRequest(t, base, nil, "evidence", file{"c.png", "image/png", []byte("png")}), &s.citizen)
	expectStatus(t, resp, fiber.StatusBadRequest)
	if s.blobs.count() != before {
		t.Errorf("rejected upload left a blob behind")
	}

	resp = s.json(t, http.MethodDelete, "/api/admin/evidence/"+pdf.ID.String()+"/permanent", nil, &s.adminA)
	expectStatus(t, resp, fiber.StatusOK)
	if purged := decode[dto.EvidenceResponse](t, resp); purged.State != "permanently_deleted" || purged.PhotoURL != "" {
		t.Errorf("purged = %+v", purged)
	}
	expectStatus(t, s.json(t, http.MethodPost, "/api/admin/evidence/"+pdf.ID.String()+"/restore", nil, &s.adminA), fiber.StatusConflict)
	expectStatus(t, s.json(t, http.MethodPost, "/api/admin/evidence/"+uuid.NewString()+"/restore", nil, &s.adminA), fiber.StatusNotFound)
}

func TestFollowUpsAndCategories(t *testing.T) {
	s := newTestServer(t)
	report := s.createReport(t, false)
	path := "/api/admin/reports/" + report.ID.String() + "/followups"

	expectStatus(t, s.do(t, multipartRequest(t, path, map[string]string{"deskripsi": "Sudah ditambal"}, "photo"), &s.adminB), fiber.StatusForbidden)
	expectStatus(t, s.do(t, multipartRequest(t, path, map[string]string{"deskripsi": "Sudah ditambal"}, "photo",
		file{"after.jpg", "image/jpeg", []byte("jpeg")}), &s.adminA), fiber.StatusCreated)

	resp := s.json(t, http.MethodGet, "/api/reports/"+report.ID.String()+"/followups", nil, nil)
	expectStatus(t, resp, fiber.StatusOK)
	followUps := decode[[]dto.ThreadEntryResponse](t, resp)
	if len(followUps) != 1 || followUps[0].PhotoURL == "" || followUps[0].AuthorRole != "admin" {
		t.Errorf("followups = %+v", followUps)
	}

	expectStatus(t, s.json(t, http.MethodPost, "/api/admin/categories",
		dto.CategoryRequest{Name: "Sampah"}, &s.adminA), fiber.StatusForbidden)
	expectStatus(t, s.json(t, http.MethodPost, "/api/admin/categories",
		dto.CategoryRequest{Name: "Sampah", AdminIDs: []uuid.UUID{s.adminA.ID, s.adminB.ID}}, &s.super), fiber.StatusBadRequest)
	resp = s.json(t, http.MethodPost, "/api/admin/categories",
		dto.CategoryRequest{Name: "Sampah", AdminIDs: []uuid.UUID{s.adminB.ID}}, &s.super)
	expectStatus(t, resp, fiber.StatusCreated)
	created := decode[dto.CategoryResponse](t, resp)

	expectStatus(t, s.json(t, http.MethodPut, "/api/admin/categories/"+s.catA.ID.String()+"/admin",
		dto.AssignAdminRequest{AdminIDs: []uuid.UUID{s.adminB.ID}}, &s.super), fiber.StatusOK)
	// Reassignment takes effect for existing reports immediately.
	expectStatus(t, s.json(t, http.MethodPatch, "/api/admin/reports/"+report.ID.String()+"/status",
		dto.TransitionRequest{Status: "diproses"}, &s.adminA), fiber.StatusForbidden)
	expectStatus(t, s.json(t, http.MethodPatch, "/api/admin/reports/"+report.ID.String()+"/status",
		dto.TransitionRequest{Status: "diproses"}, &s.adminB), fiber.StatusOK)

	expectStatus(t, s.json(t, http.MethodDelete, "/api/admin/categories/"+s.catA.ID.String(), nil, &s.super), fiber.StatusConflict)
	expectStatus(t, s.json(t, http.MethodDelete, "/api/admin/categories/"+created.ID.String(), nil, &s.super), fiber.StatusOK)

	resp = s.json(t, http.MethodGet, "/api/categories", nil, nil)
	expectStatus(t, resp, fiber.StatusOK)
	if cats := decode[[]dto.CategoryResponse](t, resp); len(cats) != 1 {
		t.Errorf("categories = %d, want 1", len(cats))
	}
}

func TestStatsEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.createReport(t, false)

	resp := s.json(t, http.MethodGet, "/api/admin/stats", nil, &s.adminA)
	expectStatus(t, resp, fiber.StatusOK)
	stats := decode[struct {
		ReportCount int64            `json:"report_count"`
		ByStatus    map[string]int64 `json:"by_status"`
	}](t, resp)
	if stats.ReportCount != 1 || stats.ByStatus["Diajukan"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/stats/trends?by=week", nil, &s.super), fiber.StatusOK)
	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/stats/trends?by=day", nil, &s.super), fiber.StatusBadRequest)
	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/stats/categories", nil, &s.super), fiber.StatusOK)
	expectStatus(t, s.json(t, http.MethodGet, "/api/admin/evidence/stats", nil, &s.adminA), fiber.StatusOK)
}
