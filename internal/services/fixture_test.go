package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/database/dbtest"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) Set(t time.Time) { c.t = t.UTC() }

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	n     int
}

func newMemBlobs() *memBlobs { return &memBlobs{blobs: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, filename string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	ref := fmt.Sprintf("mem/%d-%s", m.n, filename)
	m.blobs[ref] = b
	return ref, nil
}

func (m *memBlobs) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ref)
	return nil
}

func (m *memBlobs) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[ref]
	return ok
}

func testConfig() *config.Config {
	return &config.Config{
		MaxEvidenceFiles:  3,
		MaxEvidenceBytes:  5 * 1024 * 1024,
		CommentMaxRunes:   500,
		DefaultPageSize:   10,
		MaxPageSize:       100,
		TransitionBucket:  time.Minute,
		PublicLatestLimit: 8,
		TrendMonths:       12,
	}
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	cfg   *config.Config
	clock *fakeClock
	blobs *memBlobs

	reports     *ReportService
	lifecycle   *LifecycleService
	evidence    *EvidenceService
	threads     *ThreadService
	disposition *DispositionService
	stats       *StatsService

	super   actor.Actor
	adminA  actor.Actor
	adminB  actor.Actor
	citizen actor.Actor
	other   actor.Actor

	catA *models.Category
	catB *models.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	cfg := testConfig()
	clock := &fakeClock{t: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	blobs := newMemBlobs()

	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		cfg:         cfg,
		clock:       clock,
		blobs:       blobs,
		reports:     NewReportService(db, cfg, blobs),
		lifecycle:   NewLifecycleService(db, cfg.TransitionBucket),
		evidence:    NewEvidenceService(db, blobs, cfg.MaxEvidenceFiles),
		threads:     NewThreadService(db, cfg.CommentMaxRunes),
		disposition: NewDispositionService(db),
		stats:       NewStatsService(db, cfg.TrendMonths),
	}
	f.reports.now = clock.Now
	f.lifecycle.now = clock.Now
	f.evidence.now = clock.Now
	f.threads.now = clock.Now
	f.stats.now = clock.Now

	f.super = f.user("Super Admin", actor.RoleSuperadmin)
	f.adminA = f.user("Admin Jalan", actor.RoleAdmin)
	f.adminB = f.user("Admin Sampah", actor.RoleAdmin)
	f.citizen = f.user("Budi Santoso", actor.RoleCitizen)
	f.other = f.user("Siti Aminah", actor.RoleCitizen)

	f.catA = f.category("Jalan Rusak", &f.adminA.ID)
	f.catB = f.category("Sampah", &f.adminB.ID)
	return f
}

func (f *fixture) user(name string, role actor.Role) actor.Actor {
	f.t.Helper()
	u := models.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.id",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	if err := f.db.Create(&u).Error; err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u.Actor()
}

func (f *fixture) category(name string, adminID *uuid.UUID) *models.Category {
	f.t.Helper()
	c := models.Category{Name: name, ResponsibleAdminID: adminID}
	if err := f.db.Create(&c).Error; err != nil {
		f.t.Fatalf("create category: %v", err)
	}
	return &c
}

func (f *fixture) input(title string, categoryID *uuid.UUID) ReportInput {
	return ReportInput{
		Title:       title,
		Description: "Mohon segera ditindaklanjuti",
		CategoryID:  categoryID,
		Wilayah:     "Sleman",
		Lokasi:      "Jl. Kaliurang km 5",
	}
}

// report files a report as the citizen in the given category (nil for none).
func (f *fixture) report(title string, categoryID *uuid.UUID) *models.Report {
	f.t.Helper()
	r, err := f.reports.Create(f.ctx, f.citizen, f.input(title, categoryID), nil)
	if err != nil {
		f.t.Fatalf("create report: %v", err)
	}
	return r
}

func (f *fixture) transition(a actor.Actor, reportID uuid.UUID, to lifecycle.Status) *models.StatusChange {
	f.t.Helper()
	change, err := f.lifecycle.Transition(f.ctx, a, reportID, to, "")
	if err != nil {
		f.t.Fatalf("transition to %s: %v", to, err)
	}
	return change
}

func (f *fixture) history(reportID uuid.UUID) []models.StatusChange {
	f.t.Helper()
	var h []models.StatusChange
	if err := f.db.Where("report_id = ?", reportID).Order("created_at ASC").Find(&h).Error; err != nil {
		f.t.Fatal(err)
	}
	return h
}

func (f *fixture) reload(reportID uuid.UUID) *models.Report {
	f.t.Helper()
	var r models.Report
	if err := f.db.First(&r, "id = ?", reportID).Error; err != nil {
		f.t.Fatal(err)
	}
	return &r
}

func upload(name, contentType string, size int) Upload {
	return Upload{Filename: name, ContentType: contentType, Size: int64(size), Body: bytes.NewReader(make([]byte, size))}
}

func ref(path string) FileRef {
	return FileRef{Path: path, ContentType: "image/jpeg", Size: 1024}
}
