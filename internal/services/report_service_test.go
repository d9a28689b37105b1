package services

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/evidence"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
)

func TestCreateReport(t *testing.T) {
	f := newFixture(t)
	lat, lon := -7.75, 110.38
	in := f.input("Jalan berlubang", &f.catA.ID)
	in.Latitude, in.Longitude = &lat, &lon

	files := []Upload{upload("depan.jpg", "image/jpeg", 1024), upload("surat.pdf", "application/pdf", 2048)}
	r, err := f.reports.Create(f.ctx, f.citizen, in, files)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !regexp.MustCompile(`^YK250610\d{4}$`).MatchString(r.TrackingID) {
		t.Errorf("tracking id = %q", r.TrackingID)
	}
	if r.Status != lifecycle.StatusSubmitted || r.SubmitterID != f.citizen.ID {
		t.Errorf("report = %+v", r)
	}
	if len(r.History) != 1 || r.History[0].Status != lifecycle.StatusSubmitted || r.History[0].ActorID != nil {
		t.Fatalf("history = %+v", r.History)
	}
	if r.History[0].ResolvedAdminID == nil || *r.History[0].ResolvedAdminID != f.adminA.ID {
		t.Errorf("initial entry resolved admin = %v", r.History[0].ResolvedAdminID)
	}
	if len(r.Evidence) != 2 {
		t.Fatalf("evidence = %d, want 2", len(r.Evidence))
	}
	kinds := map[evidence.MediaKind]int{}
	for _, ev := range r.Evidence {
		kinds[ev.MediaKind]++
		if ev.State != evidence.StateActive {
			t.Errorf("evidence %s state = %s", ev.ID, ev.State)
		}
	}
	if kinds[evidence.MediaImage] != 1 || kinds[evidence.MediaPDF] != 1 {
		t.Errorf("media kinds = %v", kinds)
	}
	if !f.blobs.Has(r.Evidence[0].PhotoURL) {
		t.Error("blob not stored")
	}
}

func TestCreateReportValidation(t *testing.T) {
	f := newFixture(t)
	lat := 1.0
	big := 5*1024*1024 + 1

	tests := []struct {
		name  string
		in    func() ReportInput
		files []Upload
		field string
	}{
		{"missing title", func() ReportInput { in := f.input("", nil); return in }, nil, "title"},
		{"missing wilayah", func() ReportInput { in := f.input("x", nil); in.Wilayah = " "; return in }, nil, "wilayah"},
		{"missing lokasi", func() ReportInput { in := f.input("x", nil); in.Lokasi = ""; return in }, nil, "lokasi"},
		{"half coordinates", func() ReportInput { in := f.input("x", nil); in.Latitude = &lat; return in }, nil, "coordinates"},
		{"too many files", func() ReportInput { return f.input("x", nil) }, []Upload{
			upload("1.jpg", "image/jpeg", 1), upload("2.jpg", "image/jpeg", 1),
			upload("3.jpg", "image/jpeg", 1), upload("4.jpg", "image/jpeg", 1),
		}, "evidence"},
		{"too large", func() ReportInput { return f.input("x", nil) }, []Upload{upload("1.jpg", "image/jpeg", big)}, "evidence"},
		{"wrong type", func() ReportInput { return f.input("x", nil) }, []Upload{upload("1.zip", "application/zip", 1)}, "evidence"},
		{"unknown category", func() ReportInput { id := uuid.New(); return f.input("x", &id) }, nil, "category_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reports.Create(f.ctx, f.citizen, tt.in(), tt.files)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if _, ok := apperr.Fields(err)[tt.field]; !ok {
				t.Errorf("fields = %v, want %q", apperr.Fields(err), tt.field)
			}
		})
	}

	var n int64
	f.db.Table("reports").Count(&n)
	if n != 0 {
		t.Errorf("%d reports persisted by failed creates", n)
	}
}

func TestCreateReportRetriesTrackingID(t *testing.T) {
	f := newFixture(t)
	seq := []int{1234, 1234, 5678}
	f.reports.random = func() int {
		n := seq[0]
		seq = seq[1:]
		return n
	}

	a := f.report("Pertama", nil)
	b := f.report("Kedua", nil)
	if a.TrackingID != "YK2506101234" || b.TrackingID != "YK2506105678" {
		t.Errorf("tracking ids = %s, %s", a.TrackingID, b.TrackingID)
	}

	got, err := f.reports.GetByTrackingID(f.ctx, " yk2506105678 ")
	if err != nil || got.ID != b.ID {
		t.Errorf("GetByTrackingID() = %v, %v", got, err)
	}
	if _, err := f.reports.GetByTrackingID(f.ctx, "YK0000000000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown tracking id error = %v, want ErrNotFound", err)
	}
}

func TestQueryStatusAndMonth(t *testing.T) {
	f := newFixture(t)
	at := func(day time.Time, title string, to lifecycle.Status) uuid.UUID {
		f.clock.Set(day)
		r := f.report(title, &f.catA.ID)
		if to != lifecycle.StatusSubmitted {
			f.clock.Advance(time.Minute)
			f.transition(f.super, r.ID, to)
		}
		return r.ID
	}

	june5 := at(time.Date(2025, 6, 5, 8, 0, 0, 0, time.UTC), "awal juni", lifecycle.StatusDone)
	june20 := at(time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC), "pertengahan juni", lifecycle.StatusDone)
	at(time.Date(2025, 6, 25, 8, 0, 0, 0, time.UTC), "masih diajukan", lifecycle.StatusSubmitted)
	at(time.Date(2025, 6, 28, 8, 0, 0, 0, time.UTC), "ditolak", lifecycle.StatusRejected)
	at(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "juli", lifecycle.StatusDone)
	at(time.Date(2025, 5, 31, 23, 59, 0, 0, time.UTC), "mei", lifecycle.StatusDone)

	page, err := f.reports.Query(f.ctx, f.super, ReportFilter{
		Statuses:  []lifecycle.Status{lifecycle.StatusDone},
		MonthFrom: "2025-06",
	}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Reports) != 2 {
		t.Fatalf("got %d (total %d), want 2", len(page.Reports), page.Total)
	}
	if page.Reports[0].ID != june20 || page.Reports[1].ID != june5 {
		t.Errorf("order = %s, %s; want newest first", page.Reports[0].Title, page.Reports[1].Title)
	}
	for _, r := range page.Reports {
		if r.Status != lifecycle.StatusDone {
			t.Errorf("%s has status %s", r.Title, r.Status)
		}
	}

	ranged, err := f.reports.Query(f.ctx, f.super, ReportFilter{MonthFrom: "2025-05", MonthTo: "2025-06"}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if ranged.Total != 5 {
		t.Errorf("May..June total = %d, want 5", ranged.Total)
	}
}

func TestQueryDeduplicatesOverlappingMatches(t *testing.T) {
	f := newFixture(t)
	f.report("Rumah pak Budi kebanjiran", &f.catA.ID)
	f.report("Lampu mati", &f.catA.ID)

	anon := f.input("Pohon tumbang", &f.catA.ID)
	anon.IsAnonymous = true
	if _, err := f.reports.Create(f.ctx, f.citizen, anon, nil); err != nil {
		t.Fatal(err)
	}

	page, err := f.reports.Query(f.ctx, f.super, ReportFilter{Search: "BUDI"}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2 (anonymous report must not match by name)", page.Total)
	}
	seen := map[uuid.UUID]bool{}
	for _, r := range page.Reports {
		if seen[r.ID] {
			t.Errorf("duplicate report %s", r.ID)
		}
		seen[r.ID] = true
		if r.IsAnonymous {
			t.Errorf("anonymous report matched a submitter-name search")
		}
	}

	literal, err := f.reports.Query(f.ctx, f.super, ReportFilter{Search: "%"}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if literal.Total != 0 {
		t.Errorf("%% matched %d reports, want it treated literally", literal.Total)
	}
}

func TestQueryScope(t *testing.T) {
	f := newFixture(t)
	a := f.report("A", &f.catA.ID)
	f.report("B", &f.catB.ID)
	f.report("Tanpa kategori", nil)

	page, err := f.reports.Query(f.ctx, f.adminA, ReportFilter{}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Reports[0].ID != a.ID {
		t.Errorf("admin A sees %d reports, want only its category", page.Total)
	}

	all, _ := f.reports.Query(f.ctx, f.super, ReportFilter{}, Page{})
	if all.Total != 3 {
		t.Errorf("superadmin sees %d, want 3", all.Total)
	}

	filtered, _ := f.reports.Query(f.ctx, f.super, ReportFilter{CategoryIDs: []uuid.UUID{f.catB.ID}}, Page{})
	if filtered.Total != 1 {
		t.Errorf("category filter total = %d, want 1", filtered.Total)
	}

	if _, err := f.reports.Query(f.ctx, f.citizen, ReportFilter{}, Page{}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("citizen query error = %v, want ErrUnauthorized", err)
	}
}

func TestQueryPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.report("Laporan", &f.catA.ID)
	}

	seen := map[uuid.UUID]bool{}
	for p := 1; p <= 3; p++ {
		page, err := f.reports.Query(f.ctx, f.super, ReportFilter{}, Page{Page: p, PageSize: 5})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 12 {
			t.Fatalf("total = %d", page.Total)
		}
		for _, r := range page.Reports {
			if seen[r.ID] {
				t.Errorf("report %s on two pages", r.ID)
			}
			seen[r.ID] = true
		}
	}
	if len(seen) != 12 {
		t.Errorf("pages covered %d reports, want 12", len(seen))
	}

	page, _ := f.reports.Query(f.ctx, f.super, ReportFilter{}, Page{PageSize: 1000})
	if page.PageSize != f.cfg.MaxPageSize {
		t.Errorf("page size = %d, want capped at %d", page.PageSize, f.cfg.MaxPageSize)
	}
}

func TestQueryPeriodAndBadMonth(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	f.report("lama", nil)
	f.clock.Set(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	f.report("hari ini", nil)

	page, err := f.reports.Query(f.ctx, f.super, ReportFilter{Period: PeriodToday}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Reports[0].Title != "hari ini" {
		t.Errorf("today = %d reports", page.Total)
	}
	week, _ := f.reports.Query(f.ctx, f.super, ReportFilter{Period: PeriodWeek}, Page{})
	if week.Total != 1 {
		t.Errorf("week = %d, want 1", week.Total)
	}
	month, _ := f.reports.Query(f.ctx, f.super, ReportFilter{Period: PeriodMonth}, Page{})
	if month.Total != 2 {
		t.Errorf("month = %d, want 2", month.Total)
	}

	if _, err := f.reports.Query(f.ctx, f.super, ReportFilter{MonthFrom: "June"}, Page{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad month error = %v", err)
	}
	if _, err := f.reports.Query(f.ctx, f.super, ReportFilter{MonthFrom: "2025-07", MonthTo: "2025-06"}, Page{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("inverted range error = %v", err)
	}
}

func TestListMineAndLatest(t *testing.T) {
	f := newFixture(t)
	mine := f.report("punya saya", nil)
	f.clock.Advance(time.Minute)
	if _, err := f.reports.Create(f.ctx, f.other, f.input("punya orang", nil), nil); err != nil {
		t.Fatal(err)
	}

	page, err := f.reports.ListMine(f.ctx, f.citizen, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Reports[0].ID != mine.ID {
		t.Errorf("ListMine() = %+v", page)
	}

	latest, err := f.reports.Latest(f.ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 || latest[0].Title != "punya orang" {
		t.Errorf("Latest(1) = %+v", latest)
	}
}

func TestMonthRange(t *testing.T) {
	from, to, err := MonthRange("2025-12", "")
	if err != nil {
		t.Fatal(err)
	}
	if !from.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthRange(2025-12) = %v, %v", from, to)
	}
}
