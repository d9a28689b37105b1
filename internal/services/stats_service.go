package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/core/thread"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

type AdminStats struct {
	ReportCount   int64                      `json:"report_count"`
	ByStatus      map[lifecycle.Status]int64 `json:"by_status"`
	CommentCount  int64                      `json:"comment_count"`
	FollowUpCount int64                      `json:"followup_count"`
}

type PeriodCount struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

type Trends struct {
	Reports   []PeriodCount `json:"reports"`
	Comments  []PeriodCount `json:"comments"`
	FollowUps []PeriodCount `json:"followups"`
}

type CategoryCount struct {
	CategoryID *uuid.UUID `json:"category_id"`
	Name       string     `json:"name"`
	Count      int64      `json:"count"`
}

const (
	TrendByMonth = "month"
	TrendByWeek  = "week"
)

type StatsService struct {
	db      *gorm.DB
	periods int
	now     func() time.Time
}

func NewStatsService(db *gorm.DB, periods int) *StatsService {
	return &StatsService{db: db, periods: periods, now: utcNow}
}

// Overview counts the reports the admin can see, by status.
func (s *StatsService) Overview(ctx context.Context, a actor.Actor) (*AdminStats, error) {
	if !a.IsStaff() {
		return nil, apperr.ErrUnauthorized
	}
	db := s.db.WithContext(ctx)

	var rows []struct {
		Status lifecycle.Status
		Count  int64
	}
	err := db.Model(&models.Report{}).Scopes(VisibleTo(a)).
		Select("reports.status AS status, COUNT(*) AS count").
		Group("reports.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	stats := &AdminStats{ByStatus: make(map[lifecycle.Status]int64, len(lifecycle.All))}
	for _, st := range lifecycle.All {
		stats.ByStatus[st] = 0
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.ReportCount += r.Count
	}

	visible := visibleReportIDs(db, a)
	if err := db.Model(&models.ThreadEntry{}).
		Where("kind = ? AND report_id IN (?)", thread.KindComment, visible).
		Count(&stats.CommentCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	if err := db.Model(&models.ThreadEntry{}).
		Where("kind = ? AND report_id IN (?)", thread.KindFollowUp, visible).
		Count(&stats.FollowUpCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count follow-ups: %w", err)
	}
	return stats, nil
}

// Trends buckets reports, comments and follow-ups by month or ISO week. Buckets are
// computed here rather than in SQL so every dialect agrees on them.
func (s *StatsService) Trends(ctx context.Context, a actor.Actor, by string) (*Trends, error) {
	if !a.IsStaff() {
		return nil, apperr.ErrUnauthorized
	}
	if by == "" {
		by = TrendByMonth
	}
	if by != TrendByMonth && by != TrendByWeek {
		return nil, apperr.Invalid("period", "must be week or month")
	}

	since := trendStart(s.now(), by, s.periods)
	db := s.db.WithContext(ctx)
	visible := visibleReportIDs(db, a)

	var reportTimes, commentTimes, followUpTimes []time.Time
	if err := db.Model(&models.Report{}).Scopes(VisibleTo(a)).
		Where("reports.created_at >= ?", since).
		Pluck("reports.created_at", &reportTimes).Error; err != nil {
		return nil, fmt.Errorf("failed to load report times: %w", err)
	}
	if err := db.Model(&models.ThreadEntry{}).
		Where("kind = ? AND created_at >= ? AND report_id IN (?)", thread.KindComment, since, visible).
		Pluck("created_at", &commentTimes).Error; err != nil {
		return nil, fmt.Errorf("failed to load comment times: %w", err)
	}
	if err := db.Model(&models.ThreadEntry{}).
		Where("kind = ? AND created_at >= ? AND report_id IN (?)", thread.KindFollowUp, since, visible).
		Pluck("created_at", &followUpTimes).Error; err != nil {
		return nil, fmt.Errorf("failed to load follow-up times: %w", err)
	}

	return &Trends{
		Reports:   bucket(reportTimes, by),
		Comments:  bucket(commentTimes, by),
		FollowUps: bucket(followUpTimes, by),
	}, nil
}

// ByCategory counts visible reports per category; reports without a category
// are grouped under a nil id.
func (s *StatsService) ByCategory(ctx context.Context, a actor.Actor) ([]CategoryCount, error) {
	if !a.IsStaff() {
		return nil, apperr.ErrUnauthorized
	}
	var rows []CategoryCount
	err := s.db.WithContext(ctx).Model(&models.Report{}).Scopes(VisibleTo(a)).
		Select("reports.category_id AS category_id, COALESCE(categories.name, '') AS name, COUNT(*) AS count").
		Joins("LEFT JOIN categories ON categories.id = reports.category_id").
		Group("reports.category_id, categories.name").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	return rows, nil
}

func visibleReportIDs(db *gorm.DB, a actor.Actor) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(&models.Report{}).Select("reports.id").Scopes(VisibleTo(a))
}

func trendStart(now time.Time, by string, periods int) time.Time {
	now = now.UTC()
	if by == TrendByWeek {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset-7*(periods-1))
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(periods - 1), 0)
}

// bucket groups timestamps and returns the newest period first.
func bucket(times []time.Time, by string) []PeriodCount {
	counts := map[string]int64{}
	for _, t := range times {
		counts[periodLabel(t.UTC(), by)]++
	}
	out := make([]PeriodCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, PeriodCount{Period: p, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out
}

func periodLabel(t time.Time, by string) string {
	if by == TrendByWeek {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return t.Format("2006-01")
}
