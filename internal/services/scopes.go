package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
	"github.com/pengaduan/pengaduan-backend/internal/core/lifecycle"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// Relative periods accepted by ReportFilter.Period.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// ReportFilter narrows an admin query. Empty fields do not filter; set fields are ANDed.
type ReportFilter struct {
	Statuses    []lifecycle.Status
	MonthFrom   string // YYYY-MM, inclusive
	MonthTo     string // YYYY-MM, inclusive; defaults to MonthFrom
	Period      string
	Search      string
	CategoryIDs []uuid.UUID
}

type Page struct {
	Page     int
	PageSize int
}

type ReportPage struct {
	Reports  []models.Report
	Total    int64
	Page     int
	PageSize int
}

// VisibleTo limits reports to those an admin is responsible for. Superadmins see all.
func VisibleTo(a actor.Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if a.IsSuperadmin() {
			return db
		}
		return db.Where("reports.category_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).Model(&models.Category{}).Select("id").Where("responsible_admin_id = ?", a.ID))
	}
}

func (f ReportFilter) scopes(now time.Time) ([]func(*gorm.DB) *gorm.DB, error) {
	var scopes []func(*gorm.DB) *gorm.DB

	if len(f.Statuses) > 0 {
		statuses := f.Statuses
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("reports.status IN ?", statuses)
		})
	}

	if f.MonthFrom != "" || f.MonthTo != "" {
		from, to, err := MonthRange(f.MonthFrom, f.MonthTo)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, createdBetween(from, to))
	}

	if f.Period != "" {
		from, err := periodStart(f.Period, now)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, createdBetween(from, time.Time{}))
	}

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			names := db.Session(&gorm.Session{NewDB: true}).Model(&models.User{}).
				Select("id").Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern)
			return db.Where(
				db.Session(&gorm.Session{NewDB: true}).
					Where(`LOWER(reports.title) LIKE ? ESCAPE '\'`, pattern).
					Or("reports.is_anonymous = ? AND reports.submitter_id IN (?)", false, names),
			)
		})
	}

	if len(f.CategoryIDs) > 0 {
		ids := f.CategoryIDs
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("reports.category_id IN ?", ids)
		})
	}
	return scopes, nil
}

// MonthRange turns inclusive YYYY-MM bounds into a half-open [from, to) interval.
func MonthRange(fromMonth, toMonth string) (time.Time, time.Time, error) {
	if fromMonth == "" {
		fromMonth = toMonth
	}
	if toMonth == "" {
		toMonth = fromMonth
	}
	from, err := time.Parse("2006-01", fromMonth)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("month", fmt.Sprintf("%q is not a YYYY-MM month", fromMonth))
	}
	last, err := time.Parse("2006-01", toMonth)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("month", fmt.Sprintf("%q is not a YYYY-MM month", toMonth))
	}
	if last.Before(from) {
		return time.Time{}, time.Time{}, apperr.Invalid("month", "range end is before its start")
	}
	return from, last.AddDate(0, 1, 0), nil
}

func periodStart(period string, now time.Time) (time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch strings.ToLower(period) {
	case PeriodToday:
		return today, nil
	case PeriodWeek:
		return today.AddDate(0, 0, -6), nil
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperr.Invalid("period", fmt.Sprintf("unknown period %q", period))
}

// createdBetween filters created_at to [from, to); a zero to leaves the range open.
func createdBetween(from, to time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("reports.created_at >= ?", from)
		if !to.IsZero() {
			db = db.Where("reports.created_at < ?", to)
		}
		return db
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
