// Package lifecycle contains the pure report status state machine. No I/O.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/apperr"
)

// Status values are persisted in the portal's own vocabulary.
type Status string

const (
	StatusSubmitted  Status = "Diajukan"
	StatusProcessing Status = "Diproses"
	StatusDone       Status = "Selesai"
	StatusRejected   Status = "Ditolak"
)

// All lists statuses in lifecycle order.
var All = []Status{StatusSubmitted, StatusProcessing, StatusDone, StatusRejected}

var aliases = map[string]Status{
	"diajukan":   StatusSubmitted,
	"submitted":  StatusSubmitted,
	"diproses":   StatusProcessing,
	"processing": StatusProcessing,
	"selesai":    StatusDone,
	"done":       StatusDone,
	"ditolak":    StatusRejected,
	"rejected":   StatusRejected,
}

// Parse accepts the stored names and their English aliases, case-insensitively.
func Parse(s string) (Status, error) {
	st, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", apperr.Invalid("status", fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusRejected
}

// InitialStatus is the status of the synthetic first history entry.
func InitialStatus() Status {
	return StatusSubmitted
}

var successors = map[Status][]Status{
	StatusSubmitted:  {StatusProcessing, StatusDone, StatusRejected},
	StatusProcessing: {StatusDone, StatusRejected},
}

// CanTransition reports whether from -> to is an edge of the state machine.
// Terminal states have no outgoing edges and self-loops are not edges.
func CanTransition(from, to Status) error {
	if from.IsTerminal() {
		return apperr.Wrap(apperr.ErrInvalidTransition, "report is already %s", from)
	}
	for _, next := range successors[from] {
		if next == to {
			return nil
		}
	}
	return apperr.Wrap(apperr.ErrInvalidTransition, "cannot move from %s to %s", from, to)
}

// NextTimestamp keeps history timestamps strictly increasing when clocks disagree,
// so created_at alone orders the history.
func NextTimestamp(last, now time.Time) time.Time {
	if !now.After(last) {
		return last.Add(time.Microsecond)
	}
	return now
}

// IdempotencyKey identifies one transition attempt: retries that land in the same
// bucket resolve to the entry that was already written.
func IdempotencyKey(reportID uuid.UUID, to Status, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	return fmt.Sprintf("%s:%s:%d", reportID, to, at.UTC().Truncate(bucket).Unix())
}

// InitialKey marks the history entry written when a report is created. It never
// collides with an IdempotencyKey, so no transition can replay it.
func InitialKey(reportID uuid.UUID) string {
	return reportID.String() + ":initial"
}

// DefaultNote is the riwayat description used when the admin leaves the note empty.
func DefaultNote(status Status, wilayah string) string {
	switch status {
	case StatusSubmitted:
		return fmt.Sprintf("Pengaduan telah diterima dan terdaftar dalam sistem oleh Pemerintah wilayah %s", wilayah)
	case StatusProcessing:
		return fmt.Sprintf("Aduan sedang dalam tahap penanganan oleh tim teknis wilayah %s", wilayah)
	case StatusDone:
		return fmt.Sprintf("Aduan telah ditanggapi dan diselesaikan oleh tim wilayah %s", wilayah)
	case StatusRejected:
		return "Aduan tidak dapat diproses karena kekurangan data pendukung"
	default:
		return "Status laporan diperbarui"
	}
}
