package thread

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
)

func TestCommentBody(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"plain", "Jalan berlubang di depan pasar", "Jalan berlubang di depan pasar", false},
		{"trimmed", "  ok  ", "ok", false},
		{"empty", "", "", true},
		{"whitespace only", "   \n\t", "", true},
		{"exactly max", strings.Repeat("a", 500), strings.Repeat("a", 500), false},
		{"over max", strings.Repeat("a", 501), "", true},
		{"multibyte counted as runes", strings.Repeat("é", 500), strings.Repeat("é", 500), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommentBody(tt.text, 500)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("CommentBody() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CommentBody() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CommentBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFollowUpBody(t *testing.T) {
	if _, err := FollowUpBody(" "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("FollowUpBody(blank) error = %v, want ErrValidation", err)
	}
	long := strings.Repeat("b", 900)
	if got, err := FollowUpBody(long); err != nil || got != long {
		t.Errorf("FollowUpBody(long) = %d chars, %v", len(got), err)
	}
}

func TestNextCreatedAtIsStrictlyIncreasing(t *testing.T) {
	last := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	if got := NextCreatedAt(last, last); !got.After(last) {
		t.Errorf("equal timestamps: got %v, want after %v", got, last)
	}
	if got := NextCreatedAt(last, last.Add(-time.Hour)); !got.After(last) {
		t.Errorf("skewed clock: got %v, want after %v", got, last)
	}
	now := last.Add(time.Second)
	if got := NextCreatedAt(last, now); !got.Equal(now) {
		t.Errorf("got %v, want %v", got, now)
	}
}

func TestRoleOf(t *testing.T) {
	if RoleOf(actor.Actor{Role: actor.RoleCitizen}) != AuthorCitizen {
		t.Error("citizen should author as citizen")
	}
	if RoleOf(actor.Actor{Role: actor.RoleAdmin}) != AuthorAdmin {
		t.Error("admin should author as admin")
	}
	if RoleOf(actor.Actor{Role: actor.RoleSuperadmin}) != AuthorAdmin {
		t.Error("superadmin should author as admin")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Comment"); err != nil || k != KindComment {
		t.Errorf("ParseKind(Comment) = %q, %v", k, err)
	}
	if k, err := ParseKind("tindak_lanjut"); err != nil || k != KindFollowUp {
		t.Errorf("ParseKind(tindak_lanjut) = %q, %v", k, err)
	}
	if _, err := ParseKind("reply"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("ParseKind(reply) error = %v", err)
	}
}
