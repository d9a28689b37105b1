// Package thread validates comment and follow-up entries.
package thread

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
)

type Kind string

const (
	KindComment  Kind = "comment"
	KindFollowUp Kind = "followup"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindComment:
		return KindComment, nil
	case KindFollowUp, "follow_up", "tindak_lanjut":
		return KindFollowUp, nil
	}
	return "", apperr.Invalid("kind", fmt.Sprintf("unknown thread kind %q", s))
}

type AuthorRole string

const (
	AuthorCitizen AuthorRole = "citizen"
	AuthorAdmin   AuthorRole = "admin"
)

func RoleOf(a actor.Actor) AuthorRole {
	if a.IsStaff() {
		return AuthorAdmin
	}
	return AuthorCitizen
}

// CommentBody trims the text and enforces 1..maxRunes characters.
func CommentBody(text string, maxRunes int) (string, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return "", apperr.Invalid("text", "comment must not be empty")
	}
	if n := utf8.RuneCountInString(body); n > maxRunes {
		return "", apperr.Invalid("text", fmt.Sprintf("comment is %d characters, max %d", n, maxRunes))
	}
	return body, nil
}

// FollowUpBody requires non-empty text.
func FollowUpBody(text string) (string, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return "", apperr.Invalid("deskripsi", "follow-up description is required")
	}
	return body, nil
}

// NextCreatedAt keeps entries of one report strictly ordered by created_at.
func NextCreatedAt(last, now time.Time) time.Time {
	if !now.After(last) {
		return last.Add(time.Microsecond)
	}
	return now
}
