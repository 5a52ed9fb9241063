package repository

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func newRoomID() string {
	return "room_" + uuid.New().String()[:8]
}

// NewListingID returns a fresh listing identifier.
func NewListingID() string {
	return "lst_" + uuid.New().String()[:8]
}

func newMessageID(ts time.Time) string {
	return ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String()
}

// nextMessageTime returns now truncated to milliseconds, bumped to one
// millisecond after last when it would not sort strictly after it.
func nextMessageTime(last, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Millisecond)
	if last.IsZero() || now.After(last) {
		return now
	}
	return last.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with wildcards in s escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
