// package rooms implements the ephemeral group sessions: short shareable codes mapping to a TTL bound
// list of members, each holding that member's latest top artist snapshot.
//
// A room that has expired is indistinguishable from one that never existed. Writes always extend
// the lifetime; reads extend it only when asked to.
package rooms

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/desertthunder/cosmic/internal/models"
)

// KeyPrefix namespaces room records in shared key-value stores.
const KeyPrefix = "room:"

// DefaultTTL is how long an untouched room lives.
const DefaultTTL = 4 * time.Hour

// Store persists rooms. Implementations must be safe for concurrent use.
type Store interface {
	// CreateIfAbsent creates an empty room at code with a fresh TTL. It reports false, leaving the
	// room unchanged, when a live room already holds the code.
	CreateIfAbsent(ctx context.Context, code string) (bool, error)
	// UpsertMember replaces the member with the same id in place, or appends it, and refreshes the
	// TTL. A missing or expired room is recreated. It returns the members after the write.
	UpsertMember(ctx context.Context, code string, member models.Member) ([]models.Member, error)
	// ReadMembers returns the members of code, or none when the room is missing or expired. When
	// touch is set and the room has members, the TTL is refreshed.
	ReadMembers(ctx context.Context, code string, touch bool) ([]models.Member, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Key returns the store key of code.
func Key(code string) string { return KeyPrefix + code }

// DecodeMembers parses a stored record. Undecodable records read as an empty room.
func DecodeMembers(raw []byte) []models.Member {
	if len(raw) == 0 {
		return []models.Member{}
	}
	var members []models.Member
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		return []models.Member{}
	}
	return members
}

// EncodeMembers serializes members as a JSON array, never null.
func EncodeMembers(members []models.Member) ([]byte, error) {
	if members == nil {
		members = []models.Member{}
	}
	return json.Marshal(members)
}

// ReplaceMember replaces the member with m's id or appends m, preserving arrival order.
func ReplaceMember(members []models.Member, m models.Member) []models.Member {
	if i := slices.IndexFunc(members, func(x models.Member) bool { return x.ID == m.ID }); i >= 0 {
		members[i] = m
		return members
	}
	return append(members, m)
}
