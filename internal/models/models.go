package models

import "strings"

// ArtistRecord is an artist as fetched from the catalog. Records are treated as immutable.
type ArtistRecord struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity" validate:"gte=0,lte=100"`
	Genres     []string `json:"genres"`
	ImageURL   string   `json:"image,omitempty"`
}

// Member is a participant of a group room.
type Member struct {
	ID          string         `json:"id" validate:"required,max=128"`
	DisplayName string         `json:"displayName,omitempty" validate:"max=128"`
	Artists     []ArtistRecord `json:"topArtists" validate:"dive"`
}

// Room is the shared record behind a group code.
type Room struct {
	Code    string   `json:"code"`
	Members []Member `json:"members"`
}

// Artists returns the merged artist list of every member in the room.
func (r Room) Artists() []ArtistRecord {
	return MergeArtists(r.Members)
}

// HasMember reports whether a member with id is part of the room.
func (r Room) HasMember(id string) bool {
	for _, m := range r.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// TimeRange is the catalog's affinity window.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// ParseTimeRange maps s onto a known [TimeRange]; unknown values fall back to [MediumTerm].
func ParseTimeRange(s string) TimeRange {
	switch tr := TimeRange(strings.ToLower(strings.TrimSpace(s))); tr {
	case ShortTerm, MediumTerm, LongTerm:
		return tr
	default:
		return MediumTerm
	}
}

// CapArtists returns at most n artists from list, keeping order. n <= 0 means no cap.
func CapArtists(list []ArtistRecord, n int) []ArtistRecord {
	if n <= 0 || len(list) <= n {
		return list
	}
	return list[:n]
}

// MergeArtists flattens the members' artist lists in member order, keeping the first record seen
// for each artist id.
func MergeArtists(members []Member) []ArtistRecord {
	seen := make(map[string]struct{})
	var merged []ArtistRecord
	for _, m := range members {
		for _, a := range m.Artists {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			merged = append(merged, a)
		}
	}
	return merged
}

// DedupeArtists removes repeated ids from a single list, first occurrence wins.
func DedupeArtists(list []ArtistRecord) []ArtistRecord {
	return MergeArtists([]Member{{Artists: list}})
}
