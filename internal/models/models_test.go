package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/cosmic/internal/shared"
)

func TestMergeArtists(t *testing.T) {
	t.Run("First Occurrence Wins", func(t *testing.T) {
		members := []Member{
			{ID: "m1", Artists: []ArtistRecord{{ID: "X", Name: "first"}}},
			{ID: "m2", Artists: []ArtistRecord{{ID: "X", Name: "second"}, {ID: "Y", Name: "y"}}},
		}

		merged := MergeArtists(members)
		if len(merged) != 2 {
			t.Fatalf("expected 2 artists, got %d", len(merged))
		}
		if merged[0].ID != "X" || merged[0].Name != "first" {
			t.Errorf("expected first-seen record for X, got %+v", merged[0])
		}
		if merged[1].ID != "Y" {
			t.Errorf("expected Y second, got %s", merged[1].ID)
		}
	})

	t.Run("Three Member Room", func(t *testing.T) {
		room := Room{Code: "AB12CD", Members: []Member{
			{ID: "1", Artists: []ArtistRecord{{ID: "a1", Genres: []string{"Pop"}}}},
			{ID: "2", Artists: []ArtistRecord{{ID: "a2", Genres: []string{"Pop", "Rock"}}}},
			{ID: "3", Artists: []ArtistRecord{{ID: "a1", Genres: []string{"Pop"}}}},
		}}

		merged := room.Artists()
		if len(merged) != 2 || merged[0].ID != "a1" || merged[1].ID != "a2" {
			t.Errorf("expected [a1 a2], got %+v", merged)
		}
		if !room.HasMember("2") || room.HasMember("4") {
			t.Error("unexpected membership result")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := MergeArtists(nil); len(got) != 0 {
			t.Errorf("expected no artists, got %d", len(got))
		}
	})

	t.Run("DedupeArtists", func(t *testing.T) {
		got := DedupeArtists([]ArtistRecord{{ID: "a"}, {ID: "b"}, {ID: "a"}})
		if len(got) != 2 {
			t.Errorf("expected 2 artists, got %d", len(got))
		}
	})
}

func TestCapArtists(t *testing.T) {
	list := make([]ArtistRecord, 30)
	if got := CapArtists(list, 20); len(got) != 20 {
		t.Errorf("expected 20 artists, got %d", len(got))
	}
	if got := CapArtists(list[:5], 20); len(got) != 5 {
		t.Errorf("expected short list unchanged, got %d", len(got))
	}
	if got := CapArtists(list, 0); len(got) != 30 {
		t.Errorf("expected no cap for 0, got %d", len(got))
	}
}

func TestParseTimeRange(t *testing.T) {
	tc := []struct {
		in   string
		want TimeRange
	}{
		{"short_term", ShortTerm},
		{" LONG_TERM ", LongTerm},
		{"medium_term", MediumTerm},
		{"", MediumTerm},
		{"forever", MediumTerm},
	}
	for _, tt := range tc {
		if got := ParseTimeRange(tt.in); got != tt.want {
			t.Errorf("ParseTimeRange(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid Publish", func(t *testing.T) {
		req := PublishRequest{Code: "AB23CD", Member: Member{ID: "m1", Artists: []ArtistRecord{{ID: "a1", Popularity: 80}}}}
		if err := Validate(req); err != nil {
			t.Errorf("expected valid request, got %v", err)
		}
	})

	t.Run("Missing Member ID", func(t *testing.T) {
		err := Validate(PublishRequest{Code: "AB23CD"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if !strings.Contains(err.Error(), "Member.ID is required") {
			t.Errorf("expected field message, got %v", err)
		}
	})

	t.Run("Malformed Code", func(t *testing.T) {
		err := Validate(PublishRequest{Code: "AB-0CD", Member: Member{ID: "m1"}})
		if err == nil || !strings.Contains(err.Error(), "valid room code") {
			t.Errorf("expected room code error, got %v", err)
		}
	})

	t.Run("Popularity Range", func(t *testing.T) {
		err := Validate(Member{ID: "m1", Artists: []ArtistRecord{{ID: "a", Popularity: 101}}})
		if err == nil {
			t.Error("expected popularity above 100 to fail")
		}
	})
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" ab23cd "); got != "AB23CD" {
		t.Errorf("expected AB23CD, got %s", got)
	}
}

func TestIsRoomCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"AB12CD", true},
		{"ABC0IO", true},
		{"", false},
		{"ab12cd", false},
		{"AB-2CD", false},
		{"AB 2CD", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := IsRoomCode(tt.code); got != tt.want {
				t.Errorf("IsRoomCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
