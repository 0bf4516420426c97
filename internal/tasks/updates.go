package tasks

import (
	"fmt"

	"github.com/desertthunder/cosmic/internal/models"
)

// SyncUpdate represents a progress event of the polling loop.
//
// Used to send real-time updates to the CLI or UI layer for display.
type SyncUpdate struct {
	Phase     Phase                 // Loop phase
	Iteration int                   // 1-based iteration number
	Message   string                // Human-readable message for display
	Artists   []models.ArtistRecord // Merged artists, set on [Merged] updates
	Members   int                   // Room size, when known
	Err       error                 // Set on [Failed] and [Unauthenticated] updates
}

// Operation phase enumeration
type Phase int

const (
	FetchTop Phase = iota
	Publish
	ReadRoom
	Merged
	Failed
	Unauthenticated
	Stopped
)

func (p Phase) String() string {
	switch p {
	case FetchTop:
		return "fetch_top"
	case Publish:
		return "publish"
	case ReadRoom:
		return "read_room"
	case Merged:
		return "merged"
	case Failed:
		return "failed"
	case Unauthenticated:
		return "unauthenticated"
	case Stopped:
		return "stopped"
	default:
		return ""
	}
}

func fetchTopUpdate(n int, catalog string) SyncUpdate {
	return SyncUpdate{Phase: FetchTop, Iteration: n, Message: fmt.Sprintf("Fetching top artists from %s...", catalog)}
}

func publishUpdate(n int, code string, count int) SyncUpdate {
	return SyncUpdate{Phase: Publish, Iteration: n, Message: fmt.Sprintf("Publishing %d artists to %s...", count, code)}
}

func readRoomUpdate(n int, code string) SyncUpdate {
	return SyncUpdate{Phase: ReadRoom, Iteration: n, Message: fmt.Sprintf("Reading room %s...", code)}
}

func mergedUpdate(n int, artists []models.ArtistRecord, members int) SyncUpdate {
	msg := fmt.Sprintf("%d artists", len(artists))
	if members > 0 {
		msg = fmt.Sprintf("%d artists from %d members", len(artists), members)
	}
	return SyncUpdate{Phase: Merged, Iteration: n, Message: msg, Artists: artists, Members: members}
}

func failedUpdate(n int, err error) SyncUpdate {
	return SyncUpdate{Phase: Failed, Iteration: n, Message: fmt.Sprintf("✗ %v", err), Err: err}
}

func unauthenticatedUpdate(n int, err error) SyncUpdate {
	return SyncUpdate{Phase: Unauthenticated, Iteration: n, Message: "Not authenticated, run 'cosmic spotify auth'", Err: err}
}
