// package services defines the [Catalog] and [RoomClient] interfaces and implements them for
// Spotify and the cosmic group API.
package services

import (
	"context"

	"github.com/desertthunder/cosmic/internal/models"
)

// Catalog is a music catalog that can answer "who are my top artists".
type Catalog interface {
	// TopArtists returns up to limit of the listener's top artists over tr, most listened first.
	TopArtists(ctx context.Context, tr models.TimeRange, limit int) ([]models.ArtistRecord, error)

	// Name returns the name of the catalog (e.g., "Spotify")
	Name() string
}

// RoomClient talks to the shared group store, either remotely or in process.
type RoomClient interface {
	// CreateRoom allocates a new room and returns its code.
	CreateRoom(ctx context.Context) (string, error)

	// Publish writes member into the room at code and returns the member count.
	Publish(ctx context.Context, code string, member models.Member) (int, error)

	// Room reads the room at code on behalf of memberID.
	Room(ctx context.Context, code, memberID string) (models.Room, error)
}
