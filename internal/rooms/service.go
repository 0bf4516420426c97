package rooms

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/shared"
)

// Settings are the room limits taken from config.
type Settings struct {
	CodeLength   int
	CodeAttempts int
	MemberCap    int
}

// DefaultSettings: 6 character codes, 8 creation attempts and 20 artists per member.
var DefaultSettings = Settings{CodeLength: DefaultCodeLength, CodeAttempts: 8, MemberCap: 20}

// SettingsFrom reads the rooms section of the config. Zero values keep the defaults.
func SettingsFrom(c shared.RoomsConfig) Settings {
	s := DefaultSettings
	if c.CodeLength > 0 {
		s.CodeLength = c.CodeLength
	}
	if c.CodeAttempts > 0 {
		s.CodeAttempts = c.CodeAttempts
	}
	if c.MemberCap > 0 {
		s.MemberCap = c.MemberCap
	}
	return s
}

// Service applies code allocation, validation, capping and the touch policy on top of a [Store].
type Service struct {
	store    Store
	settings Settings
	logger   *log.Logger
	// entropy feeds code generation; nil means crypto/rand.
	entropy io.Reader
}

// NewService creates a room service.
func NewService(store Store, settings Settings, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{store: store, settings: settings, logger: logger.WithPrefix("rooms")}
}

// WithEntropy replaces the code randomness source.
func (s *Service) WithEntropy(r io.Reader) *Service {
	s.entropy = r
	return s
}

// Create allocates a fresh code, retrying on collisions. It fails with
// [shared.ErrCodeSpaceExhausted] when every attempt collides.
func (s *Service) Create(ctx context.Context) (string, error) {
	for attempt := range s.settings.CodeAttempts {
		code, err := NewCode(s.entropy, s.settings.CodeLength)
		if err != nil {
			return "", err
		}

		created, err := s.store.CreateIfAbsent(ctx, code)
		if err != nil {
			return "", err
		}
		if created {
			s.logger.Info("room created", "code", code, "attempts", attempt+1)
			return code, nil
		}
		s.logger.Debug("room code collision", "code", code)
	}
	return "", fmt.Errorf("%w: after %d attempts", shared.ErrCodeSpaceExhausted, s.settings.CodeAttempts)
}

// ValidCode normalizes code and checks it against the alphabet and configured length.
func (s *Service) ValidCode(code string) (string, error) {
	code = models.NormalizeCode(code)
	if len(code) != s.settings.CodeLength || !models.IsRoomCode(code) {
		return "", fmt.Errorf("%w: invalid room code %q", shared.ErrInvalidInput, code)
	}
	return code, nil
}

// Publish validates member, caps its artists and upserts it into the room. It returns the room
// size after the write.
func (s *Service) Publish(ctx context.Context, code string, member models.Member) (int, error) {
	code, err := s.ValidCode(code)
	if err != nil {
		return 0, err
	}
	member.Artists = models.CapArtists(member.Artists, s.settings.MemberCap)
	if err := models.Validate(models.PublishRequest{Code: code, Member: member}); err != nil {
		return 0, err
	}

	members, err := s.store.UpsertMember(ctx, code, member)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("member published", "code", code, "member", member.ID, "artists", len(member.Artists), "size", len(members))
	return len(members), nil
}

// Read returns the room. Only a reader who is a member extends the TTL; anyone else peeks.
func (s *Service) Read(ctx context.Context, code, readerID string) (models.Room, error) {
	code, err := s.ValidCode(code)
	if err != nil {
		return models.Room{}, err
	}

	members, err := s.store.ReadMembers(ctx, code, false)
	if err != nil {
		return models.Room{}, err
	}
	room := models.Room{Code: code, Members: members}

	if readerID != "" && room.HasMember(readerID) {
		if _, err := s.store.ReadMembers(ctx, code, true); err != nil {
			s.logger.Warn("failed to touch room", "code", code, "error", err)
		}
	}
	return room, nil
}

// Artists returns the deduplicated union of every member's artists.
func (s *Service) Artists(ctx context.Context, code, readerID string) ([]models.ArtistRecord, error) {
	room, err := s.Read(ctx, code, readerID)
	if err != nil {
		return nil, err
	}
	return room.Artists(), nil
}
