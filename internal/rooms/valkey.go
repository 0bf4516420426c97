package rooms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/valkey-io/valkey-go"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/shared"
)

// upsertAttempts bounds the optimistic WATCH/EXEC retries of one upsert.
const upsertAttempts = 5

var errTxAborted = errors.New("transaction aborted by concurrent write")

// ValkeyStore keeps rooms in a Valkey (or Redis) server as JSON strings with a key expiry.
type ValkeyStore struct {
	client valkey.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewValkeyStore connects to the server described by cfg.
func NewValkeyStore(cfg shared.ValkeyConfig, ttl time.Duration, logger *log.Logger) (*ValkeyStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: valkey address is required", shared.ErrMissingConfig)
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return NewValkeyStoreWithClient(client, ttl, logger), nil
}

// NewValkeyStoreWithClient wraps an existing client.
func NewValkeyStoreWithClient(client valkey.Client, ttl time.Duration, logger *log.Logger) *ValkeyStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ValkeyStore{client: client, ttl: ttl, logger: logger.WithPrefix("valkey")}
}

// millis is the TTL in whole milliseconds, rounded up so short TTLs never reach zero.
func (s *ValkeyStore) millis() int64 {
	return int64((s.ttl + time.Millisecond - 1) / time.Millisecond)
}

// Close releases the client connections.
func (s *ValkeyStore) Close() { s.client.Close() }

func (s *ValkeyStore) CreateIfAbsent(ctx context.Context, code string) (bool, error) {
	cmd := s.client.B().Set().Key(Key(code)).Value("[]").Nx().PxMilliseconds(s.millis()).Build()
	err := s.client.Do(ctx, cmd).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: create room: %v", shared.ErrServiceUnavailable, err)
	}
	return true, nil
}

// UpsertMember runs a WATCH/GET/MULTI/SET/EXEC transaction so concurrent publishers to one room do
// not drop each other's writes. An aborted transaction is retried.
func (s *ValkeyStore) UpsertMember(ctx context.Context, code string, member models.Member) ([]models.Member, error) {
	key := Key(code)
	var members []models.Member

	for attempt := range upsertAttempts {
		err := s.client.Dedicated(func(c valkey.DedicatedClient) error {
			if err := c.Do(ctx, c.B().Watch().Key(key).Build()).Error(); err != nil {
				return err
			}

			raw, err := c.Do(ctx, c.B().Get().Key(key).Build()).ToString()
			if err != nil && !valkey.IsValkeyNil(err) {
				return err
			}
			members = ReplaceMember(DecodeMembers([]byte(raw)), member)
			body, err := EncodeMembers(members)
			if err != nil {
				return err
			}

			resps := c.DoMulti(ctx,
				c.B().Multi().Build(),
				c.B().Set().Key(key).Value(string(body)).PxMilliseconds(s.millis()).Build(),
				c.B().Exec().Build(),
			)
			for _, r := range resps[:len(resps)-1] {
				if err := r.Error(); err != nil {
					return err
				}
			}
			if err := resps[len(resps)-1].Error(); err != nil {
				if valkey.IsValkeyNil(err) {
					return errTxAborted
				}
				return err
			}
			return nil
		})

		switch {
		case err == nil:
			return members, nil
		case errors.Is(err, errTxAborted):
			s.logger.Debug("upsert retried", "code", code, "attempt", attempt+1)
			continue
		default:
			return nil, fmt.Errorf("%w: upsert member: %v", shared.ErrServiceUnavailable, err)
		}
	}
	return nil, fmt.Errorf("%w: upsert member: %v", shared.ErrServiceUnavailable, errTxAborted)
}

func (s *ValkeyStore) ReadMembers(ctx context.Context, code string, touch bool) ([]models.Member, error) {
	key := Key(code)
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return []models.Member{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read room: %v", shared.ErrServiceUnavailable, err)
	}

	members := DecodeMembers([]byte(raw))
	if touch && len(members) > 0 {
		if err := s.client.Do(ctx, s.client.B().Pexpire().Key(key).Milliseconds(s.millis()).Build()).Error(); err != nil {
			s.logger.Warn("failed to extend room ttl", "code", code, "error", err)
		}
	}
	return members, nil
}
