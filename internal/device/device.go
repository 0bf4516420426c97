// package device provides the stable identity a client uses as its member id in group rooms.
//
// The id is generated once and reused, so republishing from the same device replaces the member
// entry instead of adding a new one.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileName is the name of the file holding the device id inside the config directory.
const FileName = "device_id"

// Provider returns the id of the current device, creating it on first use.
type Provider interface {
	ID() (string, error)
}

// FileProvider keeps the id in a file under dir.
type FileProvider struct {
	dir string
	mu  sync.Mutex
}

// NewFileProvider creates a [FileProvider] rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Path returns the file the id is stored in.
func (p *FileProvider) Path() string { return filepath.Join(p.dir, FileName) }

func (p *FileProvider) ID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.Path())
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(p.Path(), []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write device id: %w", err)
	}
	return id, nil
}

// MemoryProvider holds an id for the life of the process.
type MemoryProvider struct {
	once sync.Once
	id   string
}

// NewMemoryProvider returns a provider fixed to id, or generating one lazily when id is empty.
func NewMemoryProvider(id string) *MemoryProvider {
	return &MemoryProvider{id: id}
}

func (p *MemoryProvider) ID() (string, error) {
	p.once.Do(func() {
		if p.id == "" {
			p.id = uuid.NewString()
		}
	})
	return p.id, nil
}

// Repository is the subset of the device repository a [StoreProvider] needs.
type Repository interface {
	DeviceID(ctx context.Context, name string) (string, bool, error)
	SaveDevice(ctx context.Context, name, id string) (string, error)
}

// StoreProvider keeps the id in the database under a device name.
type StoreProvider struct {
	repo Repository
	name string
}

// NewStoreProvider creates a [StoreProvider]. An empty name means "default".
func NewStoreProvider(repo Repository, name string) *StoreProvider {
	if name == "" {
		name = "default"
	}
	return &StoreProvider{repo: repo, name: name}
}

func (p *StoreProvider) ID() (string, error) {
	ctx := context.Background()
	id, ok, err := p.repo.DeviceID(ctx, p.name)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	return p.repo.SaveDevice(ctx, p.name, uuid.NewString())
}

var (
	_ Provider = (*FileProvider)(nil)
	_ Provider = (*MemoryProvider)(nil)
	_ Provider = (*StoreProvider)(nil)
)
