package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// ProfileLoader builds a table profile from the catalog.
type ProfileLoader interface {
	Profile(ctx context.Context, table string) (*schema.Profile, error)
}

// TableMetadata describes a registered logical table.
type TableMetadata struct {
	// TableName is the logical table name.
	TableName string

	// Profile is the resolved shape of the table. It is immutable.
	Profile *schema.Profile

	// LoadedAt is when Profile was read from the catalog.
	LoadedAt time.Time

	// Reloads counts explicit reloads since registration.
	Reloads int
}

// TableRegistry holds the profile of every logical table. Profiles are
// resolved once at registration and only change through Reload.
type TableRegistry struct {
	mu        sync.RWMutex
	tables    map[string]*TableMetadata
	loader    ProfileLoader
	lifecycle *LifecycleManager
}

// NewTableRegistry creates a registry resolving profiles through loader.
func NewTableRegistry(loader ProfileLoader, lifecycle *LifecycleManager) *TableRegistry {
	if lifecycle == nil {
		lifecycle = NewLifecycleManager()
	}
	return &TableRegistry{
		tables:    make(map[string]*TableMetadata),
		loader:    loader,
		lifecycle: lifecycle,
	}
}

// Register resolves and stores the profile of tableName. Registering a table
// twice keeps the first profile.
func (tr *TableRegistry) Register(ctx context.Context, tableName string) error {
	if tableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	tr.mu.RLock()
	_, exists := tr.tables[tableName]
	tr.mu.RUnlock()
	if exists {
		return nil
	}

	profile, err := tr.loader.Profile(ctx, tableName)
	if err != nil {
		return err
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, exists := tr.tables[tableName]; !exists {
		tr.tables[tableName] = &TableMetadata{
			TableName: tableName,
			Profile:   profile,
			LoadedAt:  time.Now(),
		}
	}
	return nil
}

// Profile returns the current profile of tableName.
func (tr *TableRegistry) Profile(tableName string) (*schema.Profile, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	metadata, exists := tr.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("table %q is not registered", tableName)
	}
	return metadata.Profile, nil
}

// GetMetadata returns a copy of the metadata of tableName.
func (tr *TableRegistry) GetMetadata(tableName string) (*TableMetadata, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	metadata, exists := tr.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("table %q is not registered", tableName)
	}
	copied := *metadata
	return &copied, nil
}

// Reload re-reads the catalog for tableName and swaps in the new profile.
// On failure the previous profile stays in place.
func (tr *TableRegistry) Reload(ctx context.Context, tableName string) error {
	tr.mu.RLock()
	_, exists := tr.tables[tableName]
	tr.mu.RUnlock()
	if !exists {
		return fmt.Errorf("table %q is not registered", tableName)
	}

	profile, err := tr.loader.Profile(ctx, tableName)
	if err != nil {
		return err
	}

	tr.mu.Lock()
	current := tr.tables[tableName]
	previous := current.Profile
	tr.tables[tableName] = &TableMetadata{
		TableName: tableName,
		Profile:   profile,
		LoadedAt:  time.Now(),
		Reloads:   current.Reloads + 1,
	}
	tr.mu.Unlock()

	return tr.lifecycle.ExecuteReloadHooks(ctx, tableName, previous, profile)
}

// List returns the registered table names in sorted order.
func (tr *TableRegistry) List() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	names := make([]string, 0, len(tr.tables))
	for name := range tr.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tables.
func (tr *TableRegistry) Count() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.tables)
}

// GetLifecycleManager returns the lifecycle manager.
func (tr *TableRegistry) GetLifecycleManager() *LifecycleManager {
	return tr.lifecycle
}
