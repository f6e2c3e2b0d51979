package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// LifecycleHook is notified when a table profile is replaced by Reload.
// Hooks run synchronously after the new profile is visible.
type LifecycleHook interface {
	OnReload(ctx context.Context, tableName string, previous, current *schema.Profile) error
}

// LifecycleHookFunc adapts a function to LifecycleHook.
type LifecycleHookFunc func(ctx context.Context, tableName string, previous, current *schema.Profile) error

// OnReload calls f.
func (f LifecycleHookFunc) OnReload(ctx context.Context, tableName string, previous, current *schema.Profile) error {
	return f(ctx, tableName, previous, current)
}

// LifecycleManager manages reload hooks.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// RegisterHook adds a hook.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

// ExecuteReloadHooks runs every hook in registration order and stops at the
// first error.
func (lm *LifecycleManager) ExecuteReloadHooks(ctx context.Context, tableName string, previous, current *schema.Profile) error {
	lm.mu.RLock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	lm.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook.OnReload(ctx, tableName, previous, current); err != nil {
			return fmt.Errorf("reload hook failed for table %s: %w", tableName, err)
		}
	}
	return nil
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
