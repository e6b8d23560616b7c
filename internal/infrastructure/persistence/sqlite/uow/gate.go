package uow

import (
	"context"
	"sync"

	"paymonitor/internal/ports"
)

// Gate serializes writes to the store and runs commit hooks in commit order.
// Hooks run while the gate is held: they may read but must not write.
type Gate struct {
	mu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []func(ctx context.Context)
}

func NewGate() *Gate {
	return &Gate{}
}

// OnCommit registers hook to run after every successful write.
func (g *Gate) OnCommit(hook func(ctx context.Context)) {
	if hook == nil {
		return
	}
	g.hooksMu.Lock()
	g.hooks = append(g.hooks, hook)
	g.hooksMu.Unlock()
}

// Do runs fn exclusively and fires the commit hooks when it succeeds.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}

	g.hooksMu.RLock()
	hooks := make([]func(context.Context), len(g.hooks))
	copy(hooks, g.hooks)
	g.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(context.WithoutCancel(ctx))
	}
	return nil
}

var _ ports.CommitNotifier = (*Gate)(nil)
