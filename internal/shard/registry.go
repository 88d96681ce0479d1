// Package shard holds the registry of named task groups and the subshard
// selection rules applied to the items a task group runs.
package shard

import (
	"context"
	"sync"

	disperrors "github.com/maxkimambo/shardrun/internal/errors"
)

// RunFunc is the body of a task group. Failures should be reported through
// run.Reporter; a returned error is treated as unexpected.
type RunFunc func(ctx context.Context, run *Run) error

// TaskGroup is a named, registered unit of work.
type TaskGroup struct {
	Name string
	Run  RunFunc

	// Subshards lists the named subshards, for diagnostics only
	Subshards []string
}

// Registry maps shard names to task groups, keeping registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	groups map[string]*TaskGroup
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]*TaskGroup),
	}
}

// Register adds a task group. A name may be registered only once; the first
// registration is kept.
func (r *Registry) Register(name string, run RunFunc, subshards ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[name]; exists {
		return disperrors.NewDuplicateShardError(name)
	}
	r.groups[name] = &TaskGroup{Name: name, Run: run, Subshards: subshards}
	r.order = append(r.order, name)
	return nil
}

// Select returns the task group registered under name.
func (r *Registry) Select(name string) (*TaskGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.groups[name]
	if !ok {
		return nil, disperrors.NewUnknownShardError(name, r.namesLocked())
	}
	return group, nil
}

// Names returns shard names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Groups returns task groups in registration order
func (r *Registry) Groups() []*TaskGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]*TaskGroup, 0, len(r.order))
	for _, name := range r.order {
		groups = append(groups, r.groups[name])
	}
	return groups
}

func (r *Registry) namesLocked() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
