// Package provider defines the pluggable platform provider contract and the
// registry the runner resolves providers from. Adding a platform means
// registering one implementation; nothing else in the daemon changes.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"publishd/internal/scheduler"
)

// Result is what a successful schedule call reports back to the scheduler.
type Result struct {
	// ProviderTaskID is the platform-native identifier of the published
	// resource, used later for cleanup.
	ProviderTaskID string
}

// Scheduler publishes one task to its platform.
type Scheduler interface {
	Schedule(ctx context.Context, task scheduler.PublishTask) (Result, error)
}

// Cleaner retracts a previously scheduled publish. Platforms with nothing to
// clean up simply don't register one.
type Cleaner interface {
	Cleanup(ctx context.Context, task scheduler.PublishTask) error
}

// Registry maps platform keys to their provider implementations.
type Registry struct {
	schedulers map[string]Scheduler
	cleaners   map[string]Cleaner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schedulers: make(map[string]Scheduler),
		cleaners:   make(map[string]Cleaner),
	}
}

// Register adds the schedule provider for a platform key.
func (r *Registry) Register(platform string, s Scheduler) {
	r.schedulers[platform] = s
}

// RegisterCleaner adds the cleanup provider for a platform key.
func (r *Registry) RegisterCleaner(platform string, c Cleaner) {
	r.cleaners[platform] = c
}

// Scheduler resolves the schedule provider for a platform. An unknown key is
// an error, never a silent no-op: a misconfigured task must not appear to
// succeed.
func (r *Registry) Scheduler(platform string) (Scheduler, error) {
	s, ok := r.schedulers[platform]
	if !ok {
		return nil, fmt.Errorf("no provider registered for platform %q (known: %s)", platform, r.knownPlatforms())
	}
	return s, nil
}

// Cleaner resolves the cleanup provider for a platform, or nil when the
// platform has nothing to clean up.
func (r *Registry) Cleaner(platform string) Cleaner {
	return r.cleaners[platform]
}

func (r *Registry) knownPlatforms() string {
	keys := make([]string, 0, len(r.schedulers))
	for k := range r.schedulers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
