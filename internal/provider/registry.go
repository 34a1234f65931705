package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Factory builds a fresh client for one run.
type Factory func(Settings) Client

// Definition registers a provider with its default rate limit.
type Definition struct {
	ID          string
	DisplayName string
	// RateLimit requests per RateWindow; zero means unlimited.
	RateLimit  int
	RateWindow time.Duration
	New        Factory
}

// Registry maps provider ids to factories. Build returns new clients every
// call so runs never share client state.
type Registry struct {
	mu    sync.RWMutex
	defs  []Definition
	index map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// DefaultRegistry registers every bundled adapter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range []Definition{
		{ID: GoldRushID, DisplayName: "GoldRush", RateLimit: 50, RateWindow: time.Second, New: NewGoldRush},
		{ID: AlchemyID, DisplayName: "Alchemy", RateLimit: 25, RateWindow: time.Second, New: NewAlchemy},
		{ID: MobulaID, DisplayName: "Mobula", New: NewMobula},
		{ID: CodexID, DisplayName: "Codex", RateLimit: 10, RateWindow: time.Second, New: NewCodex},
	} {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(def Definition) error {
	id := strings.ToLower(strings.TrimSpace(def.ID))
	if id == "" {
		return fmt.Errorf("provider id is required")
	}
	if def.New == nil {
		return fmt.Errorf("provider %s: factory is required", id)
	}
	if def.RateLimit > 0 && def.RateWindow <= 0 {
		def.RateWindow = time.Second
	}
	if def.DisplayName == "" {
		def.DisplayName = id
	}
	def.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[id]; exists {
		return fmt.Errorf("provider %s already registered", id)
	}
	r.index[id] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

func (r *Registry) Lookup(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// IDs returns the registered ids sorted alphabetically.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		ids = append(ids, def.ID)
	}
	sort.Strings(ids)
	return ids
}

// Build instantiates every registered provider that is not disabled, in
// registration order. Unconfigured providers are still returned; the runner
// reports them as skipped.
func (r *Registry) Build(settings map[string]Settings) []Handle {
	r.mu.RLock()
	defs := make([]Definition, len(r.defs))
	copy(defs, r.defs)
	r.mu.RUnlock()

	handles := make([]Handle, 0, len(defs))
	for _, def := range defs {
		s := settings[def.ID]
		if s.Disabled {
			continue
		}
		limit, window := def.RateLimit, def.RateWindow
		if s.RateLimit != 0 {
			limit = s.RateLimit
			window = s.RateWindow
			if window <= 0 {
				window = time.Second
			}
		}
		if limit < 0 {
			limit = 0
		}
		client := def.New(s)
		if s.Scenarios != 0 {
			client = restricted{Client: client, allowed: s.Scenarios}
		}
		handles = append(handles, Handle{
			ID:          def.ID,
			DisplayName: def.DisplayName,
			Client:      client,
			RateLimit:   limit,
			RateWindow:  window,
		})
	}
	return handles
}

// restricted narrows a client's capabilities to a scenario filter.
type restricted struct {
	Client
	allowed CapabilitySet
}

func (r restricted) Capabilities() CapabilitySet {
	return r.Client.Capabilities().Intersect(r.allowed)
}
