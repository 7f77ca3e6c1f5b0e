package memory

import (
	"context"
	"sync"
	"time"

	"live-insights-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRuntime couples a session's pipeline state with the coordination
// primitives the orchestrator needs: a mutex serializing chunk processing
// for the session, and the context in-flight resolutions are derived from
// so a session end aborts them.
type SessionRuntime struct {
	State   *store.SessionState
	StateMu sync.Mutex // guards State; held briefly

	// Mu serializes the chunk pipeline for this session so chunk N's
	// buffer mutation is visible to its own detection pass before chunk
	// N+1 starts. Never held across State reads by the worker.
	Mu sync.Mutex

	Ctx    context.Context
	Cancel context.CancelFunc
}

// SessionStateRepository keeps per-session runtime state in memory. Idle
// sessions fall out of the cache on their own; the buffer backing store
// expires independently via its own TTL.
type SessionStateRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewSessionStateRepository() *SessionStateRepository {
	// Sessions idle for 2 hours are purged; sweep every 10 minutes.
	c := cache.New(2*time.Hour, 10*time.Minute)
	return &SessionStateRepository{
		cache: c,
	}
}

func (r *SessionStateRepository) Get(sessionID string) (*SessionRuntime, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*SessionRuntime), true
	}
	return nil, false
}

// GetOrCreate returns the runtime for the session, creating it on first
// touch. Creation is serialized so two concurrent chunks for a brand-new
// session share one runtime.
func (r *SessionStateRepository) GetOrCreate(sessionID string, organizationID string) *SessionRuntime {
	if rt, found := r.Get(sessionID); found {
		r.cache.Set(sessionID, rt, cache.DefaultExpiration) // refresh idle timer
		return rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, found := r.Get(sessionID); found {
		return rt
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := &SessionRuntime{
		State: &store.SessionState{
			ID:             sessionID,
			OrganizationID: organizationID,
		},
		Ctx:    ctx,
		Cancel: cancel,
	}
	r.cache.Set(sessionID, rt, cache.DefaultExpiration)
	return rt
}

func (r *SessionStateRepository) Delete(sessionID string) {
	if rt, found := r.Get(sessionID); found {
		rt.Cancel()
	}
	r.cache.Delete(sessionID)
}
