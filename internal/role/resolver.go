// Package role resolves which view role ("user" or "admin") the signed-in
// identity gets. A role cached in session storage is surfaced immediately;
// the forum API is then asked for the authoritative role, which always wins.
//
// Every identity change starts a new generation. A fetch only commits its
// result if its generation is still current, so a late answer for a
// previous identity can never leak into the next one.
package role

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/metrics"
	"github.com/emilythestrangee/forum-web/internal/models"
)

// Cache is session-scoped key/value storage. Failures are tolerated.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// Fetcher returns the authoritative role for email.
type Fetcher interface {
	FetchRole(ctx context.Context, email string) (models.Role, error)
}

type FetcherFunc func(ctx context.Context, email string) (models.Role, error)

func (f FetcherFunc) FetchRole(ctx context.Context, email string) (models.Role, error) {
	return f(ctx, email)
}

type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusResolved Status = "resolved"
	StatusFailed   Status = "failed"
)

type Source string

const (
	SourceNone    Source = ""
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Snapshot is the surfaced resolution state. An empty Role means unresolved.
type Snapshot struct {
	Email      string      `json:"email,omitempty"`
	Role       models.Role `json:"role"`
	Loading    bool        `json:"loading"`
	Status     Status      `json:"status"`
	Source     Source      `json:"source,omitempty"`
	Err        error       `json:"-"`
	Generation uint64      `json:"-"`
}

// Authoritative reports whether the role came from the forum API.
func (s Snapshot) Authoritative() bool {
	return s.Source == SourceNetwork
}

func CacheKey(email string) string {
	return "role:" + email
}

type Option func(*Resolver)

// WithFetchTimeout bounds each authoritative fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

type Resolver struct {
	cache   Cache
	fetcher Fetcher
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	snap    Snapshot
	cancel  context.CancelFunc
	settled *flight
}

type flight struct {
	done chan struct{}
	once sync.Once
}

func newFlight() *flight {
	return &flight{done: make(chan struct{})}
}

func (f *flight) finish() {
	f.once.Do(func() { close(f.done) })
}

func New(cache Cache, fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		cache:   cache,
		fetcher: fetcher,
		timeout: 10 * time.Second,
		log:     zerolog.Nop(),
		snap:    Snapshot{Status: StatusIdle},
		settled: newFlight(),
	}
	r.settled.finish()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current surfaced state without blocking.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// SetIdentity switches the resolver to email. Setting the current identity
// again is a no-op unless its last resolution failed, which starts a new
// attempt. An empty email is the same as Clear.
func (r *Resolver) SetIdentity(ctx context.Context, email string) {
	email = normalize(email)
	if email == "" {
		r.Clear()
		return
	}

	r.mu.Lock()
	if r.snap.Email == email && r.snap.Status != StatusIdle && r.snap.Status != StatusFailed {
		r.mu.Unlock()
		return
	}
	gen := r.advance(Snapshot{Email: email, Loading: true, Status: StatusLoading})
	r.mu.Unlock()

	if cached, ok := r.readCache(ctx, email); ok {
		r.commit(gen, func(s *Snapshot) {
			if s.Source == SourceNetwork {
				return
			}
			s.Role, s.Source, s.Loading, s.Status = cached, SourceCache, false, StatusResolved
			metrics.RoleResolutions.WithLabelValues(metrics.RoleFromCache).Inc()
		})
	}
	r.startFetch(gen, email)
}

// Refresh asks the forum API again for the current identity. The surfaced
// role stays visible until the new answer arrives.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	prev := r.snap
	if prev.Email == "" {
		r.mu.Unlock()
		return
	}
	next := prev
	next.Err = nil
	if next.Role == "" {
		next.Loading, next.Status = true, StatusLoading
	}
	gen := r.advance(next)
	r.mu.Unlock()

	r.startFetch(gen, prev.Email)
}

// Invalidate drops the cached role of the current identity and refreshes.
func (r *Resolver) Invalidate(ctx context.Context) {
	email := r.Snapshot().Email
	if email == "" {
		return
	}
	if err := r.cache.Clear(ctx, CacheKey(email)); err != nil {
		r.cacheFailed(err, "clear")
	}
	r.Refresh()
}

// Clear drops the live view of the role on sign-out. Storage is left alone.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(Snapshot{Status: StatusIdle})
	r.settled.finish()
}

// Await blocks until the current generation has an authoritative answer or
// a failure, or until ctx is done, and returns the surfaced state.
func (r *Resolver) Await(ctx context.Context) Snapshot {
	r.mu.Lock()
	f := r.settled
	r.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
	}
	return r.Snapshot()
}

// advance starts a new generation with snap. Callers hold r.mu.
func (r *Resolver) advance(snap Snapshot) uint64 {
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.settled.finish()
	r.settled = newFlight()
	snap.Generation = r.gen
	r.snap = snap
	return r.gen
}

// commit applies fn if gen is still current.
func (r *Resolver) commit(gen uint64, fn func(*Snapshot)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return false
	}
	fn(&r.snap)
	return true
}

func (r *Resolver) startFetch(gen uint64, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		cancel()
		return
	}
	r.cancel = cancel
	settled := r.settled
	r.mu.Unlock()

	go func() {
		defer cancel()
		role, err := r.fetcher.FetchRole(ctx, email)
		r.finish(gen, email, role, err, settled)
	}()
}

func (r *Resolver) finish(gen uint64, email string, role models.Role, err error, settled *flight) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		metrics.RoleResolutions.WithLabelValues(metrics.RoleStale).Inc()
		r.log.Debug().Str("email", email).Uint64("generation", gen).Msg("discarding stale role resolution")
		return
	}
	r.cancel = nil

	if err != nil {
		r.snap.Loading = false
		r.snap.Err = apperr.Wrap(apperr.CodeRoleUnresolved, "could not resolve role", err)
		if r.snap.Role == "" {
			r.snap.Status = StatusFailed
		}
		r.mu.Unlock()
		settled.finish()
		metrics.RoleResolutions.WithLabelValues(metrics.RoleFailed).Inc()
		r.log.Warn().Err(err).Str("email", email).Msg("role fetch failed")
		return
	}

	r.snap.Role = role
	r.snap.Source = SourceNetwork
	r.snap.Loading = false
	r.snap.Status = StatusResolved
	r.snap.Err = nil
	r.mu.Unlock()
	metrics.RoleResolutions.WithLabelValues(metrics.RoleFromNetwork).Inc()

	r.writeCache(email, role)
	settled.finish()
}

func (r *Resolver) readCache(ctx context.Context, email string) (models.Role, bool) {
	raw, ok, err := r.cache.Get(ctx, CacheKey(email))
	if err != nil {
		r.cacheFailed(err, "get")
		return "", false
	}
	if !ok {
		return "", false
	}
	var role models.Role
	if err := json.Unmarshal([]byte(raw), &role); err != nil || role == "" {
		return "", false
	}
	return role, true
}

func (r *Resolver) writeCache(email string, role models.Role) {
	raw, err := json.Marshal(role)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.cache.Set(ctx, CacheKey(email), string(raw)); err != nil {
		r.cacheFailed(err, "set")
	}
}

func (r *Resolver) cacheFailed(err error, op string) {
	metrics.CacheErrors.Inc()
	r.log.Debug().
		Err(apperr.Wrap(apperr.CodeCacheUnavailable, "session cache "+op, err)).
		Msg("session cache unavailable, continuing without it")
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
