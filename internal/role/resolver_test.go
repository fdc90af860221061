package role

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/models"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]string{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.data, key)
	return nil
}

func (c *mapCache) value(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

type answer struct {
	role models.Role
	err  error
}

// gatedFetcher hands each request to the test, which answers it explicitly.
type gatedFetcher struct {
	requests chan string
	answers  map[string]chan answer
	mu       sync.Mutex
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{requests: make(chan string, 8), answers: map[string]chan answer{}}
}

func (f *gatedFetcher) gate(email string) chan answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.answers[email]
	if !ok {
		ch = make(chan answer, 1)
		f.answers[email] = ch
	}
	return ch
}

func (f *gatedFetcher) FetchRole(ctx context.Context, email string) (models.Role, error) {
	f.requests <- email
	select {
	case a := <-f.gate(email):
		return a.role, a.err
	case <-ctx.Done():
		// the test still decides when the stale answer lands
		a := <-f.gate(email)
		return a.role, a.err
	}
}

func (f *gatedFetcher) answer(email string, role models.Role, err error) {
	f.gate(email) <- answer{role: role, err: err}
}

func await(t *testing.T, r *Resolver) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap := r.Await(ctx)
	require.NoError(t, ctx.Err(), "resolver did not settle")
	return snap
}

func TestCacheSurfacesFirstThenNetworkWins(t *testing.T) {
	cache := newMapCache()
	cache.data[CacheKey("a@x.com")] = `"user"`
	fetcher := newGatedFetcher()
	r := New(cache, fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests

	early := r.Snapshot()
	assert.Equal(t, models.RoleUser, early.Role)
	assert.False(t, early.Loading)
	assert.Equal(t, SourceCache, early.Source)
	assert.False(t, early.Authoritative())

	fetcher.answer("a@x.com", models.RoleAdmin, nil)
	final := await(t, r)

	assert.Equal(t, models.RoleAdmin, final.Role)
	assert.True(t, final.Authoritative())
	assert.Equal(t, StatusResolved, final.Status)
	v, ok := cache.value(CacheKey("a@x.com"))
	require.True(t, ok)
	assert.Equal(t, `"admin"`, v)
}

func TestLoadingUntilFetchWithoutCache(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)

	r.SetIdentity(context.Background(), "A@X.com ")
	<-fetcher.requests

	mid := r.Snapshot()
	assert.Equal(t, "a@x.com", mid.Email)
	assert.True(t, mid.Loading)
	assert.Equal(t, StatusLoading, mid.Status)
	assert.Empty(t, mid.Role)

	fetcher.answer("a@x.com", models.RoleUser, nil)
	assert.Equal(t, models.RoleUser, await(t, r).Role)
}

func TestIdentitySwitchIgnoresLateAnswer(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	r.SetIdentity(context.Background(), "b@x.com")
	<-fetcher.requests

	fetcher.answer("b@x.com", models.RoleUser, nil)
	snap := await(t, r)
	require.Equal(t, "b@x.com", snap.Email)
	require.Equal(t, models.RoleUser, snap.Role)

	fetcher.answer("a@x.com", models.RoleAdmin, nil)
	assert.Never(t, func() bool {
		s := r.Snapshot()
		return s.Role != models.RoleUser || s.Email != "b@x.com"
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestIdentitySwitchBeforeEitherAnswer(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	r.SetIdentity(context.Background(), "b@x.com")
	<-fetcher.requests

	// a answers first but must not be surfaced for b
	fetcher.answer("a@x.com", models.RoleAdmin, nil)
	time.Sleep(20 * time.Millisecond)
	mid := r.Snapshot()
	assert.Equal(t, "b@x.com", mid.Email)
	assert.Empty(t, mid.Role)
	assert.True(t, mid.Loading)

	fetcher.answer("b@x.com", models.RoleUser, nil)
	assert.Equal(t, models.RoleUser, await(t, r).Role)
}

func TestFetchFailureWithoutCacheIsTerminal(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	fetcher.answer("a@x.com", "", errors.New("502 bad gateway"))

	snap := await(t, r)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Role)
	assert.True(t, apperr.HasCode(snap.Err, apperr.CodeRoleUnresolved))
}

func TestSetIdentityRetriesAfterFailure(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	fetcher.answer("a@x.com", "", errors.New("502 bad gateway"))
	require.Equal(t, StatusFailed, await(t, r).Status)

	r.SetIdentity(context.Background(), "A@x.com")
	assert.True(t, r.Snapshot().Loading)
	<-fetcher.requests
	fetcher.answer("a@x.com", models.RoleAdmin, nil)

	snap := await(t, r)
	assert.Equal(t, StatusResolved, snap.Status)
	assert.Equal(t, models.RoleAdmin, snap.Role)
	assert.NoError(t, snap.Err)
}

func TestFetchFailureKeepsCachedRole(t *testing.T) {
	cache := newMapCache()
	cache.data[CacheKey("a@x.com")] = `"admin"`
	fetcher := newGatedFetcher()
	r := New(cache, fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	fetcher.answer("a@x.com", "", errors.New("timeout"))

	snap := await(t, r)
	assert.Equal(t, models.RoleAdmin, snap.Role)
	assert.Equal(t, StatusResolved, snap.Status)
	assert.Equal(t, SourceCache, snap.Source)
	assert.False(t, snap.Loading)
	assert.Error(t, snap.Err)
}

func TestCacheFailureIsSwallowed(t *testing.T) {
	cache := newMapCache()
	cache.err = errors.New("quota exceeded")
	fetcher := newGatedFetcher()
	r := New(cache, fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	fetcher.answer("a@x.com", models.RoleAdmin, nil)

	snap := await(t, r)
	assert.Equal(t, models.RoleAdmin, snap.Role)
	assert.NoError(t, snap.Err)
}

func TestClearDropsLiveViewButKeepsStorage(t *testing.T) {
	cache := newMapCache()
	fetcher := newGatedFetcher()
	r := New(cache, fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	fetcher.answer("a@x.com", models.RoleAdmin, nil)
	await(t, r)

	r.Clear()
	snap := r.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Email)
	assert.Empty(t, snap.Role)
	assert.False(t, snap.Loading)
	_, stored := cache.value(CacheKey("a@x.com"))
	assert.True(t, stored)

	// signing in again surfaces the stored role before the network answers
	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	assert.Equal(t, models.RoleAdmin, r.Snapshot().Role)
	fetcher.answer("a@x.com", models.RoleUser, nil)
	assert.Equal(t, models.RoleUser, await(t, r).Role)
}

func TestSetSameIdentityIsNoop(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	gen := r.Snapshot().Generation
	r.SetIdentity(context.Background(), "a@x.com")
	assert.Equal(t, gen, r.Snapshot().Generation)
	assert.Empty(t, fetcher.requests)
}

func TestInvalidateRefetches(t *testing.T) {
	cache := newMapCache()
	fetcher := newGatedFetcher()
	r := New(cache, fetcher)

	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests
	fetcher.answer("a@x.com", models.RoleAdmin, nil)
	await(t, r)

	r.Invalidate(context.Background())
	<-fetcher.requests
	_, stored := cache.value(CacheKey("a@x.com"))
	assert.False(t, stored)
	assert.Equal(t, models.RoleAdmin, r.Snapshot().Role, "old role stays visible while refreshing")

	fetcher.answer("a@x.com", models.RoleUser, nil)
	assert.Equal(t, models.RoleUser, await(t, r).Role)
}

func TestAwaitHonoursContext(t *testing.T) {
	fetcher := newGatedFetcher()
	r := New(newMapCache(), fetcher)
	r.SetIdentity(context.Background(), "a@x.com")
	<-fetcher.requests

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	snap := r.Await(ctx)
	assert.True(t, snap.Loading)

	fetcher.answer("a@x.com", models.RoleUser, nil)
}
