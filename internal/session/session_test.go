package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/forum-web/internal/identity"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/reaction"
	"github.com/emilythestrangee/forum-web/internal/role"
	"github.com/emilythestrangee/forum-web/internal/sessioncache"
	"github.com/emilythestrangee/forum-web/internal/vote"
)

var secret = []byte("test-secret")

type profiles struct {
	mu     sync.Mutex
	roles  map[string]models.Role
	tokens []string
	gate   chan struct{}
	err    error
}

func (p *profiles) GetUser(ctx context.Context, token, email string) (models.User, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return models.User{}, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, token)
	if p.err != nil {
		return models.User{}, p.err
	}
	return models.User{Email: email, Role: p.roles[email]}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(store Store, cache sessioncache.Store, p ProfileSource, now func() time.Time) *Manager {
	return NewManager(store, cache, p, Options{
		TTL:          time.Hour,
		FetchTimeout: time.Second,
		Secret:       secret,
		Logger:       zerolog.Nop(),
		Now:          now,
	})
}

func token(t *testing.T, userID, email string) string {
	t.Helper()
	tok, err := identity.Issue(secret, userID, email, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestCreateAndLookup(t *testing.T) {
	m := newManager(NewMemoryStore(), sessioncache.NewMemory(), &profiles{}, nil)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Nil(t, s.Viewer())
	assert.Equal(t, role.StatusIdle, s.Roles().Snapshot().Status)

	got, err := m.Lookup(ctx, s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestLookupUnknown(t *testing.T) {
	m := newManager(NewMemoryStore(), sessioncache.NewMemory(), &profiles{}, nil)

	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"not a uuid", "abc"},
		{"unknown uuid", "0b7c2f44-5d3e-4f1a-9a7e-2c6d8e9f0a1b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Lookup(context.Background(), tt.id)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSignInResolvesRole(t *testing.T) {
	p := &profiles{roles: map[string]models.Role{"ada@example.com": models.RoleAdmin}}
	m := newManager(NewMemoryStore(), sessioncache.NewMemory(), p, nil)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	tok := token(t, "u-1", "ada@example.com")
	claims, err := m.SignIn(ctx, s, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)

	viewer := s.Viewer()
	require.NotNil(t, viewer)
	assert.Equal(t, "u-1", viewer.UserID)
	assert.Equal(t, tok, s.Token())

	snap := s.Roles().Await(ctx)
	assert.Equal(t, models.RoleAdmin, snap.Role)
	assert.True(t, snap.Authoritative())

	p.mu.Lock()
	assert.Equal(t, []string{tok}, p.tokens)
	p.mu.Unlock()
}

func TestSignInRejectsBadToken(t *testing.T) {
	m := newManager(NewMemoryStore(), sessioncache.NewMemory(), &profiles{}, nil)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	forged, err := identity.Issue([]byte("other"), "u-1", "ada@example.com", time.Hour)
	require.NoError(t, err)

	_, err = m.SignIn(ctx, s, forged)
	assert.Error(t, err)
	assert.Nil(t, s.Viewer())
	assert.Equal(t, role.StatusIdle, s.Roles().Snapshot().Status)
}

func TestSignOutKeepsCachedRoleForNextSignIn(t *testing.T) {
	p := &profiles{roles: map[string]models.Role{"ada@example.com": models.RoleAdmin}}
	store := NewMemoryStore()
	m := newManager(store, sessioncache.NewMemory(), p, nil)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.SignIn(ctx, s, token(t, "u-1", "ada@example.com"))
	require.NoError(t, err)
	s.Roles().Await(ctx)

	require.NoError(t, m.SignOut(ctx, s))
	assert.Nil(t, s.Viewer())
	assert.Nil(t, s.View())
	snap := s.Roles().Snapshot()
	assert.Equal(t, role.StatusIdle, snap.Status)
	assert.Empty(t, snap.Role)

	rec, err := store.Load(ctx, s.ID())
	require.NoError(t, err)
	assert.Empty(t, rec.Token)

	// Hold the next fetch so the cached role is what gets surfaced.
	p.gate = make(chan struct{})
	_, err = m.SignIn(ctx, s, token(t, "u-1", "ada@example.com"))
	require.NoError(t, err)
	snap = s.Roles().Snapshot()
	assert.Equal(t, models.RoleAdmin, snap.Role)
	assert.Equal(t, role.SourceCache, snap.Source)
	assert.False(t, snap.Loading)

	close(p.gate)
	snap = s.Roles().Await(ctx)
	assert.Equal(t, role.SourceNetwork, snap.Source)
}

func TestLookupRehydratesAfterRestart(t *testing.T) {
	p := &profiles{roles: map[string]models.Role{"ada@example.com": models.RoleAdmin}}
	store := NewMemoryStore()
	cache := sessioncache.NewMemory()
	ctx := context.Background()

	first := newManager(store, cache, p, nil)
	s, err := first.Create(ctx)
	require.NoError(t, err)
	_, err = first.SignIn(ctx, s, token(t, "u-1", "ada@example.com"))
	require.NoError(t, err)

	second := newManager(store, cache, p, nil)
	again, err := second.Lookup(ctx, s.ID())
	require.NoError(t, err)
	assert.NotSame(t, s, again)
	require.NotNil(t, again.Viewer())
	assert.Equal(t, "u-1", again.Viewer().UserID)
	assert.Equal(t, models.RoleAdmin, again.Roles().Await(ctx).Role)
}

func TestExpiredSessionsArePurged(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	m := newManager(store, sessioncache.NewMemory(), &profiles{}, c.Now)
	ctx := context.Background()

	old, err := m.Create(ctx)
	require.NoError(t, err)
	c.Advance(30 * time.Minute)
	fresh, err := m.Create(ctx)
	require.NoError(t, err)

	c.Advance(45 * time.Minute)
	_, err = m.Lookup(ctx, old.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(ctx, old.ID())
	assert.ErrorIs(t, err, ErrNotFound)

	c.Advance(time.Hour)
	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = m.Lookup(ctx, fresh.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailedFetchWithoutCacheIsTerminal(t *testing.T) {
	p := &profiles{err: errors.New("upstream down")}
	m := newManager(NewMemoryStore(), sessioncache.NewMemory(), p, nil)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.SignIn(ctx, s, token(t, "u-2", "bob@example.com"))
	require.NoError(t, err)

	snap := s.Roles().Await(ctx)
	assert.Equal(t, role.StatusFailed, snap.Status)
	assert.False(t, snap.Loading)
}

type heldVoter struct {
	enter   chan struct{}
	release chan struct{}
}

func (v *heldVoter) Vote(context.Context, string, string, models.VoteRequest) (*models.VoteResponse, error) {
	v.enter <- struct{}{}
	<-v.release
	return nil, nil
}

func TestReopenReturnsViewReplacedMidVote(t *testing.T) {
	m := newManager(NewMemoryStore(), sessioncache.NewMemory(), &profiles{}, nil)
	s, err := m.Create(context.Background())
	require.NoError(t, err)

	voter := &heldVoter{enter: make(chan struct{}), release: make(chan struct{})}
	viewer := &reaction.Viewer{UserID: "u1", Token: "tok"}
	a := reaction.NewPostView(models.Post{ID: "a", Upvotes: 1}, "u1", vote.None, voter, s.Votes(), zerolog.Nop())
	b := reaction.NewPostView(models.Post{ID: "b"}, "u1", vote.None, voter, s.Votes(), zerolog.Nop())
	s.SetView(a)

	done := make(chan error)
	go func() {
		_, err := a.Vote(context.Background(), viewer, vote.ActionUp)
		done <- err
	}()
	<-voter.enter

	s.SetView(b)
	assert.Nil(t, s.Reopen("a", "u2"))
	got := s.Reopen("a", "u1")
	assert.Same(t, a, got)
	assert.Same(t, a, s.View())
	assert.Equal(t, 2, got.Snapshot().Post.Upvotes)

	close(voter.release)
	require.NoError(t, <-done)

	// settled views are not kept once replaced
	s.SetView(b)
	assert.Nil(t, s.Reopen("a", "u1"))
	assert.Same(t, b, s.Reopen("b", "u1"))
}
