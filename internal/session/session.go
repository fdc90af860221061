// Package session manages browser sessions of the web tier. A session
// outlives sign-in and sign-out, the way browser session storage does; it
// carries the signed-in identity, the role resolver and the post being viewed.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/identity"
	"github.com/emilythestrangee/forum-web/internal/metrics"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/reaction"
	"github.com/emilythestrangee/forum-web/internal/role"
	"github.com/emilythestrangee/forum-web/internal/sessioncache"
)

const CookieName = "forum_session"

// ProfileSource fetches profiles from the forum API.
type ProfileSource interface {
	GetUser(ctx context.Context, token, email string) (models.User, error)
}

type Session struct {
	id    string
	roles *role.Resolver
	votes *reaction.Guard
	now   func() time.Time

	mu   sync.RWMutex
	rec  models.Session
	view *reaction.PostView
	// views replaced while a vote on them was in flight, by post ID
	parked map[string]*reaction.PostView
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Roles() *role.Resolver {
	return s.roles
}

// Votes is the in-flight guard shared by every post view of the session.
func (s *Session) Votes() *reaction.Guard {
	return s.votes
}

func (s *Session) Record() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// Viewer returns the signed-in user, or nil when nobody is signed in or the
// identity token has expired.
func (s *Session) Viewer() *reaction.Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.rec.SignedIn(s.now()) {
		return nil
	}
	return &reaction.Viewer{UserID: s.rec.UserID, Email: s.rec.Email, Token: s.rec.Token}
}

// Token is the identity token, empty when signed out.
func (s *Session) Token() string {
	if v := s.Viewer(); v != nil {
		return v.Token
	}
	return ""
}

// View returns the post currently viewed, if any.
func (s *Session) View() *reaction.PostView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Session) SetView(v *reaction.PostView) {
	s.mu.Lock()
	if v != s.view {
		s.park(s.view)
		s.view = v
	}
	s.mu.Unlock()
}

// Reopen makes the view of postID held for userID current again and returns
// it. The view is either the current one or one that was replaced while a
// vote on it was in flight. It returns nil when the session holds neither.
func (s *Session) Reopen(postID, userID string) *reaction.PostView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.view; v != nil && v.PostID() == postID && v.ViewerID() == userID {
		return v
	}
	v, ok := s.parked[postID]
	if !ok || v.ViewerID() != userID {
		return nil
	}
	delete(s.parked, postID)
	s.park(s.view)
	s.view = v
	return v
}

// park keeps old while a vote on it is in flight and forgets parked views
// whose votes have settled. s.mu must be held.
func (s *Session) park(old *reaction.PostView) {
	for id, v := range s.parked {
		if !v.Pending() {
			delete(s.parked, id)
		}
	}
	if old == nil || !old.Pending() {
		return
	}
	if s.parked == nil {
		s.parked = make(map[string]*reaction.PostView)
	}
	s.parked[old.PostID()] = old
}

func (s *Session) expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.now().Before(s.rec.ExpiresAt)
}

type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Secret       []byte
	Logger       zerolog.Logger
	Now          func() time.Time
}

type Manager struct {
	store    Store
	cache    sessioncache.Store
	profiles ProfileSource
	opts     Options

	mu   sync.Mutex
	live map[string]*Session
}

func NewManager(store Store, cache sessioncache.Store, profiles ProfileSource, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 72 * time.Hour
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:    store,
		cache:    cache,
		profiles: profiles,
		opts:     opts,
		live:     make(map[string]*Session),
	}
}

// Create starts an anonymous session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	now := m.opts.Now()
	rec := models.Session{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(m.opts.TTL),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	s := m.hydrate(ctx, rec)
	m.opts.Logger.Debug().Str("session", rec.ID).Msg("session created")
	return s, nil
}

// Lookup returns the live session for id, rebuilding its in-memory state from
// the stored record when needed.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	m.mu.Lock()
	s, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		if !s.expired() {
			return s, nil
		}
		m.drop(ctx, id)
		return nil, ErrNotFound
	}

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.opts.Now().Before(rec.ExpiresAt) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return m.hydrate(ctx, rec), nil
}

// SignIn attaches the identity carried by token to s and starts resolving
// its role.
func (m *Manager) SignIn(ctx context.Context, s *Session, token string) (identity.Claims, error) {
	claims, err := identity.Parse(token, m.opts.Secret)
	if err != nil {
		return identity.Claims{}, err
	}

	s.mu.Lock()
	s.rec.Token = token
	s.rec.Email = claims.Email
	s.rec.UserID = claims.UserID
	s.rec.TokenExpiresAt = claims.ExpiresAt
	s.rec.ExpiresAt = m.opts.Now().Add(m.opts.TTL)
	s.view, s.parked = nil, nil
	rec := s.rec
	s.mu.Unlock()

	if err := m.store.Save(ctx, rec); err != nil {
		return identity.Claims{}, err
	}
	s.roles.SetIdentity(ctx, claims.Email)
	m.opts.Logger.Info().Str("session", s.id).Str("user_id", claims.UserID).Msg("signed in")
	return claims, nil
}

// SignOut clears the identity. The session and its storage stay.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	s.mu.Lock()
	userID := s.rec.UserID
	s.rec.Token, s.rec.Email, s.rec.UserID = "", "", ""
	s.rec.TokenExpiresAt = time.Time{}
	s.view, s.parked = nil, nil
	rec := s.rec
	s.mu.Unlock()

	s.roles.Clear()
	if err := m.store.Save(ctx, rec); err != nil {
		return err
	}
	m.opts.Logger.Info().Str("session", s.id).Str("user_id", userID).Msg("signed out")
	return nil
}

// PurgeExpired removes expired sessions from memory and storage.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	now := m.opts.Now()
	m.mu.Lock()
	for id, s := range m.live {
		if s.expired() {
			s.roles.Clear()
			delete(m.live, id)
		}
	}
	metrics.LiveSessions.Set(float64(len(m.live)))
	m.mu.Unlock()

	return m.store.DeleteExpired(ctx, now)
}

// Run purges expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.opts.Logger.Warn().Err(err).Msg("session purge failed")
				continue
			}
			if n > 0 {
				m.opts.Logger.Info().Int64("purged", n).Msg("expired sessions purged")
			}
		}
	}
}

func (m *Manager) hydrate(ctx context.Context, rec models.Session) *Session {
	s := &Session{id: rec.ID, rec: rec, votes: reaction.NewGuard(), now: m.opts.Now}
	s.roles = role.New(
		sessioncache.Scope(m.cache, rec.ID),
		role.FetcherFunc(func(ctx context.Context, email string) (models.Role, error) {
			u, err := m.profiles.GetUser(ctx, s.Token(), email)
			if err != nil {
				return "", err
			}
			return u.Role, nil
		}),
		role.WithFetchTimeout(m.opts.FetchTimeout),
		role.WithLogger(m.opts.Logger.With().Str("session", rec.ID).Logger()),
	)

	m.mu.Lock()
	if existing, ok := m.live[rec.ID]; ok {
		m.mu.Unlock()
		return existing
	}
	m.live[rec.ID] = s
	metrics.LiveSessions.Set(float64(len(m.live)))
	m.mu.Unlock()

	if rec.SignedIn(m.opts.Now()) {
		s.roles.SetIdentity(ctx, rec.Email)
	}
	return s
}

func (m *Manager) drop(ctx context.Context, id string) {
	m.mu.Lock()
	if s, ok := m.live[id]; ok {
		s.roles.Clear()
		delete(m.live, id)
	}
	metrics.LiveSessions.Set(float64(len(m.live)))
	m.mu.Unlock()
	_ = m.store.Delete(ctx, id)
}
