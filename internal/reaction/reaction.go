// Package reaction holds the post a session is currently viewing and
// applies the viewer's votes to it optimistically.
package reaction

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/metrics"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/optimistic"
	"github.com/emilythestrangee/forum-web/internal/vote"
)

// Viewer is the signed-in user acting on a post.
type Viewer struct {
	UserID string
	Email  string
	Token  string
}

// Voter submits a vote to the forum API. A nil response means the server
// confirmed without returning totals.
type Voter interface {
	Vote(ctx context.Context, token, postID string, req models.VoteRequest) (*models.VoteResponse, error)
}

// Key identifies one user's vote on one post.
type Key struct {
	UserID string
	PostID string
}

// Guard allows at most one vote in flight per Key. Every view a session
// opens must share the session's Guard.
type Guard = optimistic.Mutator[Key]

func NewGuard() *Guard {
	return optimistic.New[Key]()
}

// Snapshot is what the UI renders for a post.
type Snapshot struct {
	Post    models.Post `json:"post"`
	Vote    vote.State  `json:"-"`
	Pending bool        `json:"pending"`
}

type PostView struct {
	voter Voter
	log   zerolog.Logger
	guard *Guard

	mu     sync.RWMutex
	post   models.Post
	state  vote.State
	userID string
}

// NewPostView starts viewing post as userID ("" when anonymous) whose
// current vote is state. A nil guard gives the view its own.
func NewPostView(post models.Post, userID string, state vote.State, voter Voter, guard *Guard, log zerolog.Logger) *PostView {
	if guard == nil {
		guard = NewGuard()
	}
	return &PostView{
		voter:  voter,
		log:    log,
		guard:  guard,
		post:   post,
		state:  state,
		userID: userID,
	}
}

func (v *PostView) PostID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.post.ID
}

// ViewerID is the user whose vote state the view tracks.
func (v *PostView) ViewerID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.userID
}

func (v *PostView) Snapshot() Snapshot {
	v.mu.RLock()
	post, state, userID := v.post, v.state, v.userID
	v.mu.RUnlock()

	post.UserVote = state.Wire()
	return Snapshot{
		Post:    post,
		Vote:    state,
		Pending: v.guard.Pending(Key{UserID: userID, PostID: post.ID}),
	}
}

// Pending reports whether a vote on the viewed post is in flight.
func (v *PostView) Pending() bool {
	v.mu.RLock()
	key := Key{UserID: v.userID, PostID: v.post.ID}
	v.mu.RUnlock()
	return v.guard.Pending(key)
}

// Reload replaces the post and vote state with a fresh copy from the server.
// Nothing changes while a vote on the post is in flight; the result reports
// whether the copy was taken.
func (v *PostView) Reload(post models.Post, state vote.State) bool {
	v.mu.RLock()
	key := Key{UserID: v.userID, PostID: v.post.ID}
	v.mu.RUnlock()
	if post.ID != key.PostID {
		return false
	}
	return v.guard.Hold(key, func() {
		v.mu.Lock()
		v.post, v.state = post, state
		v.mu.Unlock()
	})
}

// Vote applies action for viewer. The counters change before the API is
// called; if the API rejects the vote they are restored exactly.
func (v *PostView) Vote(ctx context.Context, viewer *Viewer, action vote.Action) (Snapshot, error) {
	if viewer == nil || viewer.UserID == "" || viewer.Token == "" {
		metrics.Votes.WithLabelValues(metrics.VoteUnauthenticated).Inc()
		return v.Snapshot(), apperr.New(apperr.CodeUnauthenticated, "sign in to vote")
	}
	if !action.Valid() {
		return v.Snapshot(), apperr.Wrap(apperr.CodeInvalidInput, "unknown vote action", vote.ErrUnknownAction)
	}
	if id := v.ViewerID(); id != viewer.UserID {
		return v.Snapshot(), apperr.New(apperr.CodeForbidden, "post view belongs to another user")
	}

	postID := v.PostID()
	var (
		prevState    vote.State
		prevCounters vote.Counters
		reply        *models.VoteResponse
	)

	err := v.guard.Do(ctx, Key{UserID: viewer.UserID, PostID: postID}, optimistic.Mutation{
		Apply: func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			prevState = v.state
			prevCounters = vote.Counters{Upvotes: v.post.Upvotes, Downvotes: v.post.Downvotes}
			next, delta, _ := vote.Next(v.state, action)
			c := prevCounters.Apply(delta)
			v.state, v.post.Upvotes, v.post.Downvotes = next, c.Upvotes, c.Downvotes
		},
		Revert: func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			v.state, v.post.Upvotes, v.post.Downvotes = prevState, prevCounters.Upvotes, prevCounters.Downvotes
		},
		Request: func(ctx context.Context) error {
			var err error
			reply, err = v.voter.Vote(ctx, viewer.Token, postID, models.VoteRequest{
				UserID:       viewer.UserID,
				VoteType:     string(action),
				PreviousVote: prevState.Wire(),
			})
			return err
		},
	})

	switch {
	case errors.Is(err, optimistic.ErrInFlight):
		metrics.Votes.WithLabelValues(metrics.VoteInFlight).Inc()
		return v.Snapshot(), apperr.Wrap(apperr.CodeVoteInFlight, "previous vote still pending", err)
	case err != nil:
		metrics.Votes.WithLabelValues(metrics.VoteRolledBack).Inc()
		v.log.Warn().Err(err).Str("post_id", postID).Str("action", string(action)).Msg("vote rejected, rolled back")
		return v.Snapshot(), apperr.Wrap(apperr.CodeVoteRejected, reason(err), err)
	}

	metrics.Votes.WithLabelValues(metrics.VoteApplied).Inc()
	v.reconcile(reply)
	return v.Snapshot(), nil
}

// CommentAdded bumps the comment count of the viewed post.
func (v *PostView) CommentAdded() {
	v.mu.Lock()
	v.post.CommentCount++
	v.mu.Unlock()
}

// reconcile adopts the server's totals when the server agrees on our vote.
func (v *PostView) reconcile(reply *models.VoteResponse) {
	if reply == nil {
		return
	}
	state, err := vote.ParseState(reply.UserVote)
	if err != nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if state != v.state {
		v.log.Warn().Str("post_id", v.post.ID).Stringer("local", v.state).Stringer("server", state).Msg("vote state disagrees with server")
		return
	}
	v.post.Upvotes = max(reply.Upvotes, 0)
	v.post.Downvotes = max(reply.Downvotes, 0)
}

// reason extracts the server-provided message from err when it has one.
func reason(err error) string {
	var r interface{ Reason() string }
	if errors.As(err, &r) && r.Reason() != "" {
		return r.Reason()
	}
	return "vote was not accepted"
}
