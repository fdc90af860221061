package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emilythestrangee/forum-web/internal/forumapi"
	"github.com/emilythestrangee/forum-web/internal/identity"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/vote"
)

// fakeForum is an in-memory forum API. It answers errors the way the
// HTTP client does, as *forumapi.StatusError.
type fakeForum struct {
	secret []byte

	mu        sync.Mutex
	users     map[string]*models.User // by email
	passwords map[string]string
	posts     map[string]*models.Post
	votes     map[string]vote.State // userID + "/" + postID
	comments  map[string][]models.Comment
	payments  []models.PaymentRequest
	calls     map[string]int
	voteErr   error
	// when set, Vote signals voteEnter and waits on voteBlock before answering
	voteEnter chan struct{}
	voteBlock chan struct{}
}

func newFakeForum(secret []byte) *fakeForum {
	return &fakeForum{
		secret:    secret,
		users:     map[string]*models.User{},
		passwords: map[string]string{},
		posts:     map[string]*models.Post{},
		votes:     map[string]vote.State{},
		comments:  map[string][]models.Comment{},
		calls:     map[string]int{},
	}
}

func (f *fakeForum) addUser(email, password string, role models.Role, badge models.Badge) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: uuid.NewString(), Email: email, DisplayName: email, Role: role, Badge: badge}
	f.users[email] = u
	f.passwords[email] = password
	return u
}

func (f *fakeForum) addPost(authorID string, up, down int) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Post{ID: uuid.NewString(), AuthorID: authorID, Title: "post", Upvotes: up, Downvotes: down}
	f.posts[p.ID] = p
	return p
}

func (f *fakeForum) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeForum) call(name string) {
	f.calls[name]++
}

func statusErr(status int, msg string) error {
	return &forumapi.StatusError{Method: "FAKE", Path: "/", Status: status, Message: msg}
}

func (f *fakeForum) auth(token string) (identity.Claims, error) {
	claims, err := identity.Parse(token, f.secret)
	if err != nil {
		return identity.Claims{}, statusErr(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

func (f *fakeForum) issue(u *models.User) (models.AuthResponse, error) {
	tok, err := identity.Issue(f.secret, u.ID, u.Email, time.Hour)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return models.AuthResponse{Token: tok, User: *u}, nil
}

func (f *fakeForum) Register(_ context.Context, in models.RegisterRequest) (models.AuthResponse, error) {
	f.mu.Lock()
	f.call("register")
	_, exists := f.users[in.Email]
	f.mu.Unlock()
	if exists {
		return models.AuthResponse{}, statusErr(http.StatusConflict, "email already registered")
	}
	u := f.addUser(in.Email, in.Password, models.RoleUser, models.BadgeBronze)
	return f.issue(u)
}

func (f *fakeForum) Login(_ context.Context, in models.LoginRequest) (models.AuthResponse, error) {
	f.mu.Lock()
	f.call("login")
	u, ok := f.users[in.Email]
	pw := f.passwords[in.Email]
	f.mu.Unlock()
	if !ok || pw != in.Password {
		return models.AuthResponse{}, statusErr(http.StatusUnauthorized, "Invalid credentials")
	}
	return f.issue(u)
}

func (f *fakeForum) GoogleLogin(context.Context, models.GoogleLoginRequest) (models.AuthResponse, error) {
	return models.AuthResponse{}, statusErr(http.StatusUnauthorized, "invalid google token")
}

func (f *fakeForum) GetUser(_ context.Context, token, email string) (models.User, error) {
	if _, err := f.auth(token); err != nil {
		return models.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("getUser")
	u, ok := f.users[email]
	if !ok {
		return models.User{}, statusErr(http.StatusNotFound, "user not found")
	}
	return *u, nil
}

func (f *fakeForum) UpdateProfile(_ context.Context, token, email string, in models.UpdateProfileRequest) (models.User, error) {
	if _, err := f.auth(token); err != nil {
		return models.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[email]
	u.AboutMe, u.PhotoURL = in.AboutMe, in.PhotoURL
	return *u, nil
}

func (f *fakeForum) ListUsers(_ context.Context, token, _ string) ([]models.User, error) {
	if _, err := f.auth(token); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("listUsers")
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeForum) SetRole(_ context.Context, token, userID string, role models.Role) (models.User, error) {
	if _, err := f.auth(token); err != nil {
		return models.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.Role = role
			return *u, nil
		}
	}
	return models.User{}, statusErr(http.StatusNotFound, "user not found")
}

func (f *fakeForum) ListPosts(_ context.Context, _ string, q forumapi.ListPostsQuery) (models.PostPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := models.PostPage{Posts: []models.Post{}, Page: q.Page, Limit: q.Limit}
	for _, p := range f.posts {
		if q.AuthorID != "" && p.AuthorID != q.AuthorID {
			continue
		}
		page.Total++
		page.Posts = append(page.Posts, *p)
	}
	return page, nil
}

func (f *fakeForum) CountPosts(ctx context.Context, token, authorID string) (int64, error) {
	page, err := f.ListPosts(ctx, token, forumapi.ListPostsQuery{AuthorID: authorID})
	return page.Total, err
}

func (f *fakeForum) GetPost(_ context.Context, token, id string) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("getPost")
	p, ok := f.posts[id]
	if !ok {
		return models.Post{}, statusErr(http.StatusNotFound, "post not found")
	}
	out := *p
	if claims, err := identity.Parse(token, f.secret); err == nil {
		out.UserVote = f.votes[claims.UserID+"/"+id].Wire()
	}
	return out, nil
}

func (f *fakeForum) CreatePost(_ context.Context, token string, in models.CreatePostRequest) (models.Post, error) {
	claims, err := f.auth(token)
	if err != nil {
		return models.Post{}, err
	}
	p := f.addPost(claims.UserID, 0, 0)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("createPost")
	p.Title, p.Body, p.Tags = in.Title, in.Body, in.Tags
	return *p, nil
}

func (f *fakeForum) DeletePost(_ context.Context, token, id string) error {
	if _, err := f.auth(token); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	return nil
}

func (f *fakeForum) Vote(_ context.Context, token, postID string, in models.VoteRequest) (*models.VoteResponse, error) {
	claims, err := f.auth(token)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	enter, block := f.voteEnter, f.voteBlock
	f.mu.Unlock()
	if enter != nil {
		enter <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("vote")
	if f.voteErr != nil {
		return nil, f.voteErr
	}
	p, ok := f.posts[postID]
	if !ok {
		return nil, statusErr(http.StatusNotFound, "post not found")
	}

	key := claims.UserID + "/" + postID
	prev, err := vote.ParseState(in.PreviousVote)
	if err != nil || prev != f.votes[key] {
		return nil, statusErr(http.StatusConflict, "previous vote does not match")
	}
	action, err := vote.ParseAction(in.VoteType)
	if err != nil {
		return nil, statusErr(http.StatusBadRequest, err.Error())
	}
	next, delta, _ := vote.Next(prev, action)
	c := vote.Counters{Upvotes: p.Upvotes, Downvotes: p.Downvotes}.Apply(delta)
	p.Upvotes, p.Downvotes = c.Upvotes, c.Downvotes
	f.votes[key] = next
	return &models.VoteResponse{Upvotes: p.Upvotes, Downvotes: p.Downvotes, UserVote: next.Wire()}, nil
}

func (f *fakeForum) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comments[postID], nil
}

func (f *fakeForum) CreateComment(_ context.Context, token, postID string, in models.CreateCommentRequest) (models.Comment, error) {
	claims, err := f.auth(token)
	if err != nil {
		return models.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cm := models.Comment{ID: uuid.NewString(), PostID: postID, AuthorID: claims.UserID, Body: in.Body}
	f.comments[postID] = append(f.comments[postID], cm)
	return cm, nil
}

func (f *fakeForum) ReportComment(_ context.Context, token, commentID string, in models.ReportRequest) (models.Report, error) {
	claims, err := f.auth(token)
	if err != nil {
		return models.Report{}, err
	}
	return models.Report{ID: uuid.NewString(), CommentID: commentID, ReporterID: claims.UserID, Feedback: in.Feedback}, nil
}

func (f *fakeForum) ListReports(_ context.Context, token string) ([]models.Report, error) {
	_, err := f.auth(token)
	return nil, err
}

func (f *fakeForum) DismissReport(_ context.Context, token, _ string) error {
	_, err := f.auth(token)
	return err
}

func (f *fakeForum) DeleteComment(_ context.Context, token, _ string) error {
	_, err := f.auth(token)
	return err
}

func (f *fakeForum) ListAnnouncements(context.Context) ([]models.Announcement, error) {
	return nil, nil
}

func (f *fakeForum) CreateAnnouncement(_ context.Context, token string, in models.CreateAnnouncementRequest) (models.Announcement, error) {
	claims, err := f.auth(token)
	if err != nil {
		return models.Announcement{}, err
	}
	return models.Announcement{ID: uuid.NewString(), AuthorID: claims.UserID, Title: in.Title, Description: in.Description}, nil
}

func (f *fakeForum) ListTags(context.Context) ([]string, error) {
	return []string{"go"}, nil
}

func (f *fakeForum) RecordPayment(_ context.Context, token string, in models.PaymentRequest) (models.Payment, error) {
	if _, err := f.auth(token); err != nil {
		return models.Payment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, in)
	for _, u := range f.users {
		if u.ID == in.UserID {
			u.Badge = in.Tier
		}
	}
	return models.Payment{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Tier:          in.Tier,
		AmountCents:   in.AmountCents,
		TransactionID: in.TransactionID,
	}, nil
}
