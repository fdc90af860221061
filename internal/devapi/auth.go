package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/emilythestrangee/forum-web/internal/apperr"
	"github.com/emilythestrangee/forum-web/internal/identity"
	"github.com/emilythestrangee/forum-web/internal/middleware"
	"github.com/emilythestrangee/forum-web/internal/models"
)

// GoogleUserInfo represents user data from Google OAuth
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Picture       string `json:"picture"`
	Name          string `json:"name"`
}

// verifyGoogleIDToken verifies the Google ID token and returns user info
func (a *API) verifyGoogleIDToken(ctx context.Context, idToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.opts.GoogleTokenInfoURL+"?"+url.Values{"id_token": {idToken}}.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid google token")
	}

	var user GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	// tokeninfo answers booleans as strings
	if user.EmailVerified != "true" {
		return nil, fmt.Errorf("email not verified")
	}

	return &user, nil
}

// Register handles user registration
func (a *API) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	ctx := c.Request.Context()
	var existing models.User
	err := a.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		middleware.Abort(c, apperr.New(apperr.CodeConflict, "Email already exists"))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respond(c, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respond(c, fmt.Errorf("hash password: %w", err))
		return
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  input.DisplayName,
		Password:     string(hashedPassword),
		Role:         a.initialRole(email),
		Badge:        models.BadgeBronze,
		PhotoURL:     input.PhotoURL,
		AuthProvider: "email",
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		respond(c, err)
		return
	}
	a.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")

	a.issue(c, http.StatusCreated, user)
}

// Login handles user login
func (a *API) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	var user models.User
	err := a.db.WithContext(c.Request.Context()).
		Where("email = ? AND auth_provider = ?", strings.ToLower(strings.TrimSpace(input.Email)), "email").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Abort(c, apperr.New(apperr.CodeUnauthenticated, "Invalid credentials"))
			return
		}
		respond(c, err)
		return
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		middleware.Abort(c, apperr.New(apperr.CodeUnauthenticated, "Invalid credentials"))
		return
	}

	a.issue(c, http.StatusOK, user)
}

// GoogleLogin handles Google OAuth login
func (a *API) GoogleLogin(c *gin.Context) {
	var input models.GoogleLoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	googleUser, err := a.verifyGoogleIDToken(ctx, input.IDToken)
	if err != nil {
		middleware.Abort(c, apperr.Wrap(apperr.CodeUnauthenticated, "Invalid Google token", err))
		return
	}
	email := strings.ToLower(googleUser.Email)

	var user models.User
	err = a.db.WithContext(ctx).Where("email = ? OR google_id = ?", email, googleUser.Sub).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		photo := input.PhotoURL
		if photo == "" {
			photo = googleUser.Picture
		}
		name := googleUser.Name
		if name == "" {
			name = generateUsernameFromEmail(email)
		}
		user = models.User{
			ID:           uuid.NewString(),
			Email:        email,
			DisplayName:  name,
			Role:         a.initialRole(email),
			Badge:        models.BadgeBronze,
			PhotoURL:     photo,
			GoogleID:     googleUser.Sub,
			AuthProvider: "google",
		}
		if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
			respond(c, err)
			return
		}
	case err != nil:
		respond(c, err)
		return
	default:
		// Existing user - link the Google account if not done yet
		if user.GoogleID == "" {
			user.GoogleID = googleUser.Sub
			if err := a.db.WithContext(ctx).Model(&user).Update("google_id", user.GoogleID).Error; err != nil {
				respond(c, err)
				return
			}
		}
	}

	a.issue(c, http.StatusOK, user)
}

func (a *API) issue(c *gin.Context, status int, user models.User) {
	token, err := identity.Issue(a.opts.Secret, user.ID, user.Email, a.opts.TokenTTL)
	if err != nil {
		respond(c, fmt.Errorf("generate token: %w", err))
		return
	}
	c.JSON(status, models.AuthResponse{Token: token, User: user})
}

func (a *API) initialRole(email string) models.Role {
	if a.admins[email] {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func generateUsernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
