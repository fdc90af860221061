package models

import "time"

// Role is the coarse access classification that gates dashboards.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Badge is the membership tier. It limits how many posts a member can
// publish and has no effect on navigation.
type Badge string

const (
	BadgeBronze Badge = "bronze"
	BadgeSilver Badge = "silver"
	BadgeGold   Badge = "gold"
)

// PostLimit returns the maximum number of posts for the badge; 0 means unlimited.
func (b Badge) PostLimit() int {
	switch b {
	case BadgeGold:
		return 0
	case BadgeSilver:
		return 20
	default:
		return 5
	}
}

func (b Badge) Valid() bool {
	return b == BadgeBronze || b == BadgeSilver || b == BadgeGold
}

// User is the forum profile. The same struct is the dev API's table row
// and the payload returned by GET /users/{email}.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"_id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"not null" json:"username"`
	Password    string `json:"-"` // empty for federated accounts
	Role        Role   `gorm:"default:user" json:"role,omitempty"`
	Badge       Badge  `gorm:"default:bronze" json:"badge"`
	AboutMe     string `json:"aboutMe"`
	PhotoURL    string `json:"photoUrl"`

	GoogleID     string `gorm:"index" json:"-"`
	AuthProvider string `json:"authProvider"` // "email", "google"

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RegisterRequest struct {
	DisplayName string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	PhotoURL    string `json:"photoUrl"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginRequest struct {
	IDToken  string `json:"idToken" binding:"required"`
	PhotoURL string `json:"photoUrl"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateProfileRequest struct {
	AboutMe  string `json:"aboutMe"`
	PhotoURL string `json:"photoUrl"`
}

type SetRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=user admin"`
}
