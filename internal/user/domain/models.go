// Package domain contains user accounts and their one-time tokens.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUserExists         = errors.New("user_already_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailNotVerified   = errors.New("email_not_verified")
	ErrAlreadyVerified    = errors.New("email_already_verified")
	ErrSignupIncomplete   = errors.New("signup_incomplete")
	ErrTokenInvalid       = errors.New("token_invalid")
	ErrTokenExpired       = errors.New("token_expired")
)

// User is a platform account. KeycloakUserID is empty until signup completes
// against the identity provider.
type User struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	KeycloakUserID  string       `gorm:"type:text;column:keycloak_user_id;index" json:"keycloakUserId,omitempty"`
	Email           string       `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	Username        string       `gorm:"type:text" json:"username"`
	FirstName       string       `gorm:"type:text" json:"firstName"`
	LastName        string       `gorm:"type:text" json:"lastName"`
	ProfileImg      string       `gorm:"type:text;column:profile_img" json:"profileImg,omitempty"`
	IsEmailVerified bool         `gorm:"not null;default:false;column:is_email_verified" json:"isEmailVerified"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Token kinds.
const (
	TokenKindVerification  = "verification"
	TokenKindPasswordReset = "password_reset"
)

// Token is a single-use emailed code with an expiry.
type Token struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Kind      string       `gorm:"type:text;not null" json:"kind"`
	Code      string       `gorm:"type:text;not null" json:"-"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time   `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Token) TableName() string { return "user_tokens" }
