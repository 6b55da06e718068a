package domain

import (
	"context"

	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// SendVerificationEmail starts signup: it records the address and mails
	// a one-time code. Calling it again reissues the code.
	SendVerificationEmail(ctx context.Context, email string) error

	// VerifyEmail consumes a verification code and marks the address
	// verified.
	VerifyEmail(ctx context.Context, email, code string) error

	// CompleteSignup provisions the identity provider account for a
	// verified address and fills in profile details.
	CompleteSignup(ctx context.Context, req CompleteSignupRequest) (*Profile, error)

	Login(ctx context.Context, email, password string) (idpdomain.TokenSet, error)
	ClientLogin(ctx context.Context, clientID, clientSecret string) (idpdomain.TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (idpdomain.TokenSet, error)

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error

	Profile(ctx context.Context, userID snowflake.ID) (*Profile, error)
	ProfileByKeycloakID(ctx context.Context, keycloakUserID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID snowflake.ID, req UpdateProfileRequest) (*Profile, error)
	Search(ctx context.Context, req pagination.Request) ([]Profile, pagination.Page, error)
}

type CompleteSignupRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type UpdateProfileRequest struct {
	FirstName  *string
	LastName   *string
	ProfileImg *string
}

type Profile struct {
	ID              string `json:"id"`
	KeycloakUserID  string `json:"keycloakUserId,omitempty"`
	Email           string `json:"email"`
	Username        string `json:"username,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfileImg      string `json:"profileImg,omitempty"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}
