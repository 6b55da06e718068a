// Package domain defines the identity provider surface the platform depends
// on. Implementations live under internal/idp/keycloak.
package domain

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound   = errors.New("idp_user_not_found")
	ErrClientNotFound = errors.New("idp_client_not_found")
	ErrRoleNotFound   = errors.New("idp_role_not_found")
	ErrUnauthorized   = errors.New("idp_unauthorized")
)

// Principal identifies the caller on whose behalf management operations run.
// PlatformAdmin selects the environment-scoped management client; otherwise
// the organization's own client credentials are used.
type Principal struct {
	UserID        string
	Email         string
	ClientID      string
	ClientSecret  string
	PlatformAdmin bool
}

// TokenSet is the provider's token grant response.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Client is a registered OAuth client representing one organization.
type Client struct {
	// IdpID is the provider's internal identifier, used in admin URLs.
	IdpID string
	// ClientID is the OAuth client_id issued to the organization.
	ClientID string
	// ClientSecret is only populated by CreateClient and secret rotation.
	ClientSecret string
	Name         string
}

// Role is a client-scoped role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

// User mirrors the provider's user representation.
type User struct {
	ID            string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool
}

// Service is the identity provider client.
type Service interface {
	// ManagementToken returns an admin-capable token for the principal.
	ManagementToken(ctx context.Context, p Principal) (TokenSet, error)
	PasswordLogin(ctx context.Context, clientID, clientSecret, username, password string) (TokenSet, error)
	ClientCredentialsToken(ctx context.Context, clientID, clientSecret string) (TokenSet, error)
	RefreshAccessToken(ctx context.Context, clientID, clientSecret, refreshToken string) (TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (User, error)

	// CreateClient registers an OAuth client for the organization and returns
	// its identifiers together with the freshly minted secret.
	CreateClient(ctx context.Context, token, orgName, orgID string) (Client, error)
	GetClient(ctx context.Context, token, clientID string) (Client, error)
	ClientSecret(ctx context.Context, token, idpID string) (string, error)
	RegenerateClientSecret(ctx context.Context, token, idpID string) (string, error)
	DeleteClient(ctx context.Context, token, idpID string) error

	// CreateClientRole creates a client-scoped role. A role that already
	// exists is not an error.
	CreateClientRole(ctx context.Context, token, idpID, name, description string) error
	ClientRoles(ctx context.Context, token, idpID string) ([]Role, error)
	ClientRole(ctx context.Context, token, idpID, name string) (Role, error)
	AssignUserClientRoles(ctx context.Context, token, idpID, userID string, roles []Role) error
	RemoveUserClientRoles(ctx context.Context, token, idpID, userID string, roles []Role) error
	UserClientRoles(ctx context.Context, token, idpID, userID string) ([]Role, error)

	CreateUser(ctx context.Context, token string, user User, password string) (string, error)
	UserByEmail(ctx context.Context, token, email string) (User, error)
	ResetUserPassword(ctx context.Context, token, userID, password string) error
	DeleteUser(ctx context.Context, token, userID string) error
}
