package domain

import (
	"context"
	"time"

	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
	WebsiteURL  string `json:"websiteUrl"`
	WebhookURL  string `json:"webhookUrl"`
}

type UpdateOrganizationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logoUrl"`
	WebsiteURL  *string `json:"websiteUrl"`
}

// OrganizationResponse is the default projection. The client secret is never
// part of it.
type OrganizationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	WebsiteURL  string    `json:"websiteUrl,omitempty"`
	ClientID    string    `json:"clientId,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PublicProfileResponse is the unauthenticated projection by slug.
type PublicProfileResponse struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl,omitempty"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	Members     int64  `json:"members"`
}

// CredentialsResponse carries the organization's OAuth credentials. The
// secret is plaintext only in the RegenerateCredentials response; everywhere
// else it is masked.
type CredentialsResponse struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type InviteRequest struct {
	Email      string         `json:"email"`
	OrgRoleIDs []snowflake.ID `json:"orgRoleIds"`
}

// MemberResponse is one member row with the roles held in this organization.
type MemberResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Roles     []string  `json:"roles"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	Update(ctx context.Context, userID, orgID snowflake.ID, req UpdateOrganizationRequest) (*OrganizationResponse, error)
	Get(ctx context.Context, orgID snowflake.ID) (*OrganizationResponse, error)
	List(ctx context.Context, req pagination.Request) ([]OrganizationResponse, pagination.Page, error)
	ListByUser(ctx context.Context, userID snowflake.ID, req pagination.Request) ([]OrganizationResponse, pagination.Page, error)
	PublicProfile(ctx context.Context, slug string) (*PublicProfileResponse, error)

	// Delete removes the organization, its dependents, and its provider-side
	// client, returning per-table deletion counts.
	Delete(ctx context.Context, userID, orgID snowflake.ID) (*DeleteResult, error)

	Credentials(ctx context.Context, userID, orgID snowflake.ID) (*CredentialsResponse, error)
	// RegenerateCredentials rotates the client secret on the provider and
	// reseals it locally. The plaintext secret is returned exactly once.
	RegenerateCredentials(ctx context.Context, userID, orgID snowflake.ID) (*CredentialsResponse, error)

	SetWebhook(ctx context.Context, userID, orgID snowflake.ID, url string) error
	GetWebhook(ctx context.Context, userID, orgID snowflake.ID) (string, error)

	Dashboard(ctx context.Context, orgID snowflake.ID) (*DashboardCounts, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberResponse, error)
	UpdateUserRoles(ctx context.Context, actorID, orgID, userID snowflake.ID, roleIDs []snowflake.ID) error
	MembershipReport(ctx context.Context, orgID snowflake.ID) ([]byte, error)

	Invite(ctx context.Context, inviterID, orgID snowflake.ID, req InviteRequest) (*Invitation, error)
	ListOrgInvitations(ctx context.Context, orgID snowflake.ID, req pagination.Request) ([]Invitation, pagination.Page, error)
	ListUserInvitations(ctx context.Context, email string, req pagination.Request) ([]Invitation, pagination.Page, error)
	// ResolveInvitation moves a pending invitation to accepted or rejected on
	// behalf of the invited user.
	ResolveInvitation(ctx context.Context, userID, invitationID snowflake.ID, status string) error
	DeleteInvitation(ctx context.Context, orgID, invitationID snowflake.ID) error

	AddDid(ctx context.Context, orgID snowflake.ID, did string, setPrimary bool) (*OrgDid, error)
	ListDids(ctx context.Context, orgID snowflake.ID) ([]OrgDid, error)
	SetPrimaryDid(ctx context.Context, orgID, didID snowflake.ID) error

	// RegisterOrgsMapUsers repairs organizations whose identity-provider
	// registration failed, re-registering clients and owner bindings.
	RegisterOrgsMapUsers(ctx context.Context, limit int) (int, error)
}
