// Package domain contains organization tenancy: the organization record, its
// invitations, and its DIDs.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidWebhookURL   = errors.New("invalid_webhook_url")
	ErrOrgNotFound         = errors.New("organization_not_found")
	ErrSlugTaken           = errors.New("organization_slug_taken")
	ErrForbidden           = errors.New("forbidden")
	ErrNotRegistered       = errors.New("organization_not_registered")

	ErrInvitationNotFound = errors.New("invitation_not_found")
	ErrInvitationExists   = errors.New("invitation_already_exists")
	ErrInvalidTransition  = errors.New("invalid_invitation_transition")
	ErrEmailMismatch      = errors.New("invitation_email_mismatch")
	ErrOrgMismatch        = errors.New("invitation_org_mismatch")
	ErrMaxOrgLimit        = errors.New("max_org_limit_reached")

	ErrDidNotFound = errors.New("did_not_found")
)

// Organization represents a tenant. IdpID and ClientID are empty until the
// identity-provider client registration succeeds; ClientSecret is sealed at
// rest and never leaves the service unmasked except at credential creation.
type Organization struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex:ux_organisations_slug" json:"slug"`
	Description  string       `gorm:"type:text" json:"description"`
	LogoURL      string       `gorm:"type:text;column:logo_url" json:"logoUrl,omitempty"`
	WebsiteURL   string       `gorm:"type:text;column:website_url" json:"websiteUrl,omitempty"`
	IdpID        string       `gorm:"type:text;column:idp_id" json:"-"`
	ClientID     string       `gorm:"type:text;column:client_id" json:"clientId,omitempty"`
	ClientSecret string       `gorm:"type:text;column:client_secret" json:"-"`
	WebhookURL   string       `gorm:"type:text;column:webhook_url" json:"-"`
	CreatedBy    snowflake.ID `gorm:"not null;column:created_by;index" json:"createdBy"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organisations" }

// Registered reports whether the identity-provider client exists for this
// organization.
func (o Organization) Registered() bool { return o.IdpID != "" && o.ClientID != "" }

// Invitation statuses.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// CanTransition reports whether an invitation may move between two statuses.
// Pending is the only non-terminal status.
func CanTransition(from, to string) bool {
	if from != StatusPending {
		return false
	}
	return to == StatusAccepted || to == StatusRejected
}

// Invitation is an offer of membership with a requested role set. OrgRoleIDs
// holds catalog role ids as a JSON array of strings.
type Invitation struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID   `gorm:"not null;index" json:"orgId"`
	InviterID  snowflake.ID   `gorm:"not null;column:inviter_id" json:"inviterId"`
	Email      string         `gorm:"type:text;not null;index" json:"email"`
	OrgRoleIDs datatypes.JSON `gorm:"column:org_role_ids" json:"orgRoleIds"`
	Status     string         `gorm:"type:text;not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "org_invitations" }

// OrgDid is a decentralized identifier registered to an organization. At most
// one row per organization carries IsPrimary.
type OrgDid struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"orgId"`
	Did       string       `gorm:"type:text;not null" json:"did"`
	IsPrimary bool         `gorm:"not null;default:false;column:is_primary_did" json:"isPrimaryDid"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName sets the database table name.
func (OrgDid) TableName() string { return "org_dids" }

// DeleteResult reports per-table row counts removed by an organization
// deletion, for auditing.
type DeleteResult struct {
	Activities   int64 `json:"activities"`
	UserRoles    int64 `json:"userRoles"`
	Invitations  int64 `json:"invitations"`
	Dids         int64 `json:"dids"`
	Organization int64 `json:"organization"`
}

// DashboardCounts aggregates the numbers shown on the organization dashboard.
type DashboardCounts struct {
	Members             int64 `json:"members"`
	PendingInvitations  int64 `json:"pendingInvitations"`
	AcceptedInvitations int64 `json:"acceptedInvitations"`
	Dids                int64 `json:"dids"`
}
