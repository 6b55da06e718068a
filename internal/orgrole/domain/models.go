// Package domain contains the organization role catalog and membership
// assignments.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Standard client roles provisioned for every organization.
const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleIssuer   = "issuer"
	RoleVerifier = "verifier"
	RoleMember   = "member"

	// RoleHolder and RolePlatformAdmin exist in the catalog but are not
	// provisioned per organization.
	RoleHolder        = "holder"
	RolePlatformAdmin = "platform_admin"
)

// DefaultClientRoles are created on the identity provider client when an
// organization is registered.
var DefaultClientRoles = []string{RoleOwner, RoleAdmin, RoleIssuer, RoleVerifier, RoleMember}

var (
	ErrRoleNotFound   = errors.New("org_role_not_found")
	ErrNotMember      = errors.New("user_not_org_member")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrAlreadyMember  = errors.New("user_already_org_member")
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidOrgRole = errors.New("invalid_org_role")
)

// OrgRole is one entry of the role catalog.
type OrgRole struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null;uniqueIndex:ux_org_roles_name" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrgRole) TableName() string { return "org_roles" }

// UserOrgRole binds a user to a role within one organization. IdpRoleID is
// the provider-side role identifier captured at assignment time.
type UserOrgRole struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_user_org_role,priority:1" json:"user_id"`
	OrgID     snowflake.ID `gorm:"index;uniqueIndex:ux_user_org_role,priority:2" json:"org_id"`
	OrgRoleID snowflake.ID `gorm:"not null;uniqueIndex:ux_user_org_role,priority:3" json:"org_role_id"`
	IdpRoleID string       `gorm:"type:text;column:idp_role_id" json:"idp_role_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (UserOrgRole) TableName() string { return "user_org_roles" }

// Membership is a user's role within an organization, joined with the
// catalog entry.
type Membership struct {
	UserID    snowflake.ID
	OrgID     snowflake.ID
	OrgRoleID snowflake.ID
	RoleName  string
	IdpRoleID string
	CreatedAt time.Time
}
