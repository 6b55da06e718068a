package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRole(ctx context.Context, role OrgRole) error
	GetRoleByName(ctx context.Context, name string) (*OrgRole, error)
	GetRolesByIDs(ctx context.Context, ids []snowflake.ID) ([]OrgRole, error)
	ListRoles(ctx context.Context) ([]OrgRole, error)

	AssignUserRole(ctx context.Context, assignment UserOrgRole) error
	DeleteUserRoles(ctx context.Context, userID, orgID snowflake.ID) (int64, error)
	DeleteAllUserRolesForOrg(ctx context.Context, orgID snowflake.ID) (int64, error)
	ListUserRoles(ctx context.Context, userID, orgID snowflake.ID) ([]Membership, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]Membership, error)
	CountUserOrgs(ctx context.Context, userID snowflake.ID) (int64, error)
	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
}
