package repository

import (
	"context"
	"errors"

	"github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateRole(ctx context.Context, role domain.OrgRole) error {
	return r.db.WithContext(ctx).Create(&role).Error
}

func (r *repository) GetRoleByName(ctx context.Context, name string) (*domain.OrgRole, error) {
	var role domain.OrgRole
	err := r.db.WithContext(ctx).First(&role, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *repository) GetRolesByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.OrgRole, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []domain.OrgRole
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *repository) ListRoles(ctx context.Context) ([]domain.OrgRole, error) {
	var roles []domain.OrgRole
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *repository) AssignUserRole(ctx context.Context, assignment domain.UserOrgRole) error {
	return r.db.WithContext(ctx).Create(&assignment).Error
}

func (r *repository) DeleteUserRoles(ctx context.Context, userID, orgID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		Delete(&domain.UserOrgRole{})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteAllUserRolesForOrg(ctx context.Context, orgID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Delete(&domain.UserOrgRole{})
	return result.RowsAffected, result.Error
}

func (r *repository) ListUserRoles(ctx context.Context, userID, orgID snowflake.ID) ([]domain.Membership, error) {
	var items []domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT uor.user_id, uor.org_id, uor.org_role_id, r.name AS role_name, uor.idp_role_id, uor.created_at
		 FROM user_org_roles uor
		 JOIN org_roles r ON r.id = uor.org_role_id
		 WHERE uor.user_id = ? AND uor.org_id = ?
		 ORDER BY r.name ASC`,
		userID, orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.Membership, error) {
	var items []domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT uor.user_id, uor.org_id, uor.org_role_id, r.name AS role_name, uor.idp_role_id, uor.created_at
		 FROM user_org_roles uor
		 JOIN org_roles r ON r.id = uor.org_role_id
		 WHERE uor.org_id = ?
		 ORDER BY uor.created_at ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CountUserOrgs(ctx context.Context, userID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.UserOrgRole{}).
		Where("user_id = ? AND org_id <> 0", userID).
		Distinct("org_id").
		Count(&count).Error
	return count, err
}

func (r *repository) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.UserOrgRole{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	return count > 0, err
}
