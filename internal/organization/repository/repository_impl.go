package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
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

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) UpdateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Save(&org).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "slug = ?", strings.TrimSpace(slug)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) List(ctx context.Context, req pagination.Request) ([]domain.Organization, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Organization{})
	if search := strings.TrimSpace(req.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []domain.Organization
	err := query.Scopes(pagination.Scope(req)).Order("created_at DESC").Find(&orgs).Error
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID, req pagination.Request) ([]domain.Organization, int64, error) {
	base := r.db.WithContext(ctx).Model(&domain.Organization{}).
		Joins("JOIN user_org_roles uor ON uor.org_id = organisations.id").
		Where("uor.user_id = ?", userID).
		Distinct("organisations.*")

	if search := strings.TrimSpace(req.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		base = base.Where("LOWER(organisations.name) LIKE ? OR LOWER(organisations.description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Distinct("organisations.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []domain.Organization
	err := base.Scopes(pagination.Scope(req)).Order("organisations.created_at DESC").Find(&orgs).Error
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

func (r *repository) ListUnregistered(ctx context.Context, limit int) ([]domain.Organization, error) {
	if limit <= 0 {
		limit = 20
	}
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("idp_id = '' OR client_id = ''").
		Order("created_at ASC").
		Limit(limit).
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) DeleteOrganization(ctx context.Context, id snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.Organization{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

func (r *repository) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	return r.db.WithContext(ctx).Create(&inv).Error
}

func (r *repository) GetInvitationByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) UpdateInvitationStatus(ctx context.Context, id snowflake.ID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) DeleteInvitation(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Invitation{}, "id = ?", id).Error
}

func (r *repository) ListInvitationsByOrg(ctx context.Context, orgID snowflake.ID, req pagination.Request) ([]domain.Invitation, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Invitation{}).Where("org_id = ?", orgID)
	if search := strings.TrimSpace(req.Search); search != "" {
		query = query.Where("LOWER(email) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invitations []domain.Invitation
	err := query.Scopes(pagination.Scope(req)).Order("created_at DESC").Find(&invitations).Error
	if err != nil {
		return nil, 0, err
	}
	return invitations, total, nil
}

func (r *repository) ListInvitationsByEmail(ctx context.Context, email string, req pagination.Request) ([]domain.Invitation, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invitations []domain.Invitation
	err := query.Scopes(pagination.Scope(req)).Order("created_at DESC").Find(&invitations).Error
	if err != nil {
		return nil, 0, err
	}
	return invitations, total, nil
}

func (r *repository) PendingOrAcceptedExists(ctx context.Context, email string, orgID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("LOWER(email) = ? AND org_id = ? AND status IN ?",
			strings.ToLower(strings.TrimSpace(email)), orgID,
			[]string{domain.StatusPending, domain.StatusAccepted}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListInviteesByStatus(ctx context.Context, orgID snowflake.ID, statuses []string) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND status IN ?", orgID, statuses).
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) DeleteInvitationsByOrg(ctx context.Context, orgID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.Invitation{}, "org_id = ?", orgID)
	return result.RowsAffected, result.Error
}

func (r *repository) CountInvitationsByStatus(ctx context.Context, orgID snowflake.ID, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("org_id = ? AND status = ?", orgID, status).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateDid(ctx context.Context, did domain.OrgDid) error {
	return r.db.WithContext(ctx).Create(&did).Error
}

func (r *repository) GetDid(ctx context.Context, id snowflake.ID) (*domain.OrgDid, error) {
	var did domain.OrgDid
	err := r.db.WithContext(ctx).First(&did, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDidNotFound
	}
	if err != nil {
		return nil, err
	}
	return &did, nil
}

func (r *repository) ListDids(ctx context.Context, orgID snowflake.ID) ([]domain.OrgDid, error) {
	var dids []domain.OrgDid
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&dids).Error
	if err != nil {
		return nil, err
	}
	return dids, nil
}

func (r *repository) CountDids(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrgDid{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}

func (r *repository) UnsetPrimaryDids(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrgDid{}).
		Where("org_id = ? AND is_primary_did = ?", orgID, true).
		Update("is_primary_did", false).Error
}

func (r *repository) MarkPrimaryDid(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrgDid{}).
		Where("id = ?", id).
		Update("is_primary_did", true).Error
}

func (r *repository) DeleteDidsByOrg(ctx context.Context, orgID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.OrgDid{}, "org_id = ?", orgID)
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteActivitiesByOrg(ctx context.Context, orgID snowflake.ID) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM user_activities WHERE org_id = ?", orgID)
	return result.RowsAffected, result.Error
}
