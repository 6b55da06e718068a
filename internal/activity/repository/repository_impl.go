package repository

import (
	"context"
	"strings"

	"github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Activity) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_activities (
			id, user_id, org_id, actor_type, action, target_type, target_id,
			details, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.OrgID,
		entry.ActorType,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, req pagination.Request) ([]domain.Activity, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Activity{}).
		Where("org_id = ?", filter.OrgID)

	if filter.UserID != nil && *filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
		stmt = stmt.Where("target_type = ?", targetType)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Activity
	err := stmt.Scopes(pagination.Scope(req)).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
