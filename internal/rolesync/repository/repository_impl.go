package repository

import (
	"context"
	"time"

	"github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
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

func (r *repository) Enqueue(ctx context.Context, entries []domain.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []domain.OutboxEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) MarkDone(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusDone,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id snowflake.ID, attempts int, lastError string, terminal bool) error {
	status := domain.StatusPending
	if terminal {
		status = domain.StatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OutboxEntry{}).
		Where("status = ?", domain.StatusPending).
		Count(&count).Error
	return count, err
}
