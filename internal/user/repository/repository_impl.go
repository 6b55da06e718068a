package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/CredenceNG/confirmd-platform/internal/user/domain"
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

func (r *repository) Create(ctx context.Context, user domain.User) error {
	return r.db.WithContext(ctx).Create(&user).Error
}

func (r *repository) Update(ctx context.Context, user domain.User) error {
	return r.db.WithContext(ctx).Save(&user).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetByKeycloakID(ctx context.Context, keycloakUserID string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "keycloak_user_id = ?", keycloakUserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) Search(ctx context.Context, req pagination.Request) ([]domain.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.User{})
	if search := strings.TrimSpace(req.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []domain.User
	err := query.Scopes(pagination.Scope(req)).Order("created_at DESC").Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *repository) CreateToken(ctx context.Context, token domain.Token) error {
	return r.db.WithContext(ctx).Create(&token).Error
}

func (r *repository) GetActiveToken(ctx context.Context, userID snowflake.ID, kind, code string, now time.Time) (*domain.Token, error) {
	var token domain.Token
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND code = ? AND used_at IS NULL", userID, kind, code).
		Order("created_at DESC").
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if now.After(token.ExpiresAt) {
		return nil, domain.ErrTokenExpired
	}
	return &token, nil
}

func (r *repository) MarkTokenUsed(ctx context.Context, id snowflake.ID, usedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("id = ?", id).
		Update("used_at", usedAt).Error
}

func (r *repository) InvalidateTokens(ctx context.Context, userID snowflake.ID, kind string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Token{}).
		Where("user_id = ? AND kind = ? AND used_at IS NULL", userID, kind).
		Update("used_at", time.Now().UTC()).Error
}

func (r *repository) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&domain.Token{})
	return result.RowsAffected, result.Error
}
