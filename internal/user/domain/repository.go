package domain

import (
	"context"
	"time"

	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByKeycloakID(ctx context.Context, keycloakUserID string) (*User, error)
	Search(ctx context.Context, req pagination.Request) ([]User, int64, error)

	CreateToken(ctx context.Context, token Token) error
	GetActiveToken(ctx context.Context, userID snowflake.ID, kind, code string, now time.Time) (*Token, error)
	MarkTokenUsed(ctx context.Context, id snowflake.ID, usedAt time.Time) error
	InvalidateTokens(ctx context.Context, userID snowflake.ID, kind string) error
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}
