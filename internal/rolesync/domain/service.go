package domain

import (
	"context"

	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, entries []OutboxEntry) error
	FetchPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkDone(ctx context.Context, id snowflake.ID) error
	MarkFailed(ctx context.Context, id snowflake.ID, attempts int, lastError string, terminal bool) error
	CountPending(ctx context.Context) (int64, error)
}

type Service interface {
	// Plan joins requested catalog roles to the provider's client roles by
	// name. It fails when any requested role has no provider counterpart,
	// before anything is written.
	Plan(requested []orgroledomain.OrgRole, available []idpdomain.Role) ([]Binding, error)

	// Assign applies bindings on the provider. A failed call is retried
	// once; a second failure enqueues durable outbox entries instead of
	// failing the caller.
	Assign(ctx context.Context, token, clientIdpID, userIdpID string, orgID snowflake.ID, bindings []Binding) error

	// Remove is the inverse of Assign with the same fallback behavior.
	Remove(ctx context.Context, token, clientIdpID, userIdpID string, orgID snowflake.ID, bindings []Binding) error

	// UnbindMembers removes provider bindings for many members, judged by
	// the supplied policy.
	UnbindMembers(ctx context.Context, token string, members []MemberBindings, policy BatchPolicy) error

	// Drain applies pending outbox entries and returns how many were
	// processed.
	Drain(ctx context.Context, limit int) (int, error)
}
