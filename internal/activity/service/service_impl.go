package service

import (
	"context"
	"strings"
	"time"

	activitydomain "github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	"github.com/CredenceNG/confirmd-platform/internal/activity/masking"
	obscontext "github.com/CredenceNG/confirmd-platform/internal/observability/context"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  activitydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  activitydomain.Repository
}

func NewService(p Params) activitydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry activitydomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return activitydomain.ErrInvalidAction
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType := activitydomain.ActorTypeSystem
	if entry.UserID != nil && *entry.UserID != 0 {
		actorType = activitydomain.ActorTypeUser
	} else if ctxType, _ := obscontext.ActorFromContext(ctx); ctxType != "" {
		actorType = ctxType
	}

	details := masking.MaskDetails(entry.Details)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		if details == nil {
			details = map[string]any{}
		}
		details["request_id"] = requestID
	}

	row := activitydomain.Activity{
		ID:         s.genID.Generate(),
		UserID:     entry.UserID,
		OrgID:      entry.OrgID,
		ActorType:  actorType,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(entry.TargetID),
		Details:    datatypes.JSONMap(details),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write activity", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter activitydomain.ListFilter, req pagination.Request) ([]activitydomain.Activity, pagination.Page, error) {
	if filter.OrgID == 0 {
		return nil, pagination.Page{}, activitydomain.ErrInvalidOrganization
	}
	req = req.Normalize()

	items, total, err := s.repo.List(ctx, s.db, filter, req)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	return items, pagination.NewPage(req, total), nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
