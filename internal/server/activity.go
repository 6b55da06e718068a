package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CredenceNG/confirmd-platform/internal/rpc"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
)

type activityListQuery struct {
	UserID     string `form:"userId"`
	Action     string `form:"action"`
	TargetType string `form:"targetType"`
	pagination.Request
}

func (s *Server) ListActivities(c *gin.Context) {
	var query activityListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdActivityList, map[string]any{
		"orgId":      c.Param("orgId"),
		"userId":     query.UserID,
		"action":     query.Action,
		"targetType": query.TargetType,
		"pageNumber": query.PageNumber,
		"pageSize":   query.PageSize,
		"search":     query.Search,
	})
}
