package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CredenceNG/confirmd-platform/internal/rpc"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
)

type invitationCreateBody struct {
	Email      string   `json:"email"`
	OrgRoleIDs []string `json:"orgRoleIds"`
}

func (s *Server) CreateInvitation(c *gin.Context) {
	var body invitationCreateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdInvitationCreate, map[string]any{
		"inviterId":  s.userID(c),
		"orgId":      c.Param("orgId"),
		"email":      body.Email,
		"orgRoleIds": body.OrgRoleIDs,
	})
}

func (s *Server) ListOrgInvitations(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdInvitationListOrg, map[string]any{
		"orgId":      c.Param("orgId"),
		"pageNumber": page.PageNumber,
		"pageSize":   page.PageSize,
		"search":     page.Search,
	})
}

// ListUserInvitations lists invitations addressed to the caller's verified
// email, never to an address the client supplies.
func (s *Server) ListUserInvitations(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdInvitationListUser, map[string]any{
		"email":      s.userEmail(c),
		"pageNumber": page.PageNumber,
		"pageSize":   page.PageSize,
		"search":     page.Search,
	})
}

type invitationResolveBody struct {
	Status string `json:"status"`
}

func (s *Server) ResolveInvitation(c *gin.Context) {
	var body invitationResolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdInvitationResolve, map[string]any{
		"userId":       s.userID(c),
		"invitationId": c.Param("invitationId"),
		"status":       body.Status,
	})
}

func (s *Server) DeleteInvitation(c *gin.Context) {
	s.invoke(c, rpc.CmdInvitationDelete, map[string]any{
		"orgId":        c.Param("orgId"),
		"invitationId": c.Param("invitationId"),
	})
}
