package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CredenceNG/confirmd-platform/internal/rpc"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
)

type orgCreateBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
	WebsiteURL  string `json:"websiteUrl"`
	WebhookURL  string `json:"webhookUrl"`
}

func (s *Server) CreateOrg(c *gin.Context) {
	var body orgCreateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgCreate, map[string]any{
		"userId":      s.userID(c),
		"name":        body.Name,
		"description": body.Description,
		"logoUrl":     body.LogoURL,
		"websiteUrl":  body.WebsiteURL,
		"webhookUrl":  body.WebhookURL,
	})
}

func (s *Server) ListOrgs(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgList, page)
}

func (s *Server) GetOrg(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgGet, map[string]any{
		"orgId": c.Param("orgId"),
	})
}

type orgUpdateBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logoUrl"`
	WebsiteURL  *string `json:"websiteUrl"`
}

func (s *Server) UpdateOrg(c *gin.Context) {
	var body orgUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgUpdate, map[string]any{
		"userId":      s.userID(c),
		"orgId":       c.Param("orgId"),
		"name":        body.Name,
		"description": body.Description,
		"logoUrl":     body.LogoURL,
		"websiteUrl":  body.WebsiteURL,
	})
}

func (s *Server) DeleteOrg(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgDelete, map[string]any{
		"userId": s.userID(c),
		"orgId":  c.Param("orgId"),
	})
}

func (s *Server) GetDashboard(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgDashboard, map[string]any{
		"orgId": c.Param("orgId"),
	})
}

func (s *Server) GetCredentials(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgCredentials, map[string]any{
		"userId": s.userID(c),
		"orgId":  c.Param("orgId"),
	})
}

func (s *Server) RegenerateCredentials(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgCredentialsReset, map[string]any{
		"userId": s.userID(c),
		"orgId":  c.Param("orgId"),
	})
}

type webhookBody struct {
	URL string `json:"url"`
}

func (s *Server) SetWebhook(c *gin.Context) {
	var body webhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgWebhookSet, map[string]any{
		"userId": s.userID(c),
		"orgId":  c.Param("orgId"),
		"url":    body.URL,
	})
}

func (s *Server) GetWebhook(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgWebhookGet, map[string]any{
		"userId": s.userID(c),
		"orgId":  c.Param("orgId"),
	})
}

func (s *Server) ListMembers(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgMembers, map[string]any{
		"orgId": c.Param("orgId"),
	})
}

type memberRolesBody struct {
	OrgRoleIDs []string `json:"orgRoleIds"`
}

func (s *Server) UpdateMemberRoles(c *gin.Context) {
	var body memberRolesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgUpdateUserRoles, map[string]any{
		"actorId":    s.userID(c),
		"orgId":      c.Param("orgId"),
		"userId":     c.Param("userId"),
		"orgRoleIds": body.OrgRoleIDs,
	})
}

// MembershipReport streams the rendered PDF. The bus carries the document
// base64-encoded; the gateway unwraps it so clients receive raw bytes.
func (s *Server) MembershipReport(c *gin.Context) {
	reply, ok := s.invokeReply(c, rpc.CmdOrgMembershipReport, map[string]any{
		"orgId": c.Param("orgId"),
	})
	if !ok {
		return
	}
	if !reply.OK() {
		writeReply(c, reply)
		return
	}

	var body struct {
		Pdf []byte `json:"pdf"`
	}
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		abortJSON(c, http.StatusInternalServerError, "internal_error")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="membership-report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body.Pdf)
}

type didAddBody struct {
	Did        string `json:"did"`
	SetPrimary bool   `json:"setPrimary"`
}

func (s *Server) AddDid(c *gin.Context) {
	var body didAddBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgDidAdd, map[string]any{
		"orgId":      c.Param("orgId"),
		"did":        body.Did,
		"setPrimary": body.SetPrimary,
	})
}

func (s *Server) ListDids(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgDidList, map[string]any{
		"orgId": c.Param("orgId"),
	})
}

func (s *Server) SetPrimaryDid(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgDidSetPrimary, map[string]any{
		"orgId": c.Param("orgId"),
		"didId": c.Param("didId"),
	})
}

func (s *Server) PublicProfile(c *gin.Context) {
	s.invoke(c, rpc.CmdOrgPublicProfile, map[string]any{
		"slug": c.Param("slug"),
	})
}

func (s *Server) RoleCatalog(c *gin.Context) {
	s.invoke(c, rpc.CmdRoleCatalog, struct{}{})
}
