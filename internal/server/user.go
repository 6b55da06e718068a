package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CredenceNG/confirmd-platform/internal/rpc"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
)

type emailBody struct {
	Email string `json:"email"`
}

func (s *Server) SendVerification(c *gin.Context) {
	var body emailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserSendVerification, body)
}

type verifyEmailBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) VerifyEmail(c *gin.Context) {
	var body verifyEmailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserVerifyEmail, body)
}

type completeSignupBody struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) CompleteSignup(c *gin.Context) {
	var body completeSignupBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserCompleteSignup, body)
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserLogin, body)
}

type clientLoginBody struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

func (s *Server) ClientLogin(c *gin.Context) {
	var body clientLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserClientLogin, body)
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) RefreshToken(c *gin.Context) {
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserRefreshToken, body)
}

func (s *Server) ForgotPassword(c *gin.Context) {
	var body emailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserForgotPassword, body)
}

type resetPasswordBody struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) ResetPassword(c *gin.Context) {
	var body resetPasswordBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserResetPassword, body)
}

func (s *Server) GetProfile(c *gin.Context) {
	s.invoke(c, rpc.CmdUserProfile, map[string]any{
		"userId": s.userID(c),
	})
}

type updateProfileBody struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	ProfileImg *string `json:"profileImg"`
}

func (s *Server) UpdateProfile(c *gin.Context) {
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserUpdateProfile, map[string]any{
		"userId":     s.userID(c),
		"firstName":  body.FirstName,
		"lastName":   body.LastName,
		"profileImg": body.ProfileImg,
	})
}

func (s *Server) SearchUsers(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdUserSearch, page)
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	s.invoke(c, rpc.CmdOrgListByUser, map[string]any{
		"userId":     s.userID(c),
		"pageNumber": page.PageNumber,
		"pageSize":   page.PageSize,
		"search":     page.Search,
	})
}
