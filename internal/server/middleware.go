package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CredenceNG/confirmd-platform/internal/authorization"
	obscontext "github.com/CredenceNG/confirmd-platform/internal/observability/context"
	"github.com/CredenceNG/confirmd-platform/internal/rpc"
)

const (
	contextUserIDKey = "user_id"
	contextEmailKey  = "user_email"
	contextOrgIDKey  = "org_id"
)

// principal is the authenticated caller, resolved from a bearer token. The
// provider lookup is cached briefly so every request does not round-trip to
// the identity provider.
type principal struct {
	UserID string
	Email  string
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired resolves the bearer token into a local user profile. Tokens
// the provider rejects and tokens for users without a completed signup both
// yield 401.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		p, ok := s.principals.Get(token)
		if !ok {
			info, err := s.idp.UserInfo(c.Request.Context(), token)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized")
				return
			}
			profile, err := s.users.ProfileByKeycloakID(c.Request.Context(), info.ID)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "unauthorized")
				return
			}
			p = principal{UserID: profile.ID, Email: profile.Email}
			s.principals.Set(token, p, principalCacheTTL)
		}

		c.Set(contextUserIDKey, p.UserID)
		c.Set(contextEmailKey, p.Email)
		ctx := obscontext.WithActor(c.Request.Context(), "user", p.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContext lifts the :orgId path parameter onto the request context so
// downstream logging and rate limiting can key on it.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := strings.TrimSpace(c.Param("orgId"))
		if orgID == "" {
			abortJSON(c, http.StatusBadRequest, "invalid_organization")
			return
		}

		c.Set(contextOrgIDKey, orgID)
		ctx := obscontext.WithOrgID(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authorize gates a route on one (object, action) capability within the
// organization from the path.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(contextUserIDKey)
		orgID := c.GetString(contextOrgIDKey)

		err := s.authz.Authorize(c.Request.Context(), "user:"+userID, orgID, object, action)
		if err == nil {
			c.Next()
			return
		}

		switch {
		case errors.Is(err, authorization.ErrForbidden):
			abortJSON(c, http.StatusForbidden, "forbidden")
		case errors.Is(err, authorization.ErrInvalidActor),
			errors.Is(err, authorization.ErrInvalidOrganization):
			abortJSON(c, http.StatusBadRequest, "invalid_request")
		default:
			s.log.Error("authorization check failed", zap.Error(err))
			abortJSON(c, http.StatusInternalServerError, "internal_error")
		}
	}
}

func (s *Server) userID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

func (s *Server) userEmail(c *gin.Context) string {
	return c.GetString(contextEmailKey)
}

// invoke sends one command over the bus and relays the reply envelope. Only
// transport failures are handled here; domain failures arrive pre-translated
// inside the reply.
func (s *Server) invoke(c *gin.Context, cmd rpc.Command, payload any) {
	reply, err := s.bus.Invoke(c.Request.Context(), cmd, payload)
	if err != nil {
		s.abortTransportError(c, cmd, err)
		return
	}
	writeReply(c, reply)
}

// invokeReply is invoke for handlers that post-process the body themselves.
func (s *Server) invokeReply(c *gin.Context, cmd rpc.Command, payload any) (rpc.Reply, bool) {
	reply, err := s.bus.Invoke(c.Request.Context(), cmd, payload)
	if err != nil {
		s.abortTransportError(c, cmd, err)
		return rpc.Reply{}, false
	}
	return reply, true
}

func (s *Server) abortTransportError(c *gin.Context, cmd rpc.Command, err error) {
	s.log.Error("bus invoke failed",
		zap.String("command", string(cmd)),
		zap.Error(err),
	)
	if errors.Is(err, rpc.ErrReplyTimeout) {
		abortJSON(c, http.StatusGatewayTimeout, "reply_timeout")
		return
	}
	abortJSON(c, http.StatusBadGateway, "bus_unavailable")
}

func writeReply(c *gin.Context, reply rpc.Reply) {
	if !reply.OK() {
		c.JSON(reply.StatusCode, gin.H{
			"statusCode": reply.StatusCode,
			"error":      reply.Error,
		})
		return
	}
	if len(reply.Body) == 0 {
		c.Status(reply.StatusCode)
		return
	}
	c.Data(reply.StatusCode, "application/json; charset=utf-8", reply.Body)
}

func abortJSON(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"error":      code,
	})
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, code := rpc.Translate(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", code
	case status == http.StatusConflict:
		return "conflict", code
	case status == http.StatusNotFound:
		return "not_found", code
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "access", code
	default:
		return "validation", code
	}
}
