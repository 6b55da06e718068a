// Package server is the HTTP gateway. Handlers translate requests into bus
// commands and relay the reply envelope unchanged; the gateway itself owns
// only authentication, authorization, rate limiting, and uploads.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/CredenceNG/confirmd-platform/internal/authorization"
	"github.com/CredenceNG/confirmd-platform/internal/cache"
	"github.com/CredenceNG/confirmd-platform/internal/config"
	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	"github.com/CredenceNG/confirmd-platform/internal/observability"
	obslogger "github.com/CredenceNG/confirmd-platform/internal/observability/logger"
	obstracing "github.com/CredenceNG/confirmd-platform/internal/observability/tracing"
	"github.com/CredenceNG/confirmd-platform/internal/ratelimit"
	"github.com/CredenceNG/confirmd-platform/internal/rpc"
	"github.com/CredenceNG/confirmd-platform/internal/storage"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

const principalCacheTTL = 60 * time.Second

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	bus        rpc.Bus
	idp        idpdomain.Service
	users      userdomain.Service
	authz      authorization.Service
	limiter    *ratelimit.Limiter
	store      storage.Store
	principals cache.Cache[string, principal]
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	Log     *zap.Logger
	Bus     rpc.Bus
	Idp     idpdomain.Service
	Users   userdomain.Service
	Authz   authorization.Service
	Limiter *ratelimit.Limiter
	Store   storage.Store
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		bus:        p.Bus,
		idp:        p.Idp,
		users:      p.Users,
		authz:      p.Authz,
		limiter:    p.Limiter,
		store:      p.Store,
		principals: cache.NewTTLCache[string, principal](),
	}

	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerOrgRoutes()
	s.registerInvitationRoutes()
	s.registerPublicRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")
	auth.Use(s.limiter.GinMiddleware())

	auth.POST("/signup/send-verification", s.SendVerification)
	auth.POST("/signup/verify", s.VerifyEmail)
	auth.POST("/signup/complete", s.CompleteSignup)
	auth.POST("/login", s.Login)
	auth.POST("/token", s.ClientLogin)
	auth.POST("/refresh", s.RefreshToken)
	auth.POST("/forgot-password", s.ForgotPassword)
	auth.POST("/reset-password", s.ResetPassword)
}

func (s *Server) registerUserRoutes() {
	users := s.engine.Group("/users")
	users.Use(s.AuthRequired())
	users.Use(s.limiter.GinMiddleware())

	users.GET("/me", s.GetProfile)
	users.PATCH("/me", s.UpdateProfile)
	users.GET("/me/orgs", s.ListUserOrgs)
	users.GET("/me/invitations", s.ListUserInvitations)
	users.GET("", s.SearchUsers)
}

func (s *Server) registerOrgRoutes() {
	orgs := s.engine.Group("/orgs")
	orgs.Use(s.AuthRequired())
	orgs.Use(s.limiter.GinMiddleware())

	orgs.POST("", s.CreateOrg)
	orgs.GET("", s.ListOrgs)
	orgs.GET("/roles", s.RoleCatalog)

	org := orgs.Group("/:orgId")
	org.Use(s.OrgContext())
	{
		org.GET("", s.authorize(authorization.ObjectOrganization, authorization.ActionView), s.GetOrg)
		org.PATCH("", s.authorize(authorization.ObjectOrganization, authorization.ActionUpdate), s.UpdateOrg)
		org.DELETE("", s.authorize(authorization.ObjectOrganization, authorization.ActionDelete), s.DeleteOrg)
		org.POST("/logo", s.authorize(authorization.ObjectOrganization, authorization.ActionUpdate), s.UploadOrgLogo)

		org.GET("/dashboard", s.authorize(authorization.ObjectDashboard, authorization.ActionView), s.GetDashboard)

		org.GET("/credentials", s.authorize(authorization.ObjectCredentials, authorization.ActionView), s.GetCredentials)
		org.POST("/credentials/rotate", s.authorize(authorization.ObjectCredentials, authorization.ActionCredentialsRotate), s.RegenerateCredentials)

		org.GET("/webhook", s.authorize(authorization.ObjectWebhook, authorization.ActionView), s.GetWebhook)
		org.PUT("/webhook", s.authorize(authorization.ObjectWebhook, authorization.ActionUpdate), s.SetWebhook)

		org.GET("/members", s.authorize(authorization.ObjectMember, authorization.ActionView), s.ListMembers)
		org.PUT("/members/:userId/roles", s.authorize(authorization.ObjectMember, authorization.ActionMemberRolesUpdate), s.UpdateMemberRoles)
		org.GET("/members/report", s.authorize(authorization.ObjectMember, authorization.ActionReportExport), s.MembershipReport)

		org.GET("/dids", s.authorize(authorization.ObjectDid, authorization.ActionView), s.ListDids)
		org.POST("/dids", s.authorize(authorization.ObjectDid, authorization.ActionCreate), s.AddDid)
		org.POST("/dids/:didId/primary", s.authorize(authorization.ObjectDid, authorization.ActionDidSetPrimary), s.SetPrimaryDid)

		org.GET("/invitations", s.authorize(authorization.ObjectInvitation, authorization.ActionView), s.ListOrgInvitations)
		org.POST("/invitations", s.authorize(authorization.ObjectInvitation, authorization.ActionCreate), s.CreateInvitation)
		org.DELETE("/invitations/:invitationId", s.authorize(authorization.ObjectInvitation, authorization.ActionDelete), s.DeleteInvitation)

		org.GET("/activities", s.authorize(authorization.ObjectActivity, authorization.ActionView), s.ListActivities)
	}
}

func (s *Server) registerInvitationRoutes() {
	invitations := s.engine.Group("/invitations")
	invitations.Use(s.AuthRequired())
	invitations.Use(s.limiter.GinMiddleware())

	invitations.POST("/:invitationId", s.ResolveInvitation)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")
	public.Use(s.limiter.GinMiddleware())

	public.GET("/orgs/:slug", s.PublicProfile)
}
