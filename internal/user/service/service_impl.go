package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/CredenceNG/confirmd-platform/internal/clock"
	"github.com/CredenceNG/confirmd-platform/internal/config"
	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	"github.com/CredenceNG/confirmd-platform/internal/user/domain"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	codeLength        = 6
	tokenTTL          = 15 * time.Minute
	minPasswordLength = 8
)

type service struct {
	db       *gorm.DB
	repo     domain.Repository
	idp      idpdomain.Service
	mailer   email.Provider
	platform *config.PlatformConfigHolder
	keycloak config.KeycloakConfig
	genID    *snowflake.Node
	clock    clock.Clock
	log      *zap.Logger
}

func NewService(
	db *gorm.DB,
	repo domain.Repository,
	idp idpdomain.Service,
	mailer email.Provider,
	platform *config.PlatformConfigHolder,
	cfg config.Config,
	genID *snowflake.Node,
	clk clock.Clock,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:       db,
		repo:     repo,
		idp:      idp,
		mailer:   mailer,
		platform: platform,
		keycloak: cfg.Keycloak,
		genID:    genID,
		clock:    clk,
		log:      log.Named("user"),
	}
}

func (s *service) SendVerificationEmail(ctx context.Context, rawEmail string) error {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return domain.ErrInvalidEmail
	}

	user, err := s.repo.GetByEmail(ctx, address)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user = &domain.User{
			ID:        s.genID.Generate(),
			Email:     address,
			CreatedAt: s.clock.Now(),
			UpdatedAt: s.clock.Now(),
		}
		if err := s.repo.Create(ctx, *user); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if user.IsEmailVerified && user.KeycloakUserID != "" {
			return domain.ErrUserExists
		}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.InvalidateTokens(ctx, user.ID, domain.TokenKindVerification); err != nil {
			return err
		}
		return repo.CreateToken(ctx, domain.Token{
			ID:        s.genID.Generate(),
			UserID:    user.ID,
			Kind:      domain.TokenKindVerification,
			Code:      code,
			ExpiresAt: now.Add(tokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	return s.mailer.SendTemplate(ctx, []string{address}, email.TemplateEmailVerification, map[string]interface{}{
		"platformName":   s.platform.Get().PlatformName,
		"code":           code,
		"expiresMinutes": int(tokenTTL.Minutes()),
	})
}

func (s *service) VerifyEmail(ctx context.Context, rawEmail, code string) error {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return domain.ErrInvalidEmail
	}

	user, err := s.repo.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return domain.ErrAlreadyVerified
	}

	now := s.clock.Now()
	token, err := s.repo.GetActiveToken(ctx, user.ID, domain.TokenKindVerification, strings.TrimSpace(code), now)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkTokenUsed(ctx, token.ID, now); err != nil {
			return err
		}
		user.IsEmailVerified = true
		user.UpdatedAt = now
		return repo.Update(ctx, *user)
	})
}

func (s *service) CompleteSignup(ctx context.Context, req domain.CompleteSignupRequest) (*domain.Profile, error) {
	address, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	user, err := s.repo.GetByEmail(ctx, address)
	if err != nil {
		return nil, err
	}
	if !user.IsEmailVerified {
		return nil, domain.ErrEmailNotVerified
	}
	if user.KeycloakUserID != "" {
		return nil, domain.ErrUserExists
	}

	tokens, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
	if err != nil {
		return nil, err
	}

	keycloakID, err := s.idp.CreateUser(ctx, tokens.AccessToken, idpdomain.User{
		Email:         address,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		EmailVerified: true,
	}, req.Password)
	if err != nil {
		if idpdomain.IsConflict(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	user.KeycloakUserID = keycloakID
	user.Username = address
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, *user); err != nil {
		return nil, err
	}

	profile := toProfile(*user)
	return &profile, nil
}

func (s *service) Login(ctx context.Context, rawEmail, password string) (idpdomain.TokenSet, error) {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return idpdomain.TokenSet{}, domain.ErrInvalidEmail
	}

	user, err := s.repo.GetByEmail(ctx, address)
	if errors.Is(err, domain.ErrUserNotFound) {
		return idpdomain.TokenSet{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return idpdomain.TokenSet{}, err
	}
	if !user.IsEmailVerified {
		return idpdomain.TokenSet{}, domain.ErrEmailNotVerified
	}
	if user.KeycloakUserID == "" {
		return idpdomain.TokenSet{}, domain.ErrSignupIncomplete
	}

	tokens, err := s.idp.PasswordLogin(ctx, s.managementClientID(), s.managementClientSecret(), address, password)
	if errors.Is(err, idpdomain.ErrUnauthorized) {
		return idpdomain.TokenSet{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return idpdomain.TokenSet{}, err
	}
	return tokens, nil
}

func (s *service) ClientLogin(ctx context.Context, clientID, clientSecret string) (idpdomain.TokenSet, error) {
	tokens, err := s.idp.ClientCredentialsToken(ctx, strings.TrimSpace(clientID), strings.TrimSpace(clientSecret))
	if errors.Is(err, idpdomain.ErrUnauthorized) {
		return idpdomain.TokenSet{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return idpdomain.TokenSet{}, err
	}
	return tokens, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (idpdomain.TokenSet, error) {
	tokens, err := s.idp.RefreshAccessToken(ctx, s.managementClientID(), s.managementClientSecret(), strings.TrimSpace(refreshToken))
	if errors.Is(err, idpdomain.ErrUnauthorized) {
		return idpdomain.TokenSet{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return idpdomain.TokenSet{}, err
	}
	return tokens, nil
}

func (s *service) ForgotPassword(ctx context.Context, rawEmail string) error {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return domain.ErrInvalidEmail
	}

	user, err := s.repo.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if user.KeycloakUserID == "" {
		return domain.ErrSignupIncomplete
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.InvalidateTokens(ctx, user.ID, domain.TokenKindPasswordReset); err != nil {
			return err
		}
		return repo.CreateToken(ctx, domain.Token{
			ID:        s.genID.Generate(),
			UserID:    user.ID,
			Kind:      domain.TokenKindPasswordReset,
			Code:      code,
			ExpiresAt: now.Add(tokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	return s.mailer.SendTemplate(ctx, []string{address}, email.TemplatePasswordReset, map[string]interface{}{
		"platformName":   s.platform.Get().PlatformName,
		"code":           code,
		"expiresMinutes": int(tokenTTL.Minutes()),
	})
}

func (s *service) ResetPassword(ctx context.Context, rawEmail, code, newPassword string) error {
	address, err := normalizeEmail(rawEmail)
	if err != nil {
		return domain.ErrInvalidEmail
	}
	if len(newPassword) < minPasswordLength {
		return domain.ErrInvalidPassword
	}

	user, err := s.repo.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if user.KeycloakUserID == "" {
		return domain.ErrSignupIncomplete
	}

	now := s.clock.Now()
	token, err := s.repo.GetActiveToken(ctx, user.ID, domain.TokenKindPasswordReset, strings.TrimSpace(code), now)
	if err != nil {
		return err
	}

	tokens, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
	if err != nil {
		return err
	}
	if err := s.idp.ResetUserPassword(ctx, tokens.AccessToken, user.KeycloakUserID, newPassword); err != nil {
		return err
	}

	return s.repo.MarkTokenUsed(ctx, token.ID, now)
}

func (s *service) Profile(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := toProfile(*user)
	return &profile, nil
}

func (s *service) ProfileByKeycloakID(ctx context.Context, keycloakUserID string) (*domain.Profile, error) {
	user, err := s.repo.GetByKeycloakID(ctx, strings.TrimSpace(keycloakUserID))
	if err != nil {
		return nil, err
	}
	profile := toProfile(*user)
	return &profile, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID snowflake.ID, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.ProfileImg != nil {
		user.ProfileImg = strings.TrimSpace(*req.ProfileImg)
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, *user); err != nil {
		return nil, err
	}
	profile := toProfile(*user)
	return &profile, nil
}

func (s *service) Search(ctx context.Context, req pagination.Request) ([]domain.Profile, pagination.Page, error) {
	users, total, err := s.repo.Search(ctx, req)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	profiles := make([]domain.Profile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, toProfile(user))
	}
	return profiles, pagination.NewPage(req, total), nil
}

// The management client also serves password and refresh grants.
func (s *service) managementClientID() string {
	return s.keycloak.ManagementClientID
}

func (s *service) managementClientSecret() string {
	return s.keycloak.ManagementClientSecret
}

func toProfile(user domain.User) domain.Profile {
	return domain.Profile{
		ID:              user.ID.String(),
		KeycloakUserID:  user.KeycloakUserID,
		Email:           user.Email,
		Username:        user.Username,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		ProfileImg:      user.ProfileImg,
		IsEmailVerified: user.IsEmailVerified,
	}
}

func normalizeEmail(raw string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(raw))
	if address == "" {
		return "", domain.ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return address, nil
}

func generateCode() (string, error) {
	max := big.NewInt(10)
	var sb strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%d", n.Int64())
	}
	return sb.String(), nil
}
