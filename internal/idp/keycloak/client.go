// Package keycloak implements the identity provider client against the
// Keycloak admin and OpenID Connect REST APIs.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CredenceNG/confirmd-platform/internal/config"
	"github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	obstracing "github.com/CredenceNG/confirmd-platform/internal/observability/tracing"
	"go.uber.org/zap"
)

const (
	readRetryAttempts = 3
	readRetryDelay    = 250 * time.Millisecond
)

type service struct {
	cfg        config.KeycloakConfig
	urls       urls
	httpClient *http.Client
	log        *zap.Logger
}

// NewService builds the Keycloak-backed identity provider client.
func NewService(cfg config.Config, log *zap.Logger) domain.Service {
	return &service{
		cfg:        cfg.Keycloak,
		urls:       newURLs(cfg.Keycloak.Domain, cfg.Keycloak.Realm),
		httpClient: obstracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		log:        log.Named("keycloak"),
	}
}

func (s *service) ManagementToken(ctx context.Context, p domain.Principal) (domain.TokenSet, error) {
	clientID, clientSecret := p.ClientID, p.ClientSecret
	if p.PlatformAdmin {
		clientID = s.cfg.ManagementClientID
		clientSecret = s.cfg.ManagementClientSecret
	}
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return domain.TokenSet{}, domain.ErrUnauthorized
	}
	return s.ClientCredentialsToken(ctx, clientID, clientSecret)
}

func (s *service) ClientCredentialsToken(ctx context.Context, clientID, clientSecret string) (domain.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	return s.tokenGrant(ctx, "client_credentials_token", form)
}

func (s *service) PasswordLogin(ctx context.Context, clientID, clientSecret, username, password string) (domain.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("username", username)
	form.Set("password", password)
	return s.tokenGrant(ctx, "password_login", form)
}

func (s *service) RefreshAccessToken(ctx context.Context, clientID, clientSecret, refreshToken string) (domain.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("refresh_token", refreshToken)
	return s.tokenGrant(ctx, "refresh_token", form)
}

func (s *service) tokenGrant(ctx context.Context, op string, form url.Values) (domain.TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.urls.token(), strings.NewReader(form.Encode()))
	if err != nil {
		return domain.TokenSet{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("idp: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenSet{}, err
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			return domain.TokenSet{}, domain.ErrUnauthorized
		}
		return domain.TokenSet{}, domain.NewError(op, resp.StatusCode, truncate(body))
	}

	var tokens domain.TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return domain.TokenSet{}, domain.NewError(op, resp.StatusCode, "malformed token response")
	}
	if tokens.AccessToken == "" {
		return domain.TokenSet{}, domain.ErrUnauthorized
	}
	return tokens, nil
}

func (s *service) UserInfo(ctx context.Context, accessToken string) (domain.User, error) {
	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Preferred     string `json:"preferred_username"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "user_info", s.urls.userInfo(), accessToken, nil, &payload); err != nil {
		if domain.IsUnauthorized(err) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return domain.User{
		ID:            payload.Sub,
		Username:      payload.Preferred,
		Email:         payload.Email,
		FirstName:     payload.GivenName,
		LastName:      payload.FamilyName,
		EmailVerified: payload.EmailVerified,
	}, nil
}

type clientRepresentation struct {
	ID       string `json:"id,omitempty"`
	ClientID string `json:"clientId"`
	Name     string `json:"name,omitempty"`
}

func (s *service) CreateClient(ctx context.Context, token, orgName, orgID string) (domain.Client, error) {
	payload := map[string]any{
		"clientId":                  orgID,
		"name":                      orgName,
		"enabled":                   true,
		"protocol":                  "openid-connect",
		"description":               "rest-api",
		"publicClient":              false,
		"bearerOnly":                false,
		"standardFlowEnabled":       true,
		"implicitFlowEnabled":       false,
		"directAccessGrantsEnabled": true,
		"serviceAccountsEnabled":    true,
		"clientAuthenticatorType":   "client-secret",
		"fullScopeAllowed":          false,
		"attributes":                map[string]string{"orgId": orgID},
	}
	if err := s.doJSON(ctx, http.MethodPost, "create_client", s.urls.clients(), token, payload, nil); err != nil {
		return domain.Client{}, err
	}

	created, err := s.GetClient(ctx, token, orgID)
	if err != nil {
		return domain.Client{}, err
	}
	secret, err := s.ClientSecret(ctx, token, created.IdpID)
	if err != nil {
		return domain.Client{}, err
	}
	created.ClientSecret = secret
	return created, nil
}

func (s *service) GetClient(ctx context.Context, token, clientID string) (domain.Client, error) {
	var found []clientRepresentation
	if err := s.doJSON(ctx, http.MethodGet, "get_client", s.urls.clientByClientID(clientID), token, nil, &found); err != nil {
		return domain.Client{}, err
	}
	if len(found) == 0 {
		return domain.Client{}, domain.ErrClientNotFound
	}
	return domain.Client{IdpID: found[0].ID, ClientID: found[0].ClientID, Name: found[0].Name}, nil
}

func (s *service) ClientSecret(ctx context.Context, token, idpID string) (string, error) {
	var payload struct {
		Value string `json:"value"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "get_client_secret", s.urls.clientSecret(idpID), token, nil, &payload); err != nil {
		return "", err
	}
	return payload.Value, nil
}

func (s *service) RegenerateClientSecret(ctx context.Context, token, idpID string) (string, error) {
	if err := s.doJSON(ctx, http.MethodPost, "regenerate_client_secret", s.urls.clientSecret(idpID), token, map[string]any{}, nil); err != nil {
		return "", err
	}
	return s.ClientSecret(ctx, token, idpID)
}

func (s *service) DeleteClient(ctx context.Context, token, idpID string) error {
	err := s.doJSON(ctx, http.MethodDelete, "delete_client", s.urls.client(idpID), token, nil, nil)
	if domain.IsNotFound(err) {
		return domain.ErrClientNotFound
	}
	return err
}

func (s *service) CreateClientRole(ctx context.Context, token, idpID, name, description string) error {
	payload := map[string]any{
		"clientRole":  true,
		"name":        name,
		"description": description,
	}
	err := s.doJSON(ctx, http.MethodPost, "create_client_role", s.urls.clientRoles(idpID), token, payload, nil)
	if domain.IsConflict(err) {
		// The role already exists on the client. Creation is idempotent.
		return nil
	}
	return err
}

func (s *service) ClientRoles(ctx context.Context, token, idpID string) ([]domain.Role, error) {
	var roles []domain.Role
	if err := s.doJSON(ctx, http.MethodGet, "get_client_roles", s.urls.clientRoles(idpID), token, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *service) ClientRole(ctx context.Context, token, idpID, name string) (domain.Role, error) {
	var role domain.Role
	err := s.doJSON(ctx, http.MethodGet, "get_client_role", s.urls.clientRole(idpID, name), token, nil, &role)
	if domain.IsNotFound(err) {
		return domain.Role{}, domain.ErrRoleNotFound
	}
	if err != nil {
		return domain.Role{}, err
	}
	return role, nil
}

func (s *service) AssignUserClientRoles(ctx context.Context, token, idpID, userID string, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	return s.doJSON(ctx, http.MethodPost, "assign_user_client_roles", s.urls.userClientRoleMappings(userID, idpID), token, roles, nil)
}

func (s *service) RemoveUserClientRoles(ctx context.Context, token, idpID, userID string, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	err := s.doJSON(ctx, http.MethodDelete, "remove_user_client_roles", s.urls.userClientRoleMappings(userID, idpID), token, roles, nil)
	if domain.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *service) UserClientRoles(ctx context.Context, token, idpID, userID string) ([]domain.Role, error) {
	var roles []domain.Role
	if err := s.doJSON(ctx, http.MethodGet, "get_user_client_roles", s.urls.userClientRoleMappings(userID, idpID), token, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *service) CreateUser(ctx context.Context, token string, user domain.User, password string) (string, error) {
	payload := map[string]any{
		"username":      user.Email,
		"email":         user.Email,
		"firstName":     user.FirstName,
		"lastName":      user.LastName,
		"enabled":       true,
		"emailVerified": user.EmailVerified,
	}
	if password != "" {
		payload["credentials"] = []map[string]any{{
			"type":      "password",
			"value":     password,
			"temporary": false,
		}}
	}
	if err := s.doJSON(ctx, http.MethodPost, "create_user", s.urls.users(), token, payload, nil); err != nil {
		return "", err
	}

	// User search can lag creation; retried by doJSON on transient failures
	// and here on an empty result.
	var lastErr error
	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		created, err := s.UserByEmail(ctx, token, user.Email)
		if err == nil {
			return created.ID, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(readRetryDelay):
		}
	}
	return "", lastErr
}

func (s *service) UserByEmail(ctx context.Context, token, email string) (domain.User, error) {
	var found []struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		Email         string `json:"email"`
		FirstName     string `json:"firstName"`
		LastName      string `json:"lastName"`
		EmailVerified bool   `json:"emailVerified"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "get_user_by_email", s.urls.userByEmail(email), token, nil, &found); err != nil {
		return domain.User{}, err
	}
	for _, u := range found {
		if strings.EqualFold(u.Email, email) || strings.EqualFold(u.Username, email) {
			return domain.User{
				ID:            u.ID,
				Username:      u.Username,
				Email:         u.Email,
				FirstName:     u.FirstName,
				LastName:      u.LastName,
				EmailVerified: u.EmailVerified,
			}, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *service) ResetUserPassword(ctx context.Context, token, userID, password string) error {
	payload := map[string]any{
		"type":      "password",
		"value":     password,
		"temporary": false,
	}
	err := s.doJSON(ctx, http.MethodPut, "reset_user_password", s.urls.resetPassword(userID), token, payload, nil)
	if domain.IsNotFound(err) {
		return domain.ErrUserNotFound
	}
	return err
}

func (s *service) DeleteUser(ctx context.Context, token, userID string) error {
	err := s.doJSON(ctx, http.MethodDelete, "delete_user", s.urls.user(userID), token, nil, nil)
	if domain.IsNotFound(err) {
		return domain.ErrUserNotFound
	}
	return err
}

// doJSON performs one admin API call. GET requests are retried on transport
// errors and 5xx responses; writes are not.
func (s *service) doJSON(ctx context.Context, method, op, endpoint, token string, in, out any) error {
	var payload []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = encoded
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = readRetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readRetryDelay):
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("idp: %s: %w", op, err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return domain.NewError(op, resp.StatusCode, "malformed response")
				}
			}
			return nil
		}

		idpErr := domain.NewError(op, resp.StatusCode, truncate(respBody))
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = idpErr
			continue
		}
		return idpErr
	}
	return lastErr
}

func truncate(body []byte) string {
	const max = 512
	text := strings.TrimSpace(string(body))
	if len(text) > max {
		return text[:max]
	}
	return text
}
