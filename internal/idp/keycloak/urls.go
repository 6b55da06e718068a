package keycloak

import (
	"fmt"
	"net/url"
	"strings"
)

// urls builds admin and OpenID Connect endpoints for one realm. The base
// domain always ends with a trailing slash.
type urls struct {
	domain string
	realm  string
}

func newURLs(domain, realm string) urls {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/") + "/"
	return urls{domain: domain, realm: realm}
}

func (u urls) token() string {
	return fmt.Sprintf("%srealms/%s/protocol/openid-connect/token", u.domain, u.realm)
}

func (u urls) userInfo() string {
	return fmt.Sprintf("%srealms/%s/protocol/openid-connect/userinfo", u.domain, u.realm)
}

func (u urls) users() string {
	return fmt.Sprintf("%sadmin/realms/%s/users", u.domain, u.realm)
}

func (u urls) userByEmail(email string) string {
	return fmt.Sprintf("%s?email=%s&exact=true", u.users(), url.QueryEscape(email))
}

func (u urls) user(userID string) string {
	return fmt.Sprintf("%s/%s", u.users(), url.PathEscape(userID))
}

func (u urls) resetPassword(userID string) string {
	return fmt.Sprintf("%s/reset-password", u.user(userID))
}

func (u urls) clients() string {
	return fmt.Sprintf("%sadmin/realms/%s/clients", u.domain, u.realm)
}

func (u urls) clientByClientID(clientID string) string {
	return fmt.Sprintf("%s?clientId=%s", u.clients(), url.QueryEscape(clientID))
}

func (u urls) client(idpID string) string {
	return fmt.Sprintf("%s/%s", u.clients(), url.PathEscape(idpID))
}

func (u urls) clientSecret(idpID string) string {
	return fmt.Sprintf("%s/client-secret", u.client(idpID))
}

func (u urls) clientRoles(idpID string) string {
	return fmt.Sprintf("%s/roles", u.client(idpID))
}

func (u urls) clientRole(idpID, roleName string) string {
	return fmt.Sprintf("%s/roles/%s", u.client(idpID), url.PathEscape(roleName))
}

func (u urls) userClientRoleMappings(userID, idpID string) string {
	return fmt.Sprintf("%s/role-mappings/clients/%s", u.user(userID), url.PathEscape(idpID))
}
