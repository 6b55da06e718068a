// Package rpc is the typed command bus between the HTTP gateway and the
// backend workflows. Commands form a closed set; the wire discriminator is
// derived from the typed command, never matched free-form.
package rpc

import "encoding/json"

// Command identifies exactly one workflow operation.
type Command string

const (
	CmdOrgCreate           Command = "org.create"
	CmdOrgUpdate           Command = "org.update"
	CmdOrgGet              Command = "org.get"
	CmdOrgList             Command = "org.list"
	CmdOrgListByUser       Command = "org.list_by_user"
	CmdOrgPublicProfile    Command = "org.public_profile"
	CmdOrgDelete           Command = "org.delete"
	CmdOrgCredentials      Command = "org.credentials.get"
	CmdOrgCredentialsReset Command = "org.credentials.regenerate"
	CmdOrgWebhookSet       Command = "org.webhook.set"
	CmdOrgWebhookGet       Command = "org.webhook.get"
	CmdOrgDashboard        Command = "org.dashboard"
	CmdOrgMembers          Command = "org.members"
	CmdOrgMembershipReport Command = "org.membership_report"
	CmdOrgDidAdd           Command = "org.did.add"
	CmdOrgDidList          Command = "org.did.list"
	CmdOrgDidSetPrimary    Command = "org.did.set_primary"
	CmdOrgUpdateUserRoles  Command = "org.update_user_roles"

	CmdInvitationCreate   Command = "invitation.create"
	CmdInvitationListOrg  Command = "invitation.list_org"
	CmdInvitationListUser Command = "invitation.list_user"
	CmdInvitationResolve  Command = "invitation.resolve"
	CmdInvitationDelete   Command = "invitation.delete"

	CmdUserSendVerification Command = "user.send_verification"
	CmdUserVerifyEmail      Command = "user.verify_email"
	CmdUserCompleteSignup   Command = "user.complete_signup"
	CmdUserLogin            Command = "user.login"
	CmdUserClientLogin      Command = "user.client_login"
	CmdUserRefreshToken     Command = "user.refresh_token"
	CmdUserForgotPassword   Command = "user.forgot_password"
	CmdUserResetPassword    Command = "user.reset_password"
	CmdUserProfile          Command = "user.profile"
	CmdUserUpdateProfile    Command = "user.update_profile"
	CmdUserSearch           Command = "user.search"

	CmdActivityList Command = "activity.list"
	CmdRoleCatalog  Command = "orgrole.catalog"
)

// Request is the wire envelope for one command invocation.
type Request struct {
	Cmd           Command         `json:"cmd"`
	Payload       json.RawMessage `json:"payload"`
	ReplyTo       string          `json:"replyTo,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Reply carries either a result body or a translated error. StatusCode
// follows HTTP semantics; the gateway forwards it unchanged.
type Reply struct {
	StatusCode    int             `json:"statusCode"`
	Error         string          `json:"error,omitempty"`
	Body          json.RawMessage `json:"body,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// OK reports whether the reply carries a success body.
func (r Reply) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
