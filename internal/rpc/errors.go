package rpc

import (
	"errors"
	"fmt"
	"net/http"

	activitydomain "github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	orgdomain "github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	rolesyncdomain "github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
)

// ErrUnknownCommand means the request's discriminator is outside the closed
// command set.
var ErrUnknownCommand = errors.New("unknown_command")

var statusByErr = []struct {
	err    error
	status int
}{
	{orgdomain.ErrInvalidName, http.StatusBadRequest},
	{orgdomain.ErrInvalidUser, http.StatusBadRequest},
	{orgdomain.ErrInvalidOrganization, http.StatusBadRequest},
	{orgdomain.ErrInvalidEmail, http.StatusBadRequest},
	{orgdomain.ErrInvalidWebhookURL, http.StatusBadRequest},
	{userdomain.ErrInvalidEmail, http.StatusBadRequest},
	{userdomain.ErrInvalidPassword, http.StatusBadRequest},
	{userdomain.ErrTokenInvalid, http.StatusBadRequest},
	{userdomain.ErrTokenExpired, http.StatusBadRequest},
	{orgroledomain.ErrInvalidOrgRole, http.StatusBadRequest},
	{orgroledomain.ErrInvalidRole, http.StatusBadRequest},
	{orgroledomain.ErrInvalidUser, http.StatusBadRequest},
	{activitydomain.ErrInvalidAction, http.StatusBadRequest},
	{activitydomain.ErrInvalidOrganization, http.StatusBadRequest},

	{userdomain.ErrInvalidCredentials, http.StatusUnauthorized},
	{idpdomain.ErrUnauthorized, http.StatusUnauthorized},

	{orgdomain.ErrForbidden, http.StatusForbidden},
	{orgdomain.ErrEmailMismatch, http.StatusForbidden},
	{orgdomain.ErrOrgMismatch, http.StatusForbidden},
	{userdomain.ErrEmailNotVerified, http.StatusForbidden},

	{orgdomain.ErrOrgNotFound, http.StatusNotFound},
	{orgdomain.ErrInvitationNotFound, http.StatusNotFound},
	{orgdomain.ErrDidNotFound, http.StatusNotFound},
	{userdomain.ErrUserNotFound, http.StatusNotFound},
	{orgroledomain.ErrRoleNotFound, http.StatusNotFound},
	{orgroledomain.ErrNotMember, http.StatusNotFound},
	{rolesyncdomain.ErrRoleNotFound, http.StatusNotFound},
	{idpdomain.ErrUserNotFound, http.StatusNotFound},
	{idpdomain.ErrClientNotFound, http.StatusNotFound},
	{idpdomain.ErrRoleNotFound, http.StatusNotFound},

	{orgdomain.ErrSlugTaken, http.StatusConflict},
	{orgdomain.ErrInvitationExists, http.StatusConflict},
	{orgdomain.ErrInvalidTransition, http.StatusConflict},
	{orgdomain.ErrMaxOrgLimit, http.StatusConflict},
	{orgdomain.ErrNotRegistered, http.StatusConflict},
	{userdomain.ErrUserExists, http.StatusConflict},
	{userdomain.ErrAlreadyVerified, http.StatusConflict},
	{userdomain.ErrSignupIncomplete, http.StatusConflict},
	{orgroledomain.ErrAlreadyMember, http.StatusConflict},

	{email.ErrDeliveryFailed, http.StatusBadGateway},
	{rolesyncdomain.ErrBatchFailed, http.StatusBadGateway},

	{ErrUnknownCommand, http.StatusBadRequest},
	{errInvalidPayload, http.StatusBadRequest},
}

// Translate maps an error from the domain taxonomy to the wire status and
// message. This is the only place that translation happens; everything
// unrecognized collapses to an opaque 500.
func Translate(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	for _, entry := range statusByErr {
		if errors.Is(err, entry.err) {
			return entry.status, entry.err.Error()
		}
	}

	var idpErr *idpdomain.Error
	if errors.As(err, &idpErr) {
		// Upstream status is preserved in the message; the envelope carries
		// a gateway-class code.
		return http.StatusBadGateway, fmt.Sprintf("identity_provider_error: %s (upstream %d)", idpErr.Op, idpErr.Status)
	}

	return http.StatusInternalServerError, "internal_error"
}
