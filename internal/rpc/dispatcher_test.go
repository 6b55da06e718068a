package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	obsmetrics "github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	orgdomain "github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	m, err := obsmetrics.New(obsmetrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("failed to build metrics: %v", err)
	}
	return NewDispatcher(zap.NewNop(), m)
}

type echoRequest struct {
	Name string `json:"name"`
}

func TestDispatchSuccess(t *testing.T) {
	d := newTestDispatcher(t)
	Register(d, CmdOrgGet, func(ctx context.Context, req echoRequest) (any, error) {
		return map[string]string{"name": req.Name}, nil
	})

	reply := d.Dispatch(context.Background(), Request{
		Cmd:           CmdOrgGet,
		Payload:       json.RawMessage(`{"name":"acme"}`),
		CorrelationID: "corr-1",
	})

	if !reply.OK() {
		t.Fatalf("expected success, got %d %s", reply.StatusCode, reply.Error)
	}
	if reply.CorrelationID != "corr-1" {
		t.Fatalf("correlation id not propagated: %q", reply.CorrelationID)
	}

	var body map[string]string
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if body["name"] != "acme" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)

	reply := d.Dispatch(context.Background(), Request{Cmd: Command("nope")})
	if reply.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", reply.StatusCode)
	}
	if reply.Error != "unknown_command" {
		t.Fatalf("unexpected error: %q", reply.Error)
	}
}

func TestDispatchInvalidPayload(t *testing.T) {
	d := newTestDispatcher(t)
	Register(d, CmdOrgGet, func(ctx context.Context, req echoRequest) (any, error) {
		return nil, nil
	})

	reply := d.Dispatch(context.Background(), Request{
		Cmd:     CmdOrgGet,
		Payload: json.RawMessage(`{"name":`),
	})
	if reply.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", reply.StatusCode)
	}
	if reply.Error != "invalid_payload" {
		t.Fatalf("unexpected error: %q", reply.Error)
	}
}

func TestDispatchTranslatesDomainError(t *testing.T) {
	d := newTestDispatcher(t)
	Register(d, CmdOrgGet, func(ctx context.Context, req echoRequest) (any, error) {
		return nil, fmt.Errorf("lookup: %w", orgdomain.ErrOrgNotFound)
	})

	reply := d.Dispatch(context.Background(), Request{Cmd: CmdOrgGet})
	if reply.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", reply.StatusCode)
	}
	if reply.Error != orgdomain.ErrOrgNotFound.Error() {
		t.Fatalf("unexpected error: %q", reply.Error)
	}
	if len(reply.Body) != 0 {
		t.Fatalf("error reply must not carry a body: %s", reply.Body)
	}
}

func TestDispatchEmptyResultHasNoBody(t *testing.T) {
	d := newTestDispatcher(t)
	Register(d, CmdOrgDelete, func(ctx context.Context, req struct{}) (any, error) {
		return nil, nil
	})

	reply := d.Dispatch(context.Background(), Request{Cmd: CmdOrgDelete})
	if !reply.OK() {
		t.Fatalf("expected success, got %d", reply.StatusCode)
	}
	if len(reply.Body) != 0 {
		t.Fatalf("expected empty body, got %s", reply.Body)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	d := newTestDispatcher(t)
	Register(d, CmdOrgGet, func(ctx context.Context, req struct{}) (any, error) { return nil, nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register(d, CmdOrgGet, func(ctx context.Context, req struct{}) (any, error) { return nil, nil })
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{nil, http.StatusOK, ""},
		{orgdomain.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
		{userdomain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{orgdomain.ErrEmailMismatch, http.StatusForbidden, "invitation_email_mismatch"},
		{orgdomain.ErrOrgNotFound, http.StatusNotFound, "organization_not_found"},
		{orgdomain.ErrSlugTaken, http.StatusConflict, "organization_slug_taken"},
		{orgdomain.ErrMaxOrgLimit, http.StatusConflict, "max_org_limit_reached"},
		{errors.New("mystery"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		status, message := Translate(tc.err)
		if status != tc.status || message != tc.message {
			t.Fatalf("Translate(%v) = %d %q, expected %d %q", tc.err, status, message, tc.status, tc.message)
		}
	}
}

func TestTranslateWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", userdomain.ErrTokenExpired)
	status, message := Translate(wrapped)
	if status != http.StatusBadRequest || message != "token_expired" {
		t.Fatalf("unexpected translation: %d %q", status, message)
	}
}

func TestTranslateIdpError(t *testing.T) {
	status, message := Translate(idpdomain.NewError("create_client", http.StatusServiceUnavailable, "down"))
	if status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}
	if message != "identity_provider_error: create_client (upstream 503)" {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestLocalBusRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	Register(d, CmdUserProfile, func(ctx context.Context, req echoRequest) (any, error) {
		return map[string]string{"hello": req.Name}, nil
	})
	bus := NewLocalBus(d)

	reply, err := bus.Invoke(context.Background(), CmdUserProfile, map[string]any{"name": "bob"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if !reply.OK() {
		t.Fatalf("expected success, got %d %s", reply.StatusCode, reply.Error)
	}
	if reply.CorrelationID == "" {
		t.Fatal("expected a generated correlation id")
	}

	var body map[string]string
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if body["hello"] != "bob" {
		t.Fatalf("unexpected body: %v", body)
	}
}
