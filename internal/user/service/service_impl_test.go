package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CredenceNG/confirmd-platform/internal/clock"
	"github.com/CredenceNG/confirmd-platform/internal/config"
	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	"github.com/CredenceNG/confirmd-platform/internal/user/domain"
	"github.com/CredenceNG/confirmd-platform/internal/user/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeIdp struct {
	idpdomain.Service

	createUserErr error
	loginErr      error
	resetCalls    int
	createdUsers  int
}

func (f *fakeIdp) ManagementToken(ctx context.Context, p idpdomain.Principal) (idpdomain.TokenSet, error) {
	return idpdomain.TokenSet{AccessToken: "admin-token"}, nil
}

func (f *fakeIdp) CreateUser(ctx context.Context, token string, user idpdomain.User, password string) (string, error) {
	if f.createUserErr != nil {
		return "", f.createUserErr
	}
	f.createdUsers++
	return "kc-user-1", nil
}

func (f *fakeIdp) PasswordLogin(ctx context.Context, clientID, clientSecret, username, password string) (idpdomain.TokenSet, error) {
	if f.loginErr != nil {
		return idpdomain.TokenSet{}, f.loginErr
	}
	return idpdomain.TokenSet{AccessToken: "user-token", RefreshToken: "refresh"}, nil
}

func (f *fakeIdp) ResetUserPassword(ctx context.Context, token, userID, password string) error {
	f.resetCalls++
	return nil
}

type recordingMailer struct {
	templates []string
	lastData  map[string]interface{}
}

func (m *recordingMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return nil
}

func (m *recordingMailer) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	m.templates = append(m.templates, templateName)
	m.lastData = data
	return nil
}

func (m *recordingMailer) lastCode(t *testing.T) string {
	t.Helper()
	code, ok := m.lastData["code"].(string)
	if !ok || code == "" {
		t.Fatalf("no code in mail data: %v", m.lastData)
	}
	return code
}

type fixture struct {
	svc    domain.Service
	idp    *fakeIdp
	mailer *recordingMailer
	clk    *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.User{}, &domain.Token{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	holder, err := config.NewPlatformConfigHolder()
	if err != nil {
		t.Fatalf("failed to build platform config: %v", err)
	}

	idp := &fakeIdp{}
	mailer := &recordingMailer{}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(
		conn,
		repository.NewRepository(conn),
		idp,
		mailer,
		holder,
		config.Config{Keycloak: config.KeycloakConfig{
			ManagementClientID:     "mgmt",
			ManagementClientSecret: "mgmt-secret",
		}},
		node,
		clk,
		zap.NewNop(),
	)
	return &fixture{svc: svc, idp: idp, mailer: mailer, clk: clk}
}

func (f *fixture) signup(t *testing.T, address string) *domain.Profile {
	t.Helper()
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, address); err != nil {
		t.Fatalf("send verification failed: %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, address, f.mailer.lastCode(t)); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	profile, err := f.svc.CompleteSignup(ctx, domain.CompleteSignupRequest{
		Email:     address,
		Password:  "long-enough-password",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("complete signup failed: %v", err)
	}
	return profile
}

func TestSignupFlow(t *testing.T) {
	f := newFixture(t)

	profile := f.signup(t, "Ada@Example.com")
	if profile.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", profile.Email)
	}
	if profile.KeycloakUserID != "kc-user-1" {
		t.Fatalf("provider account not linked: %q", profile.KeycloakUserID)
	}
	if !profile.IsEmailVerified {
		t.Fatal("expected verified profile")
	}
	if len(f.mailer.templates) != 1 || f.mailer.templates[0] != email.TemplateEmailVerification {
		t.Fatalf("unexpected mail templates: %v", f.mailer.templates)
	}
}

func TestVerifyEmailWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send verification failed: %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, "bob@example.com", "000000"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send verification failed: %v", err)
	}
	code := f.mailer.lastCode(t)

	f.clk.Advance(16 * time.Minute)
	if err := f.svc.VerifyEmail(ctx, "bob@example.com", code); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestResendInvalidatesPreviousCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	first := f.mailer.lastCode(t)

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	second := f.mailer.lastCode(t)

	if err := f.svc.VerifyEmail(ctx, "bob@example.com", first); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected first code to be invalidated, got %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, "bob@example.com", second); err != nil {
		t.Fatalf("second code should verify: %v", err)
	}
}

func TestVerifyEmailTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send verification failed: %v", err)
	}
	code := f.mailer.lastCode(t)
	if err := f.svc.VerifyEmail(ctx, "bob@example.com", code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, "bob@example.com", code); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestCompleteSignupRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send verification failed: %v", err)
	}
	_, err := f.svc.CompleteSignup(ctx, domain.CompleteSignupRequest{
		Email:    "bob@example.com",
		Password: "long-enough-password",
	})
	if !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
}

func TestCompleteSignupRejectsShortPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteSignup(context.Background(), domain.CompleteSignupRequest{
		Email:    "bob@example.com",
		Password: "short",
	})
	if !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestCompleteSignupTwice(t *testing.T) {
	f := newFixture(t)

	f.signup(t, "bob@example.com")
	_, err := f.svc.CompleteSignup(context.Background(), domain.CompleteSignupRequest{
		Email:    "bob@example.com",
		Password: "long-enough-password",
	})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestSendVerificationForCompletedAccount(t *testing.T) {
	f := newFixture(t)

	f.signup(t, "bob@example.com")
	err := f.svc.SendVerificationEmail(context.Background(), "bob@example.com")
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLoginStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, "nobody@example.com", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user must look like bad credentials, got %v", err)
	}

	if err := f.svc.SendVerificationEmail(ctx, "bob@example.com"); err != nil {
		t.Fatalf("send verification failed: %v", err)
	}
	if _, err := f.svc.Login(ctx, "bob@example.com", "pw"); !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	if err := f.svc.VerifyEmail(ctx, "bob@example.com", f.mailer.lastCode(t)); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := f.svc.Login(ctx, "bob@example.com", "pw"); !errors.Is(err, domain.ErrSignupIncomplete) {
		t.Fatalf("expected ErrSignupIncomplete, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)

	f.signup(t, "bob@example.com")
	f.idp.loginErr = idpdomain.ErrUnauthorized

	_, err := f.svc.Login(context.Background(), "bob@example.com", "wrong")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)

	f.signup(t, "bob@example.com")
	tokens, err := f.svc.Login(context.Background(), "bob@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Fatal("expected access token")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signup(t, "bob@example.com")

	if err := f.svc.ForgotPassword(ctx, "bob@example.com"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	code := f.mailer.lastCode(t)

	if err := f.svc.ResetPassword(ctx, "bob@example.com", code, "brand-new-password"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if f.idp.resetCalls != 1 {
		t.Fatalf("expected one provider reset, got %d", f.idp.resetCalls)
	}

	// The code is single use.
	err := f.svc.ResetPassword(ctx, "bob@example.com", code, "another-new-password")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestUpdateProfilePartialFields(t *testing.T) {
	f := newFixture(t)

	profile := f.signup(t, "bob@example.com")
	id, err := snowflake.ParseString(profile.ID)
	if err != nil {
		t.Fatalf("bad profile id: %v", err)
	}

	newFirst := "Robert"
	updated, err := f.svc.UpdateProfile(context.Background(), id, domain.UpdateProfileRequest{FirstName: &newFirst})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.FirstName != "Robert" {
		t.Fatalf("first name not updated: %q", updated.FirstName)
	}
	if updated.LastName != "Lovelace" {
		t.Fatalf("last name must be untouched: %q", updated.LastName)
	}
}
