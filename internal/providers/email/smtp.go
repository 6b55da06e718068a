package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	TemplateInvitation        = "org_invitation"
	TemplateOrgDeletion       = "org_deletion"
	TemplatePasswordReset     = "password_reset"
	TemplateEmailVerification = "email_verification"
)

var defaultSubjects = map[string]string{
	TemplateInvitation:        "You're invited to join an organization",
	TemplateOrgDeletion:       "Your organization membership has ended",
	TemplatePasswordReset:     "Reset your password",
	TemplateEmailVerification: "Verify your email address",
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg       Config
	templates *template.Template
}

func NewSMTP(cfg Config) (*SMTPProvider, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &SMTPProvider{cfg: cfg, templates: templates}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	_ = ctx
	if len(to) == 0 {
		return fmt.Errorf("%w: no recipients", ErrDeliveryFailed)
	}

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", strings.Join(to, ", "), subject, mime, htmlBody))

	if err := smtp.SendMail(addr, auth, p.cfg.From, to, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	tmpl := p.templates.Lookup(templateName + ".html")
	if tmpl == nil {
		return fmt.Errorf("unknown email template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("execute email template %q: %w", templateName, err)
	}

	subject := defaultSubjects[templateName]
	if override, ok := data["subject"].(string); ok && strings.TrimSpace(override) != "" {
		subject = override
	}
	if templateName == TemplateInvitation {
		if orgName, ok := data["orgName"].(string); ok && orgName != "" {
			subject = fmt.Sprintf("You're invited to join %s", orgName)
		}
	}

	return p.Send(ctx, to, subject, body.String())
}
