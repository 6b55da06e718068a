package email

import (
	"context"
	"errors"
)

// ErrDeliveryFailed wraps transport-level send failures so callers can treat
// notification delivery as advisory.
var ErrDeliveryFailed = errors.New("email_delivery_failed")

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	return nil
}
