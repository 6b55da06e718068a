package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// sensitiveKeys are attribute keys that must never reach the trace backend.
var sensitiveKeys = map[attribute.Key]struct{}{
	"authorization": {},
	"password":      {},
	"client_secret": {},
	"access_token":  {},
	"refresh_token": {},
	"cookie":        {},
}

// SafeAttributes drops attributes with sensitive keys or values.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := sensitiveKeys[attribute.Key(strings.ToLower(string(attr.Key)))]; ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError strips bearer tokens and secrets from error text before it is
// recorded on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "bearer ") || strings.Contains(lower, "client_secret") || strings.Contains(lower, "password") {
		return errors.New("redacted error")
	}
	return err
}
