package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	obsmetrics "github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	"go.uber.org/zap"
)

// HandlerFunc executes one command against its workflow service.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher holds the closed command table. Registration happens once at
// startup; dispatch is read-only afterwards.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Command]HandlerFunc
	log      *zap.Logger
	metrics  *obsmetrics.Metrics
}

func NewDispatcher(log *zap.Logger, metrics *obsmetrics.Metrics) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Command]HandlerFunc),
		log:      log.Named("rpc.dispatcher"),
		metrics:  metrics,
	}
}

// Register binds a command to a typed handler. Registering the same command
// twice panics; the table is a closed set, not a patchable registry.
func Register[Req any](d *Dispatcher, cmd Command, fn func(context.Context, Req) (any, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[cmd]; exists {
		panic("rpc: duplicate handler for " + string(cmd))
	}
	d.handlers[cmd] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, errInvalidPayload
			}
		}
		return fn(ctx, req)
	}
}

// Dispatch runs one request and always produces a reply envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Reply {
	d.mu.RLock()
	handler, ok := d.handlers[req.Cmd]
	d.mu.RUnlock()

	reply := Reply{CorrelationID: req.CorrelationID}

	if !ok {
		reply.StatusCode, reply.Error = Translate(ErrUnknownCommand)
		d.metrics.RecordRPCRequest(ctx, string(req.Cmd), reply.StatusCode)
		return reply
	}

	result, err := handler(ctx, req.Payload)
	if err != nil {
		reply.StatusCode, reply.Error = Translate(err)
		if reply.StatusCode >= http.StatusInternalServerError {
			d.log.Error("command failed",
				zap.String("cmd", string(req.Cmd)),
				zap.String("correlation_id", req.CorrelationID),
				zap.Error(err))
		}
		d.metrics.RecordRPCRequest(ctx, string(req.Cmd), reply.StatusCode)
		return reply
	}

	reply.StatusCode = http.StatusOK
	if result != nil {
		body, err := json.Marshal(result)
		if err != nil {
			reply.StatusCode, reply.Error = Translate(err)
			d.metrics.RecordRPCRequest(ctx, string(req.Cmd), reply.StatusCode)
			return reply
		}
		reply.Body = body
	}

	d.metrics.RecordRPCRequest(ctx, string(req.Cmd), reply.StatusCode)
	return reply
}

// errInvalidPayload is internal to dispatch; it never escapes as-is.
var errInvalidPayload = invalidPayloadError{}

type invalidPayloadError struct{}

func (invalidPayloadError) Error() string { return "invalid_payload" }
