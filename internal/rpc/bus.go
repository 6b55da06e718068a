package rpc

import (
	"context"
	"encoding/json"

	"github.com/CredenceNG/confirmd-platform/pkg/telemetry/correlation"
)

// Bus carries one command invocation to wherever the dispatcher runs and
// returns its reply envelope. Transport failures are returned as errors;
// domain failures travel inside the reply.
type Bus interface {
	Invoke(ctx context.Context, cmd Command, payload any) (Reply, error)
}

type localBus struct {
	dispatcher *Dispatcher
}

// NewLocalBus dispatches in-process. Used when the gateway and the workflows
// share one binary.
func NewLocalBus(d *Dispatcher) Bus {
	return &localBus{dispatcher: d}
}

func (b *localBus) Invoke(ctx context.Context, cmd Command, payload any) (Reply, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}

	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	return b.dispatcher.Dispatch(ctx, Request{
		Cmd:           cmd,
		Payload:       raw,
		CorrelationID: correlationID,
	}), nil
}
