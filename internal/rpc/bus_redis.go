package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/CredenceNG/confirmd-platform/pkg/telemetry/correlation"
	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	requestQueue   = "confirmd:rpc:requests"
	replyKeyPrefix = "confirmd:rpc:reply:"

	invokeTimeout = 15 * time.Second
	popTimeout    = 5 * time.Second
	replyTTL      = 30 * time.Second
)

// ErrReplyTimeout means the worker did not answer within the invoke window.
var ErrReplyTimeout = errors.New("rpc_reply_timeout")

type redisBus struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisBus sends requests over a Redis list and blocks on a per-call
// reply key.
func NewRedisBus(client *redis.Client, log *zap.Logger) Bus {
	return &redisBus{
		client: client,
		log:    log.Named("rpc.redis"),
	}
}

func (b *redisBus) Invoke(ctx context.Context, cmd Command, payload any) (Reply, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}

	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	req := Request{
		Cmd:           cmd,
		Payload:       raw,
		ReplyTo:       replyKeyPrefix + ulid.Make().String(),
		CorrelationID: correlationID,
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return Reply{}, err
	}
	if err := b.client.LPush(ctx, requestQueue, encoded).Err(); err != nil {
		return Reply{}, err
	}

	res, err := b.client.BRPop(ctx, invokeTimeout, req.ReplyTo).Result()
	if errors.Is(err, redis.Nil) {
		return Reply{}, ErrReplyTimeout
	}
	if err != nil {
		return Reply{}, err
	}
	if len(res) != 2 {
		return Reply{}, ErrReplyTimeout
	}

	var reply Reply
	if err := json.Unmarshal([]byte(res[1]), &reply); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// Worker drains the request queue and runs the dispatcher.
type Worker struct {
	client     *redis.Client
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewWorker(client *redis.Client, d *Dispatcher, log *zap.Logger) *Worker {
	return &Worker{
		client:     client,
		dispatcher: d,
		log:        log.Named("rpc.worker"),
	}
}

// Run blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := w.client.BRPop(ctx, popTimeout, requestQueue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
			w.log.Warn("malformed request dropped", zap.Error(err))
			continue
		}

		go w.handle(ctx, req)
	}
}

func (w *Worker) handle(ctx context.Context, req Request) {
	ctx = correlation.ContextWithCorrelationID(ctx, req.CorrelationID)
	reply := w.dispatcher.Dispatch(ctx, req)

	if req.ReplyTo == "" {
		return
	}
	encoded, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("reply marshal failed", zap.String("cmd", string(req.Cmd)), zap.Error(err))
		return
	}

	pipe := w.client.Pipeline()
	pipe.LPush(ctx, req.ReplyTo, encoded)
	pipe.Expire(ctx, req.ReplyTo, replyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn("reply publish failed", zap.String("cmd", string(req.Cmd)), zap.Error(err))
	}
}
