package natsx

import (
	"context"

	"PChat/tools/errs"
	"PChat/tools/safe"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Consumer struct {
	c   *Client
	mws []Middleware
}

func NewConsumer(c *Client, mws ...Middleware) *Consumer {
	return &Consumer{c: c, mws: mws}
}

// Subscribe attaches h to the route of biz. JetStream messages are acked
// when h returns nil and nacked otherwise.
func (cs *Consumer) Subscribe(biz string, h Handler) error {
	r, ok := cs.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	h = Chain(h, cs.mws...)

	cb := func(m *nats.Msg) {
		defer safe.Recover("natsx:" + biz)
		err := h(context.Background(), Message{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		})
		if err != nil {
			cs.c.log.Warn("handler failed", zap.String("biz", biz), zap.Error(err))
		}
		if r.Mode != JetStream {
			return
		}
		if err == nil {
			_ = m.Ack()
		} else {
			_ = m.Nak()
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	switch {
	case r.Mode == JetStream:
		opts := []nats.SubOpt{nats.ManualAck()}
		if r.Durable != "" {
			opts = append(opts, nats.Durable(r.Durable))
		}
		if r.Queue == "" {
			sub, err = cs.c.js.Subscribe(r.Subject, cb, opts...)
		} else {
			sub, err = cs.c.js.QueueSubscribe(r.Subject, r.Queue, cb, opts...)
		}
	case r.Queue == "":
		sub, err = cs.c.nc.Subscribe(r.Subject, cb)
	default:
		sub, err = cs.c.nc.QueueSubscribe(r.Subject, r.Queue, cb)
	}
	if err != nil {
		return errs.WrapMsg(err, "subscribe", "biz", biz)
	}
	cs.c.mu.Lock()
	cs.c.subs[biz] = sub
	cs.c.mu.Unlock()
	return nil
}
