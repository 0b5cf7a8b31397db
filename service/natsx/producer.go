package natsx

import (
	"context"

	"PChat/tools/errs"

	"github.com/google/uuid"
)

type Producer struct{ c *Client }

func NewProducer(c *Client) *Producer { return &Producer{c: c} }

// Publish sends data on the subject routed for biz.
func (p *Producer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	return p.c.send(ctx, r, data, hdr)
}

// PublishOnce sets Nats-Msg-Id so JetStream and the idempotency middleware
// drop redeliveries. An empty msgID gets a random one.
func (p *Producer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	out := make(map[string]string, len(hdr)+1)
	for k, v := range hdr {
		out[k] = v
	}
	if msgID == "" {
		msgID = uuid.NewString()
	}
	out[HeaderMsgID] = msgID
	return p.Publish(ctx, biz, data, out)
}
