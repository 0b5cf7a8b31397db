package natsx

import "context"

const HeaderMsgID = "Nats-Msg-Id"

type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

type Handler func(ctx context.Context, msg Message) error

// Middleware wraps a Handler (logging, idempotency, retries).
type Middleware func(Handler) Handler

// Chain applies mws so that mws[0] runs first.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
