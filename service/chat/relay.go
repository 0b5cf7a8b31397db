package chat

import (
	"PChat/module/message/model"

	"go.uber.org/zap"
)

// Relay delivers message events to the receiver's live connection. Delivery
// is best effort and at most once; an offline receiver is not an error.
type Relay struct {
	reg *Registry
	log *zap.Logger
}

func NewRelay(reg *Registry, log *zap.Logger) *Relay {
	return &Relay{reg: reg, log: log}
}

func (r *Relay) RelayNewMessage(msg *model.Message) bool {
	if msg == nil {
		return false
	}
	frame, err := BuildNewMessageFrame(msg)
	if err != nil {
		r.log.Error("build new-message frame", zap.String("msg", msg.ID), zap.Error(err))
		return false
	}
	return r.push(msg.ReceiverID, frame, EventNewMessage)
}

func (r *Relay) RelayMessageDeleted(messageID, receiverID string) bool {
	frame, err := BuildDeletedFrame(messageID)
	if err != nil {
		r.log.Error("build message-deleted frame", zap.String("msg", messageID), zap.Error(err))
		return false
	}
	return r.push(receiverID, frame, EventMessageDeleted)
}

func (r *Relay) push(receiverID string, frame []byte, event string) bool {
	h, ok := r.reg.Lookup(receiverID)
	if !ok {
		r.log.Debug("receiver offline, relay skipped", zap.String("event", event), zap.String("to", receiverID))
		return false
	}
	return h.Push(frame)
}
