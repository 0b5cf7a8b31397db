package chat

import (
	"encoding/json"

	"PChat/module/message/model"
	"PChat/tools/errs"
)

// Server to client events.
const (
	EventPresenceUpdate = "presence-update"
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
)

// Frame is the envelope of every realtime message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type DeletedPayload struct {
	MessageID string `json:"messageId"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal frame data", "event", event)
	}
	out, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal frame", "event", event)
	}
	return out, nil
}

func BuildPresenceFrame(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return encodeFrame(EventPresenceUpdate, users)
}

func BuildNewMessageFrame(msg *model.Message) ([]byte, error) {
	return encodeFrame(EventNewMessage, msg)
}

func BuildDeletedFrame(messageID string) ([]byte, error) {
	return encodeFrame(EventMessageDeleted, DeletedPayload{MessageID: messageID})
}

// ParseFrame decodes the envelope only; callers decode Data per event.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errs.ErrArgs.WrapMsg("frame without event")
	}
	return &f, nil
}
