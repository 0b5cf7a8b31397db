package model

import (
	"strings"
	"time"

	"PChat/tools/errs"
)

const MsgTableName = "messages"

// Message is one direct message between two users. At least one of Text and
// Image is set. ID is assigned by the server.
type Message struct {
	ID         string    `bson:"msg_id" json:"id"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Image      string    `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// Validate checks the content invariant.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" && m.Image == "" {
		return errs.ErrArgs.WrapMsg("text or image is required")
	}
	if m.SenderID == "" || m.ReceiverID == "" {
		return errs.ErrArgs.WrapMsg("sender and receiver are required")
	}
	return nil
}

// Involves reports whether userID is one of the two participants.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the participant that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
